// Package registry holds the ordered waypoint-pair strategies that the segment
// locator applies to each list item.
package registry

import (
	"sort"
	"sync"
)

// Item is one list item being searched for a closed segment.
type Item struct {
	Text  string // Uppercased item text, whitespace collapsed.
	Route string // Route token found in the item, may be empty.
}

// Pair is a raw waypoint pair before identifier normalisation.
type Pair struct {
	From string
	To   string
}

// Strategy is implemented by each pair-finding rule.
type Strategy interface {
	// Name returns the strategy's unique identifier.
	Name() string

	// QuickCheck performs a fast string check before expensive regex.
	// Returns true if the item MIGHT hold a pair (false = definitely skip).
	QuickCheck(text string) bool

	// Priority determines the order strategies are tried.
	// Lower number = tried first.
	Priority() int

	// Find returns the pairs in the item, or nil if the rule does not apply.
	// A chain A-B-C yields two pairs.
	Find(item Item) []Pair
}

// Registry holds strategies sorted by priority.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
	sorted     bool
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Register adds a strategy to the registry.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, s)
	r.sorted = false
}

// Sort orders strategies by priority. Call once after registration; First
// falls back to registration order if it has not been called.
func (r *Registry) Sort() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sorted {
		return
	}
	sort.SliceStable(r.strategies, func(i, j int) bool {
		return r.strategies[i].Priority() < r.strategies[j].Priority()
	})
	r.sorted = true
}

// First returns the pairs from the first strategy that finds any, together
// with that strategy's name. Later strategies are not consulted.
func (r *Registry) First(item Item) ([]Pair, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.strategies {
		// Quick check before expensive regex.
		if !s.QuickCheck(item.Text) {
			continue
		}
		if pairs := s.Find(item); len(pairs) > 0 {
			return pairs, s.Name()
		}
	}
	return nil, ""
}

// Count returns the number of registered strategies.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}

// Names returns strategy names in dispatch order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
)

// MemStore is an in-process Store. It is the default backend and the one
// used in tests.
type MemStore struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	records map[string]Record
	fixes   map[string]string
}

// NewMemStore creates an empty store. A nil clock uses the real clock.
func NewMemStore(clock clockwork.Clock) *MemStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemStore{
		clock:   clock,
		records: make(map[string]Record),
		fixes:   make(map[string]string),
	}
}

func (s *MemStore) Lookup(_ context.Context, key string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return Record{}, fmt.Errorf("lookup %q: %w", truncateKey(key), ErrNotFound)
	}
	return copyRecord(rec), nil
}

func (s *MemStore) Upsert(_ context.Context, rec Record) error {
	if rec.Key == "" {
		return fmt.Errorf("upsert: empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Output = cleanLines(rec.Output)
	now := s.clock.Now().UTC()
	if old, ok := s.records[rec.Key]; ok {
		rec.CreatedAt = old.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[rec.Key] = copyRecord(rec)
	return nil
}

func (s *MemStore) Insert(_ context.Context, rec Record) (bool, error) {
	if rec.Key == "" {
		return false, fmt.Errorf("insert: empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Key]; ok {
		return false, nil
	}
	rec.Output = cleanLines(rec.Output)
	now := s.clock.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[rec.Key] = copyRecord(rec)
	return true, nil
}

func (s *MemStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (s *MemStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]Record)
	s.fixes = make(map[string]string)
	return nil
}

func (s *MemStore) SaveFix(_ context.Context, bad, good string) error {
	bad, good = normalizeFix(bad), normalizeFix(good)
	if bad == "" || good == "" {
		return fmt.Errorf("save fix: empty value")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixes[bad] = good
	return nil
}

func (s *MemStore) LookupFix(_ context.Context, bad string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	good, ok := s.fixes[normalizeFix(bad)]
	if !ok {
		return "", fmt.Errorf("lookup fix %q: %w", bad, ErrNotFound)
	}
	return good, nil
}

func (s *MemStore) Fixes(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.fixes))
	for k, v := range s.fixes {
		out[k] = v
	}
	return out, nil
}

func (s *MemStore) Close() error { return nil }

func copyRecord(r Record) Record {
	r.Output = append(make([]string, 0, len(r.Output)), r.Output...)
	return r
}

// truncateKey shortens a key for error messages.
func truncateKey(key string) string {
	if len(key) > 40 {
		return key[:40] + "..."
	}
	return key
}

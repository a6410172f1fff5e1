package registry

// TraceResult records one strategy's attempt on an item.
type TraceResult struct {
	Strategy   string // Strategy name.
	QuickCheck bool   // Whether the quick check passed.
	Pairs      []Pair // Pairs found (empty if none).
}

// Trace runs every strategy against the item and reports each attempt, for
// the CLI's debug output. Unlike First it does not stop at the first match.
func (r *Registry) Trace(item Item) []TraceResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TraceResult, 0, len(r.strategies))
	for _, s := range r.strategies {
		tr := TraceResult{Strategy: s.Name(), QuickCheck: s.QuickCheck(item.Text)}
		if tr.QuickCheck {
			tr.Pairs = s.Find(item)
		}
		out = append(out, tr)
	}
	return out
}

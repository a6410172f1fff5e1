package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Fallback answers the engine's fallback chain from taught records: an exact
// match on the canonical key first, then the most similar taught NOTAM.
type Fallback struct {
	store  Store
	logger *slog.Logger
}

// NewFallback creates a Fallback over store. A nil logger uses slog.Default.
func NewFallback(store Store, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{store: store, logger: logger}
}

func (f *Fallback) Name() string { return "memory" }

// Extract returns the taught output for text, or nil when nothing matches.
func (f *Fallback) Extract(ctx context.Context, text string) ([]string, error) {
	rec, err := f.store.Lookup(ctx, CanonicalKey(text))
	switch {
	case err == nil && !rec.Pending():
		return rec.Output, nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}

	records, err := f.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	best, score, ok := FindSimilar(text, records)
	if !ok {
		return nil, nil
	}
	f.logger.Debug("similar taught notam", "score", score, "key", truncateKey(best.Key))
	return best.Output, nil
}

// Teacher saves unparsed NOTAMs as pending records.
type Teacher struct {
	store Store
}

// NewTeacher creates a Teacher over store.
func NewTeacher(store Store) *Teacher {
	return &Teacher{store: store}
}

// Remember stores text with no output unless its key is already known, so a
// taught answer is never overwritten by a later miss.
func (t *Teacher) Remember(ctx context.Context, text string) error {
	rec := NewRecord(text, nil)
	if rec.Key == "" {
		return fmt.Errorf("remember: empty notam")
	}
	_, err := t.store.Insert(ctx, rec)
	return err
}

// Teach stores the expected output for text, replacing any earlier answer.
func Teach(ctx context.Context, s Store, text string, output []string) (Record, error) {
	rec := NewRecord(text, output)
	if rec.Key == "" {
		return Record{}, fmt.Errorf("teach: empty notam")
	}
	if err := s.Upsert(ctx, rec); err != nil {
		return Record{}, err
	}
	return s.Lookup(ctx, rec.Key)
}

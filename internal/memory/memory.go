// Package memory stores taught NOTAM examples and waypoint corrections, and
// answers the fallback chain from them.
package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"notam_parser/internal/notam"
)

// ErrNotFound is returned when a key or fix has no stored entry.
var ErrNotFound = errors.New("memory: not found")

// Record is one taught example. A record with no Output is waiting for a
// person to supply the expected lines.
type Record struct {
	Key       string    `json:"key" msgpack:"key"`
	Notam     string    `json:"notam" msgpack:"notam"`
	Output    []string  `json:"output" msgpack:"output"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}

// Pending reports whether the record still needs an expected output.
func (r Record) Pending() bool {
	return len(r.Output) == 0
}

// NewRecord builds a record keyed by the canonical form of text.
func NewRecord(text string, output []string) Record {
	return Record{Key: CanonicalKey(text), Notam: text, Output: cleanLines(output)}
}

// Store is a teaching store. Writes to one key are serialised by the
// implementation and the last write wins.
type Store interface {
	// Lookup returns the record with the given canonical key.
	Lookup(ctx context.Context, key string) (Record, error)

	// Upsert inserts or replaces the record with rec.Key. CreatedAt is kept
	// for an existing key; UpdatedAt is set by the store.
	Upsert(ctx context.Context, rec Record) error

	// Insert stores rec only when its key is absent, reporting whether it did.
	// The check and the write are one step.
	Insert(ctx context.Context, rec Record) (bool, error)

	// List returns every record, oldest first.
	List(ctx context.Context) ([]Record, error)

	// Clear removes every record and fix.
	Clear(ctx context.Context) error

	// SaveFix stores a correction for a misread waypoint.
	SaveFix(ctx context.Context, bad, good string) error

	// LookupFix returns the correction for bad.
	LookupFix(ctx context.Context, bad string) (string, error)

	// Fixes returns every correction.
	Fixes(ctx context.Context) (map[string]string, error)

	Close() error
}

// CanonicalKey is the lookup key for a NOTAM text: its search form, so that
// case, line endings and spacing differences map to the same record.
func CanonicalKey(text string) string {
	return notam.Normalize(text).Search
}

func normalizeFix(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func cleanLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notam_parser/internal/storage"
)

var t0 = time.Date(2026, 1, 27, 6, 30, 0, 0, time.UTC)

const (
	taughtNotam = "E) ATS RTE L736 NEDRA - GOMED CLSD"
	taughtLine  = "L736 NEDRA-GOMED FL045-FL130"
)

type storeFactory func(t *testing.T, clock clockwork.Clock) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"mem": func(t *testing.T, clock clockwork.Clock) Store {
			return NewMemStore(clock)
		},
		"sqlite": func(t *testing.T, clock clockwork.Clock) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "memory.db"), clock)
			require.NoError(t, err)
			return s
		},
		"postgres": func(t *testing.T, clock clockwork.Clock) Store {
			s := setupTestPostgres(t, clock)
			if s == nil {
				t.Skip("No PostgreSQL connection available")
			}
			require.NoError(t, s.Clear(context.Background()))
			return s
		},
	}
}

// setupTestPostgres creates a test store.
// Returns nil if no PostgreSQL connection is available.
func setupTestPostgres(t *testing.T, clock clockwork.Clock) *PostgresStore {
	t.Helper()

	cfg := storage.DefaultConfig().Postgres
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	s, err := OpenPostgres(ctx, cfg, clock)
	if err != nil {
		return nil
	}
	return s
}

func TestStores(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := clockwork.NewFakeClockAt(t0)
			s := factory(t, clock)
			defer s.Close()

			_, err := s.Lookup(ctx, "MISSING")
			assert.True(t, errors.Is(err, ErrNotFound))

			rec := NewRecord(taughtNotam, nil)
			require.NoError(t, s.Upsert(ctx, rec))

			got, err := s.Lookup(ctx, rec.Key)
			require.NoError(t, err)
			assert.True(t, got.Pending())
			assert.Equal(t, taughtNotam, got.Notam)
			assert.True(t, got.CreatedAt.Equal(t0))

			clock.Advance(time.Hour)
			rec.Output = []string{" " + taughtLine + " ", ""}
			require.NoError(t, s.Upsert(ctx, rec))

			got, err = s.Lookup(ctx, rec.Key)
			require.NoError(t, err)
			assert.Equal(t, []string{taughtLine}, got.Output)
			assert.True(t, got.CreatedAt.Equal(t0), "created time kept")
			assert.True(t, got.UpdatedAt.Equal(t0.Add(time.Hour)))

			second := NewRecord("E) AWY W187 TUSLI - DNH CLSD", []string{"W187 TUSLI-DNH FL000-FL341"})
			require.NoError(t, s.Upsert(ctx, second))

			list, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, rec.Key, list[0].Key, "oldest first")
			assert.Equal(t, second.Key, list[1].Key)

			require.NoError(t, s.SaveFix(ctx, " kunk1 ", "kunki"))
			good, err := s.LookupFix(ctx, "KUNK1")
			require.NoError(t, err)
			assert.Equal(t, "KUNKI", good)

			fixes, err := s.Fixes(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"KUNK1": "KUNKI"}, fixes)

			assert.Error(t, s.SaveFix(ctx, "", "X"))
			assert.Error(t, s.Upsert(ctx, Record{}))

			inserted, err := s.Insert(ctx, NewRecord(taughtNotam, nil))
			require.NoError(t, err)
			assert.False(t, inserted, "existing key")
			got, err = s.Lookup(ctx, rec.Key)
			require.NoError(t, err)
			assert.Equal(t, []string{taughtLine}, got.Output, "insert leaves taught output alone")

			inserted, err = s.Insert(ctx, NewRecord("E) SOMETHING ODD", nil))
			require.NoError(t, err)
			assert.True(t, inserted)
			got, err = s.Lookup(ctx, CanonicalKey("E) SOMETHING ODD"))
			require.NoError(t, err)
			assert.True(t, got.Pending())

			_, err = s.Insert(ctx, Record{})
			assert.Error(t, err)

			require.NoError(t, s.Clear(ctx))
			list, err = s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
			_, err = s.LookupFix(ctx, "KUNK1")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	a := CanonicalKey("e) ats rte L736\r\nNEDRA  -  GOMED clsd")
	b := CanonicalKey("E) ATS RTE L736 NEDRA - GOMED CLSD")
	assert.Equal(t, b, a)
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"E", "L736", "NEDRA", "GOMED"}, Tokens("e) l736 nedra-gomed"))
	assert.Empty(t, Tokens("--/()"))
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"identical", []string{"A", "B"}, []string{"B", "A"}, 1},
		{"half", []string{"A", "B"}, []string{"A", "C", "B", "D"}, 0.5},
		{"duplicates ignored", []string{"A", "A", "B"}, []string{"A", "B"}, 1},
		{"disjoint", []string{"A"}, []string{"B"}, 0},
		{"empty", nil, []string{"B"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Jaccard(tt.a, tt.b), 1e-9)
		})
	}
}

func TestOperational(t *testing.T) {
	got := Operational("Q) ZXXX/QARLC\nE) ATS RTE L736 CLSD F) SFC")
	assert.Equal(t, " ATS RTE L736 CLSD  ZXXX QARLC ATS RTE L736 CLSD SFC", got)
}

func TestFindSimilar(t *testing.T) {
	taught := Record{Key: "a", Notam: taughtNotam, Output: []string{taughtLine}, CreatedAt: t0}

	rec, score, ok := FindSimilar("E) ATS RTE L736 NEDRA-GOMED CLSD DUE MIL", []Record{taught})
	require.True(t, ok)
	assert.Equal(t, "a", rec.Key)
	assert.InDelta(t, 0.7*0.75+0.3*7.0/9.0, score, 1e-9)

	_, _, ok = FindSimilar("E) RWY 09/27 CLSD", []Record{taught})
	assert.False(t, ok)

	pending := Record{Key: "p", Notam: taughtNotam, CreatedAt: t0}
	_, _, ok = FindSimilar(taughtNotam, []Record{pending})
	assert.False(t, ok, "pending records are not answers")

	_, _, ok = FindSimilar(taughtNotam, nil)
	assert.False(t, ok)
}

func TestFindSimilarNewestWinsTie(t *testing.T) {
	older := Record{Key: "old", Notam: taughtNotam, Output: []string{"OLD"}, CreatedAt: t0}
	newer := Record{Key: "new", Notam: taughtNotam, Output: []string{"NEW"}, CreatedAt: t0.Add(time.Minute)}

	rec, _, ok := FindSimilar(taughtNotam, []Record{older, newer})
	require.True(t, ok)
	assert.Equal(t, "new", rec.Key)

	rec, _, ok = FindSimilar(taughtNotam, []Record{newer, older})
	require.True(t, ok)
	assert.Equal(t, "new", rec.Key)
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(clockwork.NewFakeClockAt(t0))
	fb := NewFallback(s, nil)
	assert.Equal(t, "memory", fb.Name())

	lines, err := fb.Extract(ctx, taughtNotam)
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, err = Teach(ctx, s, taughtNotam, []string{taughtLine})
	require.NoError(t, err)

	lines, err = fb.Extract(ctx, "e) ats rte l736 nedra - gomed clsd")
	require.NoError(t, err)
	assert.Equal(t, []string{taughtLine}, lines, "exact key")

	lines, err = fb.Extract(ctx, "E) ATS RTE L736 NEDRA-GOMED CLSD DUE MIL")
	require.NoError(t, err)
	assert.Equal(t, []string{taughtLine}, lines, "similar text")
}

func TestTeacherRemember(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(clockwork.NewFakeClockAt(t0))
	teacher := NewTeacher(s)

	require.NoError(t, teacher.Remember(ctx, "E) SOMETHING ODD"))
	rec, err := s.Lookup(ctx, CanonicalKey("E) SOMETHING ODD"))
	require.NoError(t, err)
	assert.True(t, rec.Pending())

	_, err = Teach(ctx, s, taughtNotam, []string{taughtLine})
	require.NoError(t, err)
	require.NoError(t, teacher.Remember(ctx, taughtNotam))
	rec, err = s.Lookup(ctx, CanonicalKey(taughtNotam))
	require.NoError(t, err)
	assert.Equal(t, []string{taughtLine}, rec.Output, "taught output kept")

	assert.Error(t, teacher.Remember(ctx, "   "))
}

func TestRememberConcurrentWithTeach(t *testing.T) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t, clockwork.NewFakeClockAt(t0))
			defer s.Close()
			teacher := NewTeacher(s)

			for i := 0; i < 25; i++ {
				text := fmt.Sprintf("E) ATS RTE L%d NEDRA - GOMED CLSD", 700+i)
				line := fmt.Sprintf("L%d NEDRA-GOMED FL045-FL130", 700+i)

				var wg sync.WaitGroup
				errs := make(chan error, 2)
				wg.Add(2)
				go func() {
					defer wg.Done()
					errs <- teacher.Remember(ctx, text)
				}()
				go func() {
					defer wg.Done()
					_, err := Teach(ctx, s, text, []string{line})
					errs <- err
				}()
				wg.Wait()
				close(errs)
				for err := range errs {
					require.NoError(t, err)
				}

				rec, err := s.Lookup(ctx, CanonicalKey(text))
				require.NoError(t, err)
				assert.Equal(t, []string{line}, rec.Output, "iteration %d", i)
			}
		})
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	src := NewMemStore(clockwork.NewFakeClockAt(t0))
	_, err := Teach(ctx, src, taughtNotam, []string{taughtLine})
	require.NoError(t, err)
	require.NoError(t, src.SaveFix(ctx, "KUNK1", "KUNKI"))

	var buf bytes.Buffer
	snap, err := Export(ctx, src, &buf)
	require.NoError(t, err)
	assert.Len(t, snap.Records, 1)

	dst := NewMemStore(clockwork.NewFakeClockAt(t0.Add(24 * time.Hour)))
	imported, err := Import(ctx, dst, &buf)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"KUNK1": "KUNKI"}, imported.Fixes)

	rec, err := dst.Lookup(ctx, CanonicalKey(taughtNotam))
	require.NoError(t, err)
	assert.Equal(t, []string{taughtLine}, rec.Output)
	assert.True(t, rec.CreatedAt.Equal(t0), "created time survives import")

	_, err = ReadSnapshot(bytes.NewReader([]byte("not zstd")))
	assert.Error(t, err)
}

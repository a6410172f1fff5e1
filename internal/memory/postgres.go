package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"notam_parser/internal/storage"
)

// PostgresStore keeps the teaching store in PostgreSQL so several workers
// can share it.
type PostgresStore struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

// OpenPostgres connects to PostgreSQL and creates the schema.
func OpenPostgres(ctx context.Context, cfg storage.PostgresConfig, clock clockwork.Clock) (*PostgresStore, error) {
	pool, err := storage.OpenPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &PostgresStore{pool: pool, clock: clock}
	if err := s.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// CreateSchema creates the teaching tables.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notam_records (
		key        TEXT PRIMARY KEY,
		notam      TEXT NOT NULL,
		output     TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notam_records_created ON notam_records (created_at);

	CREATE TABLE IF NOT EXISTS notam_fixes (
		bad  TEXT PRIMARY KEY,
		good TEXT NOT NULL
	);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Lookup(ctx context.Context, key string) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, notam, output, created_at, updated_at FROM notam_records WHERE key = $1`, key)
	rec, err := scanPostgresRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("lookup %q: %w", truncateKey(key), ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup %q: %w", truncateKey(key), err)
	}
	return rec, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec Record) error {
	if rec.Key == "" {
		return fmt.Errorf("upsert: empty key")
	}
	now := s.clock.Now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notam_records (key, notam, output, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			notam = EXCLUDED.notam,
			output = EXCLUDED.output,
			updated_at = EXCLUDED.updated_at
	`, rec.Key, rec.Notam, cleanLines(rec.Output), created, now)
	if err != nil {
		return fmt.Errorf("upsert %q: %w", truncateKey(rec.Key), err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) (bool, error) {
	if rec.Key == "" {
		return false, fmt.Errorf("insert: empty key")
	}
	now := s.clock.Now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notam_records (key, notam, output, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING
	`, rec.Key, rec.Notam, cleanLines(rec.Output), created, now)
	if err != nil {
		return false, fmt.Errorf("insert %q: %w", truncateKey(rec.Key), err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, notam, output, created_at, updated_at FROM notam_records ORDER BY created_at, key`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE notam_records, notam_fixes`)
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveFix(ctx context.Context, bad, good string) error {
	bad, good = normalizeFix(bad), normalizeFix(good)
	if bad == "" || good == "" {
		return fmt.Errorf("save fix: empty value")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notam_fixes (bad, good) VALUES ($1, $2)
		ON CONFLICT (bad) DO UPDATE SET good = EXCLUDED.good
	`, bad, good)
	if err != nil {
		return fmt.Errorf("save fix %q: %w", bad, err)
	}
	return nil
}

func (s *PostgresStore) LookupFix(ctx context.Context, bad string) (string, error) {
	var good string
	err := s.pool.QueryRow(ctx, `SELECT good FROM notam_fixes WHERE bad = $1`, normalizeFix(bad)).Scan(&good)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("lookup fix %q: %w", bad, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup fix %q: %w", bad, err)
	}
	return good, nil
}

func (s *PostgresStore) Fixes(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT bad, good FROM notam_fixes`)
	if err != nil {
		return nil, fmt.Errorf("list fixes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var bad, good string
		if err := rows.Scan(&bad, &good); err != nil {
			return nil, fmt.Errorf("scan fix: %w", err)
		}
		out[bad] = good
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgresRecord(row pgx.Row) (Record, error) {
	var rec Record
	var created, updated time.Time
	if err := row.Scan(&rec.Key, &rec.Notam, &rec.Output, &created, &updated); err != nil {
		return Record{}, err
	}
	if rec.Output == nil {
		rec.Output = []string{}
	}
	rec.CreatedAt = created.UTC()
	rec.UpdatedAt = updated.UTC()
	return rec, nil
}

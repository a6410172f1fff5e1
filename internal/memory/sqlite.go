package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"notam_parser/internal/storage"
)

// SQLiteStore keeps the teaching store in a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

// OpenSQLite opens or creates a teaching store at path.
func OpenSQLite(path string, clock clockwork.Clock) (*SQLiteStore, error) {
	db, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SQLiteStore{db: db, clock: clock}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		notam TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fixes (
		bad TEXT PRIMARY KEY,
		good TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	return migrateSQLiteSchema(db)
}

// migrateSQLiteSchema adds columns missing from older databases.
func migrateSQLiteSchema(db *sql.DB) error {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('records') WHERE name='updated_at'`).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE records ADD COLUMN updated_at TEXT NOT NULL DEFAULT ''`); err != nil {
		// Ignore "duplicate column" errors for idempotency.
		if !strings.Contains(err.Error(), "duplicate column") {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, key string) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, notam, output, created_at, updated_at FROM records WHERE key = ?`, key)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("lookup %q: %w", truncateKey(key), ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup %q: %w", truncateKey(key), err)
	}
	return rec, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	if rec.Key == "" {
		return fmt.Errorf("upsert: empty key")
	}
	output, err := json.Marshal(cleanLines(rec.Output))
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	now := s.clock.Now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (key, notam, output, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			notam = excluded.notam,
			output = excluded.output,
			updated_at = excluded.updated_at
	`, rec.Key, rec.Notam, string(output), formatTime(created), formatTime(now))
	if err != nil {
		return fmt.Errorf("upsert %q: %w", truncateKey(rec.Key), err)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, rec Record) (bool, error) {
	if rec.Key == "" {
		return false, fmt.Errorf("insert: empty key")
	}
	output, err := json.Marshal(cleanLines(rec.Output))
	if err != nil {
		return false, fmt.Errorf("marshal output: %w", err)
	}

	now := s.clock.Now().UTC()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (key, notam, output, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, rec.Key, rec.Notam, string(output), formatTime(created), formatTime(now))
	if err != nil {
		return false, fmt.Errorf("insert %q: %w", truncateKey(rec.Key), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert %q: %w", truncateKey(rec.Key), err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, notam, output, created_at, updated_at FROM records ORDER BY created_at, key`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{`DELETE FROM records`, `DELETE FROM fixes`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveFix(ctx context.Context, bad, good string) error {
	bad, good = normalizeFix(bad), normalizeFix(good)
	if bad == "" || good == "" {
		return fmt.Errorf("save fix: empty value")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fixes (bad, good) VALUES (?, ?)
		ON CONFLICT(bad) DO UPDATE SET good = excluded.good
	`, bad, good)
	if err != nil {
		return fmt.Errorf("save fix %q: %w", bad, err)
	}
	return nil
}

func (s *SQLiteStore) LookupFix(ctx context.Context, bad string) (string, error) {
	var good string
	err := s.db.QueryRowContext(ctx, `SELECT good FROM fixes WHERE bad = ?`, normalizeFix(bad)).Scan(&good)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup fix %q: %w", bad, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("lookup fix %q: %w", bad, err)
	}
	return good, nil
}

func (s *SQLiteStore) Fixes(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bad, good FROM fixes`)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (Record, error) {
	var rec Record
	var output, created, updated string
	if err := row.Scan(&rec.Key, &rec.Notam, &output, &created, &updated); err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(output), &rec.Output); err != nil {
		return Record{}, fmt.Errorf("decode output: %w", err)
	}
	if rec.Output == nil {
		rec.Output = []string{}
	}
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	return rec, nil
}

// timeLayout has fixed-width fractions so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

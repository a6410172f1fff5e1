package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ClickHouseDB records extraction results for analytics.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS extractions (
			id              String,
			processed_at    DateTime64(3),
			status          LowCardinality(String),
			source          LowCardinality(String),
			raw_text        String,
			outputs         Array(String),
			result_json     String,
			error_codes     String,
			confidence      Float32,
			created_at      DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(processed_at)
		ORDER BY (status, source, processed_at, id)
		SETTINGS index_granularity = 8192`,

		`CREATE TABLE IF NOT EXISTS closures (
			extraction_id   String,
			processed_at    DateTime64(3),
			airway          LowCardinality(String),
			from_fix        LowCardinality(String),
			to_fix          LowCardinality(String),
			low_fl          Nullable(UInt16),
			high_fl         Nullable(UInt16)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(processed_at)
		ORDER BY (airway, processed_at, extraction_id)`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	// Add bloom filter index for full-text search (ignore error if already exists).
	_ = d.conn.Exec(ctx, `ALTER TABLE extractions ADD INDEX IF NOT EXISTS idx_raw_text_bloom raw_text TYPE tokenbf_v1(32768, 3, 0) GRANULARITY 1`)

	return nil
}

// ClosureRow is one closure of an extraction. Nil levels are unknown.
type ClosureRow struct {
	Airway string
	From   string
	To     string
	Low    *uint16
	High   *uint16
}

// InsertParams contains parameters for recording one extraction.
type InsertParams struct {
	ID          string
	ProcessedAt time.Time
	Status      string
	Source      string
	RawText     string
	Outputs     []string
	Result      interface{}
	ErrorCodes  []string
	Confidence  float32
	Closures    []ClosureRow
}

// Insert records a single extraction.
func (d *ClickHouseDB) Insert(ctx context.Context, p InsertParams) error {
	return d.InsertBatch(ctx, []InsertParams{p})
}

// InsertBatch records several extractions and their closures.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, items []InsertParams) error {
	if len(items) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO extractions (id, processed_at, status, source, raw_text, outputs, result_json, error_codes, confidence)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	var closures int
	for _, p := range items {
		resultJSON, err := json.Marshal(p.Result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		outputs := p.Outputs
		if outputs == nil {
			outputs = []string{}
		}

		err = batch.Append(p.ID, p.ProcessedAt, p.Status, p.Source, p.RawText, outputs,
			string(resultJSON), strings.Join(p.ErrorCodes, ","), p.Confidence)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
		closures += len(p.Closures)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	if closures == 0 {
		return nil
	}

	cb, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO closures (extraction_id, processed_at, airway, from_fix, to_fix, low_fl, high_fl)
	`)
	if err != nil {
		return fmt.Errorf("prepare closure batch: %w", err)
	}
	for _, p := range items {
		for _, c := range p.Closures {
			if err := cb.Append(p.ID, p.ProcessedAt, c.Airway, c.From, c.To, c.Low, c.High); err != nil {
				return fmt.Errorf("append closure: %w", err)
			}
		}
	}
	if err := cb.Send(); err != nil {
		return fmt.Errorf("send closure batch: %w", err)
	}

	return nil
}

// QueryParams contains filtering options for querying extractions.
type QueryParams struct {
	ID        string
	Status    string
	Source    string
	FullText  string // LIKE match on raw_text.
	Limit     int
	Offset    int
	OrderDesc bool
}

// Extraction is a stored extraction row.
type Extraction struct {
	ID          string
	ProcessedAt time.Time
	Status      string
	Source      string
	RawText     string
	Outputs     []string
	ResultJSON  string
	ErrorCodes  string
	Confidence  float32
}

// Query retrieves extractions matching the given parameters, ordered by time.
func (d *ClickHouseDB) Query(ctx context.Context, p QueryParams) ([]Extraction, error) {
	var conditions []string
	var args []interface{}

	if p.ID != "" {
		conditions = append(conditions, "id = ?")
		args = append(args, p.ID)
	}
	if p.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, p.Status)
	}
	if p.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, p.Source)
	}
	if p.FullText != "" {
		conditions = append(conditions, "raw_text LIKE ?")
		args = append(args, "%"+p.FullText+"%")
	}

	query := `SELECT id, processed_at, status, source, raw_text, outputs, result_json, error_codes, confidence FROM extractions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	direction := "ASC"
	if p.OrderDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY processed_at %s", direction)

	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}
	defer rows.Close()

	var out []Extraction
	for rows.Next() {
		var e Extraction
		if err := rows.Scan(&e.ID, &e.ProcessedAt, &e.Status, &e.Source, &e.RawText, &e.Outputs,
			&e.ResultJSON, &e.ErrorCodes, &e.Confidence); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Stats contains aggregate statistics about recorded extractions.
type Stats struct {
	TotalExtractions uint64
	ByStatus         map[string]uint64
	BySource         map[string]uint64
	TopAirways       map[string]uint64
}

// GetStats returns statistics about recorded extractions.
func (d *ClickHouseDB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByStatus:   make(map[string]uint64),
		BySource:   make(map[string]uint64),
		TopAirways: make(map[string]uint64),
	}

	row := d.conn.QueryRow(ctx, "SELECT count() FROM extractions")
	if err := row.Scan(&stats.TotalExtractions); err != nil {
		return nil, err
	}

	groups := []struct {
		query string
		into  map[string]uint64
	}{
		{"SELECT status, count() FROM extractions GROUP BY status", stats.ByStatus},
		{"SELECT source, count() FROM extractions GROUP BY source", stats.BySource},
		{"SELECT airway, count() FROM closures GROUP BY airway ORDER BY count() DESC LIMIT 20", stats.TopAirways},
	}
	for _, g := range groups {
		if err := d.countInto(ctx, g.query, g.into); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (d *ClickHouseDB) countInto(ctx context.Context, query string, into map[string]uint64) error {
	rows, err := d.conn.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count uint64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan stats: %w", err)
		}
		into[key] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate stats: %w", err)
	}
	return nil
}

// Count returns the number of extractions, optionally filtered by status.
func (d *ClickHouseDB) Count(ctx context.Context, status string) (uint64, error) {
	var count uint64
	var err error
	if status != "" {
		row := d.conn.QueryRow(ctx, "SELECT count() FROM extractions WHERE status = ?", status)
		err = row.Scan(&count)
	} else {
		row := d.conn.QueryRow(ctx, "SELECT count() FROM extractions")
		err = row.Scan(&count)
	}
	return count, err
}

// Package storage opens the database connections used by the teaching store
// and records extraction history for analytics.
package storage

// Config holds database connection settings.
type Config struct {
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	SQLitePath string           `yaml:"sqlite_path"`
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "notam",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "notam_memory",
			User:     "notam",
			Password: "notam",
		},
		SQLitePath: "notam_memory.db",
	}
}

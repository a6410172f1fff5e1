// Package config loads service settings from the environment and an optional
// YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"notam_parser/internal/storage"
)

// Memory backends.
const (
	BackendMem      = "mem"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds all service settings.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	LogFile         string        `yaml:"log_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Completion CompletionConfig `yaml:"completion"`

	MemoryBackend string         `yaml:"memory_backend"`
	Storage       storage.Config `yaml:"storage"`

	ClickHouseEnabled bool `yaml:"clickhouse_enabled"`

	NATS  NATSConfig  `yaml:"nats"`
	Kafka KafkaConfig `yaml:"kafka"`

	// Result cache for the HTTP API.
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// CompletionConfig configures the chat-completion fallback.
type CompletionConfig struct {
	URL     string        `yaml:"url"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig configures the message bus worker.
type NATSConfig struct {
	URL        string `yaml:"url"`
	SubjectIn  string `yaml:"subject_in"`
	SubjectOut string `yaml:"subject_out"`
}

// KafkaConfig configures the optional result sink. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	completionTimeout, err := parseDuration("COMPLETION_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("CACHE_TTL", "10m")
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("CACHE_SIZE", 1024)
	if err != nil {
		return nil, err
	}

	db := storage.DefaultConfig()
	db.SQLitePath = envOrDefault("MEMORY_SQLITE_PATH", db.SQLitePath)
	db.Postgres.Host = envOrDefault("POSTGRES_HOST", db.Postgres.Host)
	db.Postgres.User = envOrDefault("POSTGRES_USER", db.Postgres.User)
	db.Postgres.Password = envOrDefault("POSTGRES_PASSWORD", db.Postgres.Password)
	db.Postgres.Database = envOrDefault("POSTGRES_DB", db.Postgres.Database)
	if db.Postgres.Port, err = parseInt("POSTGRES_PORT", db.Postgres.Port); err != nil {
		return nil, err
	}
	db.ClickHouse.Host = envOrDefault("CLICKHOUSE_HOST", db.ClickHouse.Host)
	db.ClickHouse.User = envOrDefault("CLICKHOUSE_USER", db.ClickHouse.User)
	db.ClickHouse.Password = envOrDefault("CLICKHOUSE_PASSWORD", db.ClickHouse.Password)
	db.ClickHouse.Database = envOrDefault("CLICKHOUSE_DB", db.ClickHouse.Database)
	if db.ClickHouse.Port, err = parseInt("CLICKHOUSE_PORT", db.ClickHouse.Port); err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("NOTAM_HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		LogFile:         os.Getenv("LOG_FILE"),
		ShutdownTimeout: shutdownTimeout,

		Completion: CompletionConfig{
			URL:     envOrDefault("COMPLETION_URL", "https://api.openai.com/v1"),
			Model:   envOrDefault("COMPLETION_MODEL", "gpt-4o-mini"),
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Timeout: completionTimeout,
		},

		MemoryBackend:     envOrDefault("MEMORY_BACKEND", BackendSQLite),
		Storage:           db,
		ClickHouseEnabled: os.Getenv("CLICKHOUSE_ENABLED") == "true",

		NATS: NATSConfig{
			URL:        envOrDefault("NATS_URL", "nats://localhost:4222"),
			SubjectIn:  envOrDefault("NATS_SUBJECT_IN", "notam.raw"),
			SubjectOut: envOrDefault("NATS_SUBJECT_OUT", "notam.closures"),
		},
		Kafka: KafkaConfig{
			Brokers: parseList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOrDefault("KAFKA_TOPIC", "notam-closures"),
		},

		CacheSize: cacheSize,
		CacheTTL:  cacheTTL,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the environment as Load does and then applies the settings
// present in the YAML file at path.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.MemoryBackend {
	case BackendMem, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("invalid MEMORY_BACKEND %q", c.MemoryBackend)
	}
	if c.MemoryBackend == BackendSQLite && c.Storage.SQLitePath == "" {
		return errors.New("MEMORY_SQLITE_PATH is required for the sqlite backend")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	if c.NATS.SubjectIn == "" || c.NATS.SubjectOut == "" {
		return errors.New("NATS subjects are required")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.CacheSize <= 0 {
		return errors.New("CACHE_SIZE must be positive")
	}
	if c.Completion.Timeout <= 0 {
		return errors.New("invalid COMPLETION_TIMEOUT")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// parseList splits a comma-separated list, dropping blanks.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

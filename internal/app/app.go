// Package app wires configuration into a ready engine, teaching store and
// optional extraction history for the commands.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"notam_parser/internal/completion"
	"notam_parser/internal/config"
	"notam_parser/internal/engine"
	"notam_parser/internal/memory"
	"notam_parser/internal/storage"
)

// Options adjusts what Open connects to.
type Options struct {
	// Offline leaves the completion service out of the fallback chain.
	Offline bool
	// NoHistory skips ClickHouse even when it is enabled in the config.
	NoHistory bool
}

// App holds the long-lived pieces shared by the commands.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   memory.Store
	Engine  *engine.Engine
	History *storage.ClickHouseDB // nil unless enabled
}

// Open connects the configured store and history and builds the engine.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Store: store}
	a.Engine = NewEngine(cfg, store, logger, opts.Offline)

	if cfg.ClickHouseEnabled && !opts.NoHistory {
		ch, err := storage.OpenClickHouse(ctx, cfg.Storage.ClickHouse)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if err := ch.CreateSchema(ctx); err != nil {
			_ = ch.Close()
			_ = store.Close()
			return nil, err
		}
		a.History = ch
	}

	return a, nil
}

// Close releases the store and history connections.
func (a *App) Close() error {
	var firstErr error
	if a.History != nil {
		firstErr = a.History.Close()
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// OpenStore opens the teaching store selected by cfg.MemoryBackend.
func OpenStore(ctx context.Context, cfg *config.Config) (memory.Store, error) {
	switch cfg.MemoryBackend {
	case config.BackendMem:
		return memory.NewMemStore(nil), nil
	case config.BackendSQLite:
		return memory.OpenSQLite(cfg.Storage.SQLitePath, nil)
	case config.BackendPostgres:
		return memory.OpenPostgres(ctx, cfg.Storage.Postgres, nil)
	}
	return nil, fmt.Errorf("unknown memory backend %q", cfg.MemoryBackend)
}

// NewEngine builds an engine whose fallback chain is the teaching store and,
// unless offline or unconfigured, the completion service.
func NewEngine(cfg *config.Config, store memory.Store, logger *slog.Logger, offline bool) *engine.Engine {
	fallbacks := []engine.Fallback{memory.NewFallback(store, logger)}

	client := completion.NewClient(completion.Config{
		URL:    cfg.Completion.URL,
		Model:  cfg.Completion.Model,
		APIKey: cfg.Completion.APIKey,
	}, completion.WithLogger(logger))
	if !offline && client.Configured() {
		fallbacks = append(fallbacks, client)
	}

	return engine.New(
		engine.WithFallbacks(fallbacks...),
		engine.WithTeacher(memory.NewTeacher(store)),
		engine.WithFixSource(store),
		engine.WithTimeout(cfg.Completion.Timeout),
		engine.WithLogger(logger),
	)
}

// Package main provides the notam-api server for NOTAM closure extraction.
//
// This is a standalone REST API server that runs NOTAMs through the parser,
// the teaching store and, when configured, the completion service. Taught
// answers are shared with the notam_parser command through the same store.
//
// Usage:
//
//	notam-api [options]
//
// Options:
//
//	-addr ADDR          Listen address (default: :8080, env: NOTAM_HTTP_ADDR)
//	-config FILE        YAML config file (overrides the environment)
//	-memory BACKEND     Teaching store: mem, sqlite or postgres (env: MEMORY_BACKEND)
//	-offline            Do not call the completion service
//	-auth               Enable API key authentication (env: NOTAM_API_AUTH=true)
//	-api-keys KEYS      Comma-separated list of valid API keys (env: NOTAM_API_KEYS)
//
// API Endpoints:
//
//	GET /healthz, GET /api/v1/health
//	    Health check endpoints.
//
//	GET /metrics
//	    Prometheus metrics.
//
//	POST /api/v1/process-notam
//	    Extract closures. Body: {"notam": "..."}. Returns {"segments": [...]}.
//
//	POST /api/v1/parse
//	    Run the parser alone, without fallbacks or teaching.
//
//	GET /api/v1/memory, GET /api/v1/memory/lookup?notam=...
//	    List or look up taught NOTAMs.
//
//	POST /api/v1/memory, DELETE /api/v1/memory
//	    Teach an answer ({"notam", "output", "fixes"}) or clear the store.
//
// Authentication:
//
//	When -auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"notam_parser/internal/api"
	"notam_parser/internal/app"
	"notam_parser/internal/config"
	"notam_parser/internal/logging"
	"notam_parser/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (default from NOTAM_HTTP_ADDR or :8080)")
	backend := flag.String("memory", "", "Teaching store backend (mem, sqlite, postgres)")
	offline := flag.Bool("offline", false, "Do not call the completion service")
	authEnabled := flag.Bool("auth", envOrDefault("NOTAM_API_AUTH", "") == "true", "Enable API key authentication")
	apiKeys := flag.String("api-keys", envOrDefault("NOTAM_API_KEYS", ""), "Comma-separated list of valid API keys (when auth enabled)")

	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *backend != "" {
		cfg.MemoryBackend = *backend
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx := context.Background()

	a, err := app.Open(ctx, cfg, logger, app.Options{Offline: *offline, NoHistory: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s store: %v\n", cfg.MemoryBackend, err)
		os.Exit(1)
	}
	defer a.Close()

	// Parse API keys.
	var keys []string
	if *apiKeys != "" {
		keys = strings.Split(*apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	// Create and run server.
	server := api.NewServer(a.Engine, a.Store, api.Config{
		Addr:        cfg.HTTPAddr,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
		CacheSize:   cfg.CacheSize,
		CacheTTL:    cfg.CacheTTL,
		Metrics:     metrics.New(),
		Logger:      logger,
	})

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Package api provides REST API endpoints for NOTAM closure extraction and
// the teaching store.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notam_parser/internal/engine"
	"notam_parser/internal/memory"
	"notam_parser/internal/metrics"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server provides REST API access to the extraction engine.
type Server struct {
	engine      *engine.Engine
	store       memory.Store
	cache       *expirable.LRU[string, engine.Result]
	metrics     *metrics.Metrics
	logger      *slog.Logger
	addr        string
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the API server.
type Config struct {
	Addr        string
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
	CacheSize   int
	CacheTTL    time.Duration
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// NewServer creates a new API server. A nil store disables the memory endpoints.
func NewServer(eng *engine.Engine, store memory.Store, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		engine:      eng,
		store:       store,
		cache:       expirable.NewLRU[string, engine.Result](cfg.CacheSize, nil, cfg.CacheTTL),
		metrics:     cfg.Metrics,
		logger:      logger,
		addr:        cfg.Addr,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Handler returns the full HTTP handler with standard middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/v1", s.Router())

	return r
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	s.logger.Info("notam api starting", "addr", s.addr, "auth", s.authEnabled)
	return http.ListenAndServe(s.addr, s.Handler())
}

// Router returns the API routes without middleware, for embedding and tests.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Health check (no auth required).
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		// Optional authentication.
		if s.authEnabled {
			r.Use(s.authMiddleware)
		}

		r.Post("/process-notam", s.handleProcess)
		r.Post("/parse", s.handleParse)

		r.Get("/memory", s.handleMemoryList)
		r.Get("/memory/lookup", s.handleMemoryLookup)
		r.Post("/memory", s.handleMemorySave)
		r.Delete("/memory", s.handleMemoryClear)
	})

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}
		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NotamRequest is the body of the extraction endpoints.
type NotamRequest struct {
	Notam string `json:"notam"`
}

// ProcessResponse is the JSON response for extraction requests.
type ProcessResponse struct {
	Segments []string      `json:"segments"`
	Cached   bool          `json:"cached,omitempty"`
	Result   engine.Result `json:"result"`
}

// MemoryRequest is the body of a memory save.
type MemoryRequest struct {
	Notam  string            `json:"notam"`
	Output []string          `json:"output"`
	Fixes  map[string]string `json:"fixes,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	text, ok := readNotam(w, r)
	if !ok {
		return
	}

	key := memory.CanonicalKey(text)
	if res, hit := s.cache.Get(key); hit {
		s.metrics.CacheHit(true)
		writeJSON(w, http.StatusOK, ProcessResponse{Segments: res.Outputs, Cached: true, Result: res})
		return
	}
	s.metrics.CacheHit(false)

	start := time.Now()
	res := s.engine.Process(r.Context(), text)
	s.metrics.Observe(res, time.Since(start))

	// Only settled answers are cached; a saved NOTAM may be taught later.
	if res.Status == engine.StatusOK || res.Status == engine.StatusFallback {
		s.cache.Add(key, res)
	}
	writeJSON(w, http.StatusOK, ProcessResponse{Segments: res.Outputs, Result: res})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	text, ok := readNotam(w, r)
	if !ok {
		return
	}
	res := s.engine.Parse(text)
	writeJSON(w, http.StatusOK, ProcessResponse{Segments: res.Outputs, Result: res})
}

func (s *Server) handleMemoryList(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	records, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []memory.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleMemoryLookup(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	text := strings.TrimSpace(r.URL.Query().Get("notam"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "notam is required")
		return
	}

	rec, err := s.store.Lookup(r.Context(), memory.CanonicalKey(text))
	if errors.Is(err, memory.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No taught entry for this NOTAM")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMemorySave(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var req MemoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Notam) == "" && len(req.Fixes) == 0 {
		writeError(w, http.StatusBadRequest, "notam or fixes is required")
		return
	}

	ctx := r.Context()
	for bad, good := range req.Fixes {
		if err := s.store.SaveFix(ctx, bad, good); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp := map[string]interface{}{"status": "saved"}
	if strings.TrimSpace(req.Notam) != "" {
		rec, err := memory.Teach(ctx, s.store, req.Notam, req.Output)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["record"] = rec
	}

	s.cache.Purge()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.cache.Purge()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Memory store not configured")
		return false
	}
	return true
}

// readNotam decodes a NotamRequest and writes a 400 when the text is missing.
func readNotam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req NotamRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return "", false
	}
	text := strings.TrimSpace(req.Notam)
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing notam in request body")
		return "", false
	}
	return text, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

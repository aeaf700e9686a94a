// Package server implements the HTTP server that exposes the knowledge-base
// question-answering pipeline as a REST API.
// The server is started by the `kbqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kbqa-dev/kbqa-go/internal/logging"
	"github.com/kbqa-dev/kbqa-go/internal/orchestrator"
	"github.com/kbqa-dev/kbqa-go/internal/registry"
	"github.com/kbqa-dev/kbqa-go/internal/store"
)

// maxQuestionBytes bounds the request body for POST /api/v1/query.
const maxQuestionBytes = 64 << 10 // 64 KiB

// defaultHistoryLimit is the number of entries GET /api/v1/history returns
// when no limit parameter is given.
const defaultHistoryLimit = 20

// New constructs a Server from the provided answerer, history store and config.
func New(ans answerer, history store.HistoryStore, cfg *Config) (*Server, error) {
	if ans == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// A query may ride out the full retry schedule before answering.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		answerer: ans,
		history:  history,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.Registry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("API authentication is disabled: no server API key configured")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	protected := func(name string, h http.Handler) http.Handler {
		return s.instrument(name, apiKeyMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/query", protected("query", http.HandlerFunc(s.handleQuery)))
	mux.Handle("GET /api/v1/history", protected("history", http.HandlerFunc(s.handleHistory)))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleQuery handles POST /api/v1/query. It runs the full pipeline and
// returns the answer with its sources. Provider failures arrive as answer
// text from the orchestrator; only deployment faults surface as 5xx here.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxQuestionBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeJSONError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	res, err := s.answerer.Answer(r.Context(), req.Question, req.Model)
	s.metrics.queryDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		var ce *registry.CredentialError
		if errors.As(err, &ce) {
			log.Error("query rejected: provider credential missing",
				slog.String("provider", ce.Provider),
				slog.String("env_var", ce.EnvVar),
			)
			s.metrics.queryRequestsTotal.WithLabelValues("credential_error").Inc()
			writeJSONError(w, http.StatusInternalServerError,
				fmt.Sprintf("provider %q is not usable: credential %s is not set", ce.Provider, ce.EnvVar))
			return
		}
		var re *orchestrator.RetrievalError
		if errors.As(err, &re) {
			log.Error("query rejected: retrieval backend failed", slog.Any("error", re.Err))
			s.metrics.queryRequestsTotal.WithLabelValues("retrieval_error").Inc()
			writeJSONError(w, http.StatusBadGateway, "retrieval backend unavailable")
			return
		}
		log.Error("query failed", slog.Any("error", err))
		s.metrics.queryRequestsTotal.WithLabelValues("error").Inc()
		writeJSONError(w, http.StatusInternalServerError, "query failed")
		return
	}
	s.metrics.queryRequestsTotal.WithLabelValues("ok").Inc()

	if s.history != nil {
		if err := s.history.Append(r.Context(), req.Question, req.Model, res.Answer); err != nil {
			// History is an audit convenience; never fail the query over it.
			log.Warn("could not record query history", slog.Any("error", err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Error("query encode error", slog.Any("error", err))
	}
}

// handleHistory handles GET /api/v1/history, returning the most recent
// answered queries newest-first. The optional limit parameter caps the
// result count (default 20, max 200).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 200)
	}

	resp := historyResponse{Entries: []store.Entry{}}
	if s.history != nil {
		entries, err := s.history.Recent(r.Context(), limit)
		if err != nil {
			log.Error("history read failed", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "could not read history")
			return
		}
		if entries != nil {
			resp.Entries = entries
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("history encode error", slog.Any("error", err))
	}
}

// writeJSONError writes a JSON error body with the given status.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

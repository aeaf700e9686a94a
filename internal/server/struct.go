package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbqa-dev/kbqa-go/internal/orchestrator"
	"github.com/kbqa-dev/kbqa-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must exceed the generation retry budget or answers get cut off.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the static key required in the X-API-KEY header on all
	// /api/v1/* routes. If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs GET /metrics.
	// If nil, a fresh registry is created.
	Registry *prometheus.Registry
}

// answerer is the interface handleQuery calls to answer a question.
// *orchestrator.Orchestrator satisfies it; tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, question, model string) (*orchestrator.QueryResult, error)
}

// Server is the HTTP server that exposes the question-answering pipeline.
type Server struct {
	// answerer runs the retrieval and generation pipeline for each query.
	answerer answerer
	// history persists answered queries. Nil disables the history log and
	// the /api/v1/history endpoint returns an empty list.
	history store.HistoryStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/v1/query.
type queryRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// Model optionally names the model to answer with. Empty selects the
	// configured default.
	Model string `json:"model,omitempty"`
}

// historyResponse is the JSON body for GET /api/v1/history.
type historyResponse struct {
	// Entries holds the most recent answered queries, newest-first.
	Entries []store.Entry `json:"entries"`
}

// errorResponse is the JSON body for error statuses on /api/v1 routes.
type errorResponse struct {
	// Error is a human-readable description of the failure.
	Error string `json:"error"`
}

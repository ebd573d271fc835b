package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/medrag-io/medrag-go/internal/agent"
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
	// Must be long enough for a full agent loop.
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
	// endpoints (requests/second). Defaults to defaultRateLimit if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP.
	// Defaults to defaultRateBurst if zero.
	RateBurst int
	// APIKey is the Bearer token required on protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry is the Prometheus registry for server metrics. If nil a
	// dedicated registry is created; tests inject their own to stay hermetic.
	Registry *prometheus.Registry
}

// answerer is the interface handleAsk calls to answer a query.
// *agent.Agent satisfies it; tests inject a fake.
type answerer interface {
	// Answer runs the full loop for one query. The returned Run is never
	// nil and always carries a printable answer.
	Answer(ctx context.Context, query string) *agent.Run
}

// Server is the HTTP server that wraps the medrag agent.
type Server struct {
	// agent answers /api/ask queries.
	agent answerer
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

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
}

// askResponse is the JSON response for POST /api/ask. Answer is always a
// non-empty string; failed runs carry a fallback answer and set Error.
type askResponse struct {
	// Answer is the final answer text.
	Answer string `json:"answer"`
	// RetrievalCount is the number of retrieval round trips the agent made.
	RetrievalCount int `json:"retrieval_count"`
	// InputTokens and OutputTokens are the observed or estimated usage.
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	// CostUSD is the estimated request cost.
	CostUSD float64 `json:"cost_usd"`
	// LatencyMS is the wall-clock duration of the run in milliseconds.
	LatencyMS int64 `json:"latency_ms"`
	// StepLimitHit reports that the reasoning loop hit its step bound.
	StepLimitHit bool `json:"step_limit_hit,omitempty"`
	// Error is the terminal error text for failed runs, empty on success.
	Error string `json:"error,omitempty"`
}

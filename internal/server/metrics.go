package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsNamespace prefixes every metric exposed on /metrics.
const metricsNamespace = "medrag"

// serverMetrics holds the Prometheus instruments for the HTTP server.
// Registration goes through an injected Registerer so tests can use a
// fresh registry per test case.
type serverMetrics struct {
	// askRequestsTotal counts agent queries by outcome (ok, step_limit, error).
	askRequestsTotal *prometheus.CounterVec
	// askDurationSeconds observes end-to-end agent query latency by outcome.
	askDurationSeconds *prometheus.HistogramVec
	// askInFlight tracks agent queries currently being answered.
	askInFlight prometheus.Gauge

	// httpRequestsTotal counts HTTP requests by method, handler and status code.
	httpRequestsTotal *prometheus.CounterVec
	// httpDurationSeconds observes HTTP handler latency by method and handler.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers the server's instruments on reg and returns them.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		askRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total agent queries handled, by outcome.",
		}, []string{"outcome"}),

		askDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "End-to-end agent query latency in seconds, by outcome.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		askInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ask",
			Name:      "in_flight",
			Help:      "Agent queries currently being answered.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests, by method, handler and status code.",
		}, []string{"method", "handler", "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "HTTP handler latency in seconds, by method and handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),
	}
}

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/medrag-io/medrag-go/internal/logging"
)

// probeTimeout bounds each individual dependency probe in the readiness check.
const probeTimeout = 5 * time.Second

// Pinger probes a single upstream dependency. Implementations must respect
// context cancellation and return a non-nil error when the dependency is
// unreachable or unhealthy.
type Pinger interface {
	// Ping checks the dependency, returning nil when it is healthy.
	Ping(ctx context.Context) error
	// Name identifies the dependency in the readiness response.
	Name() string
}

// readyCheck is the per-dependency entry in the readiness response.
type readyCheck struct {
	// Name identifies the dependency.
	Name string `json:"name"`
	// Status is "ok" or "failed".
	Status string `json:"status"`
	// Error carries the failure detail, omitted when healthy.
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON body for GET /api/ready.
type readyResponse struct {
	// Status is "ready" when every check passed, "not ready" otherwise.
	Status string `json:"status"`
	// Checks lists the individual dependency results in probe order.
	Checks []readyCheck `json:"checks,omitempty"`
}

// handleReady handles GET /api/ready. Every configured pinger is probed in
// order with a per-probe timeout; any failure yields 503 with the full check
// list so operators can see which dependency is down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{Status: "ready"}
	status := http.StatusOK

	for _, p := range s.pingers {
		check := readyCheck{Name: p.Name(), Status: "ok"}

		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Ping(ctx)
		cancel()

		if err != nil {
			check.Status = "failed"
			check.Error = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			logging.FromContext(r.Context()).Warn("readiness probe failed",
				slog.String("dependency", p.Name()),
				slog.Any("error", err),
			)
		}

		resp.Checks = append(resp.Checks, check)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

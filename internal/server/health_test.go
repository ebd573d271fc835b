package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medrag-io/medrag-go/internal/telemetry"
)

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	// name is returned by Name().
	name string
	// err is returned by Ping(); nil means healthy.
	err error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// newReadyTestServer builds a *Server with the given pingers wired in.
func newReadyTestServer(pingers ...Pinger) *Server {
	s := newTestServer()
	s.pingers = pingers
	return s
}

// TestHandleHealth_OK verifies that GET /api/health returns 200 with a JSON
// body containing {"status":"ok"}.
func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d — body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status: expected %q, got %q", "ok", body["status"])
	}
}

// TestHandleReady_NoPingers verifies that /api/ready returns 200 ready when
// no pingers are registered (liveness-only mode).
func TestHandleReady_NoPingers(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ready" {
		t.Errorf("status: expected %q, got %q", "ready", resp.Status)
	}
	if len(resp.Checks) != 0 {
		t.Errorf("expected 0 checks, got %d", len(resp.Checks))
	}
}

// TestHandleReady_AllHealthy verifies that /api/ready returns 200 with every
// check marked ok when all pingers succeed.
func TestHandleReady_AllHealthy(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(
		&fakePinger{name: "qdrant"},
		&fakePinger{name: "ollama"},
	)
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ready" {
		t.Errorf("status: expected ready, got %q", resp.Status)
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(resp.Checks))
	}
	for _, c := range resp.Checks {
		if c.Status != "ok" {
			t.Errorf("check %s: expected ok, got %q (%s)", c.Name, c.Status, c.Error)
		}
	}
}

// TestHandleReady_OneFailing verifies that a single failing dependency flips
// the endpoint to 503 while still reporting the healthy checks.
func TestHandleReady_OneFailing(t *testing.T) {
	t.Parallel()

	s := newReadyTestServer(
		&fakePinger{name: "qdrant"},
		&fakePinger{name: "mlflow", err: errors.New("connection refused")},
	)
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "not ready" {
		t.Errorf("status: expected %q, got %q", "not ready", resp.Status)
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(resp.Checks))
	}
	if resp.Checks[0].Status != "ok" {
		t.Errorf("qdrant check: expected ok, got %q", resp.Checks[0].Status)
	}
	if resp.Checks[1].Status != "failed" || resp.Checks[1].Error == "" {
		t.Errorf("mlflow check: expected failed with error, got %+v", resp.Checks[1])
	}
}

// TestMLflowSinkAsPinger verifies the telemetry sink plugs directly into the
// readiness probe list.
func TestMLflowSinkAsPinger(t *testing.T) {
	t.Parallel()

	tracking := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer tracking.Close()

	sink, err := telemetry.NewMLflowSink(telemetry.MLflowConfig{
		BaseURL:    tracking.URL,
		Experiment: "medrag",
	})
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}

	var p Pinger = sink
	if p.Name() != "mlflow" {
		t.Errorf("Name: expected mlflow, got %q", p.Name())
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping against healthy tracking server: %v", err)
	}
}

// TestHTTPPinger verifies 2xx-means-healthy semantics against a local server.
func TestHTTPPinger(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	p := NewHTTPPinger("mlflow", healthy.URL+"/health")
	if p.Name() != "mlflow" {
		t.Errorf("Name: expected mlflow, got %q", p.Name())
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("healthy endpoint: unexpected error: %v", err)
	}

	if err := NewHTTPPinger("mlflow", broken.URL).Ping(context.Background()); err == nil {
		t.Error("expected error for 500 response")
	}

	if err := NewHTTPPinger("mlflow", "http://127.0.0.1:1/nope").Ping(context.Background()); err == nil {
		t.Error("expected error for unreachable endpoint")
	}
}

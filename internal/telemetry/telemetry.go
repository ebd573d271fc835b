// Package telemetry records per-query experiment runs to a tracking backend.
// Recording is best-effort: callers log sink failures and keep serving.
package telemetry

import (
	"context"
	"fmt"
	"sync"
)

// Status is the terminal state reported for a run.
type Status string

const (
	// StatusFinished marks a run that completed normally.
	StatusFinished Status = "FINISHED"

	// StatusFailed marks a run that ended in an error or step-limit abort.
	StatusFailed Status = "FAILED"
)

// Sink receives run lifecycle events. Every started run must be ended exactly
// once, including on failure paths.
type Sink interface {
	// StartRun opens a run with the given name and string parameters and
	// returns an opaque run ID for the matching EndRun call.
	StartRun(ctx context.Context, name string, params map[string]string) (string, error)

	// EndRun closes the run, attaching final metrics and named artifacts.
	EndRun(ctx context.Context, runID string, status Status, metrics map[string]float64, artifacts map[string][]byte) error
}

// NoopSink discards all events. Used when no tracking backend is configured.
type NoopSink struct{}

func (NoopSink) StartRun(context.Context, string, map[string]string) (string, error) {
	return "", nil
}

func (NoopSink) EndRun(context.Context, string, Status, map[string]float64, map[string][]byte) error {
	return nil
}

// RecordedRun is a run captured by MemorySink.
type RecordedRun struct {
	ID        string
	Name      string
	Params    map[string]string
	Status    Status
	Metrics   map[string]float64
	Artifacts map[string][]byte
	Ended     bool
}

// MemorySink keeps runs in memory for tests.
type MemorySink struct {
	mu   sync.Mutex
	runs []*RecordedRun
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) StartRun(_ context.Context, name string, params map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := &RecordedRun{
		ID:     fmt.Sprintf("run-%d", len(m.runs)+1),
		Name:   name,
		Params: params,
	}
	m.runs = append(m.runs, run)
	return run.ID, nil
}

func (m *MemorySink) EndRun(_ context.Context, runID string, status Status, metrics map[string]float64, artifacts map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.ID == runID {
			if run.Ended {
				return fmt.Errorf("run %s already ended", runID)
			}
			run.Status = status
			run.Metrics = metrics
			run.Artifacts = artifacts
			run.Ended = true
			return nil
		}
	}
	return fmt.Errorf("unknown run %s", runID)
}

// Runs returns a snapshot of all recorded runs in start order.
func (m *MemorySink) Runs() []*RecordedRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*RecordedRun, len(m.runs))
	copy(out, m.runs)
	return out
}

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MLflowConfig configures the MLflow tracking sink.
type MLflowConfig struct {
	// BaseURL is the tracking server root, e.g. "http://localhost:5000".
	BaseURL string

	// Experiment is the experiment name runs are grouped under.
	Experiment string

	// Timeout bounds each tracking request. Defaults to 10 seconds.
	Timeout time.Duration
}

// MLflowSink records runs against an MLflow tracking server via its REST API.
type MLflowSink struct {
	baseURL    string
	experiment string
	client     *http.Client

	mu           sync.Mutex
	experimentID string
}

// NewMLflowSink validates the config and returns an MLflow-backed sink.
// No network call is made until the first run starts.
func NewMLflowSink(cfg MLflowConfig) (*MLflowSink, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mlflow: base URL is required")
	}
	if cfg.Experiment == "" {
		return nil, fmt.Errorf("mlflow: experiment name is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MLflowSink{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		experiment: cfg.Experiment,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// StartRun resolves the experiment (creating it if needed) and opens a run.
func (s *MLflowSink) StartRun(ctx context.Context, name string, params map[string]string) (string, error) {
	expID, err := s.resolveExperiment(ctx)
	if err != nil {
		return "", err
	}

	var created struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	err = s.post(ctx, "/api/2.0/mlflow/runs/create", map[string]any{
		"experiment_id": expID,
		"run_name":      name,
		"start_time":    time.Now().UnixMilli(),
	}, &created)
	if err != nil {
		return "", fmt.Errorf("mlflow: create run: %w", err)
	}
	runID := created.Run.Info.RunID
	if runID == "" {
		return "", fmt.Errorf("mlflow: create run returned no run_id")
	}

	if len(params) > 0 {
		batch := map[string]any{"run_id": runID, "params": kvList(params)}
		if err := s.post(ctx, "/api/2.0/mlflow/runs/log-batch", batch, nil); err != nil {
			return "", fmt.Errorf("mlflow: log params: %w", err)
		}
	}
	return runID, nil
}

// EndRun logs final metrics and artifacts, then marks the run terminated.
// The run is always updated even when metric or artifact logging fails, so
// no run is left dangling in RUNNING state.
func (s *MLflowSink) EndRun(ctx context.Context, runID string, status Status, metrics map[string]float64, artifacts map[string][]byte) error {
	if runID == "" {
		return fmt.Errorf("mlflow: run ID is required")
	}

	var firstErr error
	if len(metrics) > 0 {
		now := time.Now().UnixMilli()
		entries := make([]map[string]any, 0, len(metrics))
		for k, v := range metrics {
			entries = append(entries, map[string]any{"key": k, "value": v, "timestamp": now, "step": 0})
		}
		batch := map[string]any{"run_id": runID, "metrics": entries}
		if err := s.post(ctx, "/api/2.0/mlflow/runs/log-batch", batch, nil); err != nil {
			firstErr = fmt.Errorf("mlflow: log metrics: %w", err)
		}
	}

	for name, data := range artifacts {
		if err := s.putArtifact(ctx, runID, name, data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mlflow: upload artifact %s: %w", name, err)
		}
	}

	err := s.post(ctx, "/api/2.0/mlflow/runs/update", map[string]any{
		"run_id":   runID,
		"status":   string(status),
		"end_time": time.Now().UnixMilli(),
	}, nil)
	if err != nil && firstErr == nil {
		firstErr = fmt.Errorf("mlflow: update run: %w", err)
	}
	return firstErr
}

// Name identifies the tracking server in readiness responses.
func (s *MLflowSink) Name() string { return "mlflow" }

// Ping reports whether the tracking server answers its health endpoint.
// Together with Name it lets the sink serve as a server readiness probe.
func (s *MLflowSink) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mlflow: health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mlflow: health check returned status %d", resp.StatusCode)
	}
	return nil
}

// resolveExperiment returns the cached experiment ID, resolving or creating the
// experiment on first use.
func (s *MLflowSink) resolveExperiment(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.experimentID != "" {
		return s.experimentID, nil
	}

	var found struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	getURL := s.baseURL + "/api/2.0/mlflow/experiments/get-by-name?experiment_name=" + url.QueryEscape(s.experiment)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mlflow: get experiment: %w", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.Unmarshal(body, &found); err != nil {
			return "", fmt.Errorf("mlflow: decode experiment: %w", err)
		}
		s.experimentID = found.Experiment.ExperimentID
	case resp.StatusCode == http.StatusNotFound:
		var created struct {
			ExperimentID string `json:"experiment_id"`
		}
		err := s.post(ctx, "/api/2.0/mlflow/experiments/create", map[string]any{"name": s.experiment}, &created)
		if err != nil {
			return "", fmt.Errorf("mlflow: create experiment: %w", err)
		}
		s.experimentID = created.ExperimentID
	default:
		return "", fmt.Errorf("mlflow: get experiment returned status %d: %s", resp.StatusCode, string(body))
	}

	if s.experimentID == "" {
		return "", fmt.Errorf("mlflow: could not resolve experiment %q", s.experiment)
	}
	return s.experimentID, nil
}

// putArtifact uploads one artifact through the proxied artifact API.
func (s *MLflowSink) putArtifact(ctx context.Context, runID, name string, data []byte) error {
	s.mu.Lock()
	expID := s.experimentID
	s.mu.Unlock()
	putURL := fmt.Sprintf("%s/api/2.0/mlflow-artifacts/artifacts/%s/%s/artifacts/%s",
		s.baseURL, url.PathEscape(expID), url.PathEscape(runID), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// post sends a JSON request and optionally decodes a JSON response into out.
func (s *MLflowSink) post(ctx context.Context, path string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// kvList converts a string map into MLflow's key/value entry list.
func kvList(m map[string]string) []map[string]string {
	out := make([]map[string]string, 0, len(m))
	for k, v := range m {
		out = append(out, map[string]string{"key": k, "value": v})
	}
	return out
}

// Package evaluation measures retrieval quality against a labelled question
// set. Each sample names the source document that should appear in the top-k
// results for its question; the harness reports the fraction of questions for
// which it does. Evaluation is read-only: it never writes to the index.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/medrag-io/medrag-go/internal/logging"
	"github.com/medrag-io/medrag-go/internal/rag"
	"github.com/medrag-io/medrag-go/internal/telemetry"
)

// Sample is one labelled evaluation question.
type Sample struct {
	// Question is the query submitted to the retriever.
	Question string `json:"question"`

	// ExpectedDocFilename is the source file that should be retrieved.
	ExpectedDocFilename string `json:"expected_doc_filename"`
}

// Result is the outcome of one evaluation pass.
type Result struct {
	// TopK is the retrieval depth the pass was run at.
	TopK int

	// Total is the number of samples evaluated.
	Total int

	// Hits is the number of questions whose expected document appeared in
	// the top-k results.
	Hits int

	// HitRate is Hits/Total, 0.0 when the sample set is empty.
	HitRate float64

	// Misses lists the questions whose expected document was not retrieved.
	Misses []Sample

	// Errors maps questions to retrieval failures. Errored questions count
	// as misses.
	Errors map[string]error
}

// LoadSamples reads a JSON evaluation dataset from path. The file holds an
// array of objects with "question" and "expected_doc_filename" keys.
func LoadSamples(path string) ([]Sample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("evaluation: read dataset %s: %w", path, err)
	}
	var samples []Sample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, fmt.Errorf("evaluation: parse dataset %s: %w", path, err)
	}
	for i, s := range samples {
		if s.Question == "" || s.ExpectedDocFilename == "" {
			return nil, fmt.Errorf("evaluation: sample %d is missing question or expected_doc_filename", i)
		}
	}
	return samples, nil
}

// Harness runs retrieval-only evaluation passes.
type Harness struct {
	retriever rag.Retriever
	sink      telemetry.Sink
	topK      int
}

// NewHarness constructs a Harness. topK values below 1 fall back to 10, and a
// nil sink disables telemetry.
func NewHarness(retriever rag.Retriever, sink telemetry.Sink, topK int) (*Harness, error) {
	if retriever == nil {
		return nil, fmt.Errorf("evaluation: retriever must not be nil")
	}
	if sink == nil {
		sink = telemetry.NoopSink{}
	}
	if topK < 1 {
		topK = 10
	}
	return &Harness{retriever: retriever, sink: sink, topK: topK}, nil
}

// Evaluate runs every sample through the retriever and returns the hit rate
// at the configured depth. A question scores a hit when any retrieved chunk's
// source matches the expected file name. One telemetry run covers the whole
// pass; sink failures are logged and ignored.
func (h *Harness) Evaluate(ctx context.Context, samples []Sample) (*Result, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	res := &Result{
		TopK:   h.topK,
		Total:  len(samples),
		Errors: map[string]error{},
	}

	runID, err := h.sink.StartRun(ctx, "retrieval-eval", map[string]string{
		"top_k":         strconv.Itoa(h.topK),
		"num_questions": strconv.Itoa(len(samples)),
	})
	if err != nil {
		log.Warn("telemetry: start eval run failed", slog.Any("error", err))
		runID = ""
	}

	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		docs, err := h.retriever.Retrieve(ctx, sample.Question, h.topK)
		if err != nil {
			res.Errors[sample.Question] = err
			res.Misses = append(res.Misses, sample)
			log.Warn("evaluation: retrieval failed",
				slog.String("question", sample.Question), slog.Any("error", err))
			continue
		}
		if containsSource(docs, sample.ExpectedDocFilename) {
			res.Hits++
		} else {
			res.Misses = append(res.Misses, sample)
		}
	}

	if res.Total > 0 {
		res.HitRate = float64(res.Hits) / float64(res.Total)
	}

	if runID != "" {
		metrics := map[string]float64{
			"hit_rate_at_k":   res.HitRate,
			"hits":            float64(res.Hits),
			"num_questions":   float64(res.Total),
			"latency_seconds": time.Since(start).Seconds(),
		}
		if err := h.sink.EndRun(ctx, runID, telemetry.StatusFinished, metrics, nil); err != nil {
			log.Warn("telemetry: end eval run failed", slog.Any("error", err))
		}
	}

	return res, nil
}

// containsSource reports whether any retrieved chunk came from the expected
// file.
func containsSource(docs []rag.Document, fileName string) bool {
	for _, doc := range docs {
		if doc.Source == fileName {
			return true
		}
	}
	return false
}

// Package agent wires together the Eino ReAct agent with the document search
// tool and per-run telemetry to form the core medrag assistant. The agent
// handles the full loop: it decides when to search the corpus, reads the
// retrieved passages, and produces a grounded answer within a bounded number
// of reasoning steps.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	einoagent "github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/medrag-io/medrag-go/internal/budget"
	"github.com/medrag-io/medrag-go/internal/logging"
	"github.com/medrag-io/medrag-go/internal/rag"
	"github.com/medrag-io/medrag-go/internal/store"
	"github.com/medrag-io/medrag-go/internal/telemetry"
	"github.com/medrag-io/medrag-go/internal/tools"
)

// promptVersion tags every telemetry run so prompt changes can be compared
// across experiments.
const promptVersion = "v1"

// errorAnswerPrefix is prepended to the fallback answer when a run fails.
// The caller always receives a printable answer string, never an empty one.
const errorAnswerPrefix = "I encountered an error while processing your query: "

// stepLimitAnswer is returned when the agent exhausts its step bound without
// ever producing answer text.
const stepLimitAnswer = "I could not reach a final answer for your query within the reasoning step limit."

// systemPrompt establishes the assistant's persona and grounding rules.
const systemPrompt = `You are MedRAG, a careful medical information assistant for healthcare
professionals. You answer questions about clinical guidelines, research
findings and reference material held in a curated document corpus.

Rules you must follow:
- Always call the search_documents tool before answering a clinical question.
  Ground every claim in the retrieved passages and cite the source file names.
- If the retrieved passages do not cover the question, say so plainly instead
  of guessing. Never invent citations or dosages.
- Keep answers concise and clinically precise. Prefer the terminology used in
  the source material.
- You advise clinicians; you do not diagnose patients or replace clinical
  judgement, and you say so when a question asks for a patient-specific
  decision.`

// Config holds the dependencies required to construct an Agent.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Embedder and VectorStore back the per-run retriever.
	Embedder    rag.Embedder
	VectorStore rag.VectorStore

	// Sink receives one telemetry run per query. Defaults to NoopSink.
	Sink telemetry.Sink

	// History is the optional run store persisting answered queries.
	// If nil, runs are not persisted.
	History store.RunStore

	// ModelName and Temperature are recorded as run parameters.
	ModelName   string
	Temperature float64

	// MaxSteps bounds the reasoning loop. Defaults to 10 if zero.
	MaxSteps int

	// TopK is the number of chunks per retrieval. Defaults to 10 if zero.
	TopK int

	// Rates prices the run's token usage. Defaults to budget.DefaultRates.
	Rates budget.Rates
}

// Agent answers queries over the document corpus with a bounded ReAct loop.
type Agent struct {
	chatModel   model.ToolCallingChatModel
	embedder    rag.Embedder
	vectorStore rag.VectorStore
	sink        telemetry.Sink
	history     store.RunStore
	modelName   string
	temperature float64
	maxSteps    int
	topK        int
	rates       budget.Rates
}

// New validates the config and constructs an Agent.
func New(cfg *Config) (*Agent, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("agent: Embedder must not be nil")
	}
	if cfg.VectorStore == nil {
		return nil, fmt.Errorf("agent: VectorStore must not be nil")
	}

	sink := cfg.Sink
	if sink == nil {
		sink = telemetry.NoopSink{}
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 10
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 10
	}
	rates := cfg.Rates
	if rates == (budget.Rates{}) {
		rates = budget.DefaultRates
	}

	return &Agent{
		chatModel:   cfg.ChatModel,
		embedder:    cfg.Embedder,
		vectorStore: cfg.VectorStore,
		sink:        sink,
		history:     cfg.History,
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		maxSteps:    maxSteps,
		topK:        topK,
		rates:       rates,
	}, nil
}

// Answer runs the full loop for one query and returns the completed Run.
// The returned Run is never nil and its Answer field is never empty: model
// and step-limit failures are folded into a fallback answer and recorded in
// Run.Err. Exactly one telemetry run is opened and closed per call,
// including on failure paths; telemetry failures are logged and ignored.
func (a *Agent) Answer(ctx context.Context, query string) *Run {
	log := logging.FromContext(ctx)
	start := time.Now()

	run := &Run{Query: query}

	// Retriever and collector are per-run so their counters cover exactly
	// this query.
	retriever, err := rag.NewSessionRetriever(a.embedder, a.vectorStore, a.topK)
	if err != nil {
		return a.finish(ctx, run, nil, nil, "", start, err)
	}
	coll := &collector{}

	runID := a.startTelemetry(ctx, query)

	searchTool := tools.NewSearchTool(retriever, a.topK)
	reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: a.chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: []tool.BaseTool{searchTool},
		},
		MaxStep: a.maxSteps,
	})
	if err != nil {
		return a.finish(ctx, run, retriever, coll, runID, start, fmt.Errorf("agent: construct loop: %w", err))
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(query),
	}

	out, err := reactAgent.Generate(ctx, messages,
		einoagent.WithComposeOptions(compose.WithCallbacks(coll.handler())))
	switch {
	case err == nil:
		// A clean loop with no terminal text degrades to echoing the query
		// so the caller always gets a printable string.
		run.Answer = extractAnswer(out, query)
	case isStepLimit(err):
		run.StepLimitHit = true
		run.Err = err
		// Surface the model's last partial reasoning when the loop was cut off.
		if partial := coll.lastModelContent(); partial != "" {
			run.Answer = partial
		} else {
			run.Answer = stepLimitAnswer
		}
		log.Warn("agent: step limit reached", slog.Int("max_steps", a.maxSteps))
	default:
		run.Err = err
		run.Answer = errorAnswerPrefix + err.Error()
	}

	return a.finish(ctx, run, retriever, coll, runID, start, run.Err)
}

// isStepLimit reports whether err is the loop's step-bound termination.
func isStepLimit(err error) bool {
	if errors.Is(err, compose.ErrExceedMaxSteps) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "max step") || strings.Contains(msg, "exceeds max")
}

// startTelemetry opens the telemetry run and returns its ID, or "" when the
// sink is unavailable. Failures are logged, never fatal.
func (a *Agent) startTelemetry(ctx context.Context, query string) string {
	runID, err := a.sink.StartRun(ctx, runName(query), map[string]string{
		"model":          a.modelName,
		"temperature":    strconv.FormatFloat(a.temperature, 'f', -1, 64),
		"top_k":          strconv.Itoa(a.topK),
		"query":          query,
		"prompt_version": promptVersion,
	})
	if err != nil {
		logging.FromContext(ctx).Warn("telemetry: start run failed", slog.Any("error", err))
		return ""
	}
	return runID
}

// finish completes accounting for the run, closes the telemetry run opened by
// Answer, and persists the record. Safe to call with a nil retriever or
// collector on early failures.
func (a *Agent) finish(ctx context.Context, run *Run, retriever *rag.SessionRetriever, coll *collector, runID string, start time.Time, terminalErr error) *Run {
	log := logging.FromContext(ctx)

	if terminalErr != nil && run.Answer == "" {
		run.Err = terminalErr
		run.Answer = errorAnswerPrefix + terminalErr.Error()
	}
	run.Latency = time.Since(start)

	if retriever != nil {
		run.RetrievalCount, run.MeanDistance = retriever.Stats()
	}
	if coll != nil {
		run.Steps = coll.transcript()
		run.InputTokens, run.OutputTokens = coll.usage()
	}
	if run.InputTokens == 0 && run.OutputTokens == 0 {
		// Backend reported no usage; fall back to word counts of the query
		// and answer.
		run.InputTokens = budget.Estimate(run.Query)
		run.OutputTokens = budget.Estimate(run.Answer)
	}
	run.CostUSD = budget.Cost(run.InputTokens, run.OutputTokens, a.rates)

	a.endTelemetry(ctx, run, runID)

	if a.history != nil {
		rec := store.RunRecord{
			Query:          run.Query,
			Answer:         run.Answer,
			Latency:        run.Latency,
			RetrievalCount: run.RetrievalCount,
			InputTokens:    run.InputTokens,
			OutputTokens:   run.OutputTokens,
			CostUSD:        run.CostUSD,
		}
		if run.Err != nil {
			rec.Error = run.Err.Error()
		}
		if err := a.history.Append(ctx, rec); err != nil {
			log.Warn("history: failed to persist run", slog.Any("error", err))
		}
	}

	return run
}

// endTelemetry closes the telemetry run with final metrics and the trace
// artifact. No-op when StartRun failed.
func (a *Agent) endTelemetry(ctx context.Context, run *Run, runID string) {
	if runID == "" {
		return
	}
	status := telemetry.StatusFinished
	if run.Err != nil {
		status = telemetry.StatusFailed
	}
	metrics := map[string]float64{
		"latency_seconds":      run.Latency.Seconds(),
		"retrieval_count":      float64(run.RetrievalCount),
		"avg_chunk_distance":   run.MeanDistance,
		"answer_length_tokens": float64(budget.Estimate(run.Answer)),
		"input_tokens":         float64(run.InputTokens),
		"output_tokens":        float64(run.OutputTokens),
		"estimated_cost_usd":   run.CostUSD,
	}

	var artifacts map[string][]byte
	if trace, err := json.MarshalIndent(run, "", "  "); err == nil {
		artifacts = map[string][]byte{"trace.json": trace}
	}

	if err := a.sink.EndRun(ctx, runID, status, metrics, artifacts); err != nil {
		logging.FromContext(ctx).Warn("telemetry: end run failed", slog.Any("error", err))
	}
}

// runName derives a short telemetry run name from the query.
func runName(query string) string {
	const max = 60
	name := strings.Join(strings.Fields(query), " ")
	// Truncate on a rune boundary so multibyte queries stay valid UTF-8.
	if runes := []rune(name); len(runes) > max {
		name = string(runes[:max])
	}
	if name == "" {
		name = "query"
	}
	return name
}

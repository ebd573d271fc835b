package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/medrag-io/medrag-go/internal/budget"
	"github.com/medrag-io/medrag-go/internal/rag"
	"github.com/medrag-io/medrag-go/internal/telemetry"
)

// scriptedModel returns canned messages in order, then repeats the last one.
// It satisfies model.ToolCallingChatModel without any network access.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	err     error
	calls   int
}

func (m *scriptedModel) Generate(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	idx := m.calls
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	m.calls++
	return m.replies[idx], nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// memEmbedder returns fixed unit vectors.
type memEmbedder struct{}

func (memEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// memStore returns a fixed corpus slice for every search.
type memStore struct {
	docs []rag.Document
}

func (s *memStore) Upsert(context.Context, []rag.Document, [][]float32) error { return nil }
func (s *memStore) Delete(context.Context, []string) error                    { return nil }
func (s *memStore) Close() error                                              { return nil }
func (s *memStore) Search(_ context.Context, _ []float32, topK int) ([]rag.Document, error) {
	if topK < len(s.docs) {
		return s.docs[:topK], nil
	}
	return s.docs, nil
}

func searchCall(query string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID: "call-1",
			Function: schema.FunctionCall{
				Name:      "search_documents",
				Arguments: fmt.Sprintf(`{"query":%q}`, query),
			},
		}},
	}
}

func newTestAgent(t *testing.T, m *scriptedModel, sink telemetry.Sink) *Agent {
	t.Helper()
	a, err := New(&Config{
		ChatModel: m,
		Embedder:  memEmbedder{},
		VectorStore: &memStore{docs: []rag.Document{
			{Content: "give broad-spectrum antibiotics within one hour", Source: "sepsis-guideline.txt", Distance: 0.2},
		}},
		Sink:      sink,
		ModelName: "test-model",
		MaxSteps:  10,
		TopK:      4,
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

func Test_Agent_AnswerWithRetrieval(t *testing.T) {
	t.Parallel()

	m := &scriptedModel{replies: []*schema.Message{
		searchCall("sepsis treatment"),
		schema.AssistantMessage("Per sepsis-guideline.txt, give broad-spectrum antibiotics within one hour.", nil),
	}}
	sink := telemetry.NewMemorySink()
	a := newTestAgent(t, m, sink)

	run := a.Answer(context.Background(), "how do I treat sepsis?")

	if run.Err != nil {
		t.Fatalf("run error: %v", run.Err)
	}
	if !strings.Contains(run.Answer, "broad-spectrum antibiotics") {
		t.Errorf("answer = %q", run.Answer)
	}
	if run.RetrievalCount != 1 {
		t.Errorf("retrieval count = %d, want 1", run.RetrievalCount)
	}
	if run.MeanDistance < 0.19 || run.MeanDistance > 0.21 {
		t.Errorf("mean distance = %v, want ~0.2", run.MeanDistance)
	}
	if run.InputTokens == 0 || run.OutputTokens == 0 {
		t.Error("token fallback not applied")
	}
	if run.CostUSD <= 0 {
		t.Errorf("cost = %v, want > 0", run.CostUSD)
	}

	// Transcript holds the tool observation between the two model turns.
	var sawTool bool
	for _, step := range run.Steps {
		if step.Kind == StepTool && step.Name == "search_documents" {
			sawTool = true
			if !strings.Contains(step.Content, "sepsis-guideline.txt") {
				t.Errorf("tool observation missing source: %q", step.Content)
			}
		}
	}
	if !sawTool {
		t.Errorf("no tool step in transcript: %+v", run.Steps)
	}

	// Exactly one telemetry run, started and ended.
	runs := sink.Runs()
	if len(runs) != 1 {
		t.Fatalf("want 1 telemetry run, got %d", len(runs))
	}
	rec := runs[0]
	if !rec.Ended || rec.Status != telemetry.StatusFinished {
		t.Errorf("telemetry run not finished: %+v", rec)
	}
	if rec.Params["model"] != "test-model" || rec.Params["prompt_version"] != promptVersion {
		t.Errorf("run params = %v", rec.Params)
	}
	if _, ok := rec.Metrics["estimated_cost_usd"]; !ok {
		t.Errorf("missing cost metric: %v", rec.Metrics)
	}
	if _, ok := rec.Artifacts["trace.json"]; !ok {
		t.Error("missing trace artifact")
	}
}

func Test_Agent_ModelFailureProducesFallbackAnswer(t *testing.T) {
	t.Parallel()

	m := &scriptedModel{err: fmt.Errorf("backend unavailable")}
	sink := telemetry.NewMemorySink()
	a := newTestAgent(t, m, sink)

	run := a.Answer(context.Background(), "anything")

	if run.Err == nil {
		t.Fatal("want run error")
	}
	if !strings.HasPrefix(run.Answer, errorAnswerPrefix) {
		t.Errorf("answer = %q, want %q prefix", run.Answer, errorAnswerPrefix)
	}
	if !strings.Contains(run.Answer, "backend unavailable") {
		t.Errorf("answer should carry the cause: %q", run.Answer)
	}

	// Failure path still closes its telemetry run.
	runs := sink.Runs()
	if len(runs) != 1 || !runs[0].Ended || runs[0].Status != telemetry.StatusFailed {
		t.Errorf("telemetry run not closed as FAILED: %+v", runs)
	}
}

func Test_Agent_StepLimit(t *testing.T) {
	t.Parallel()

	// Model never stops calling the tool, so the loop must cut it off.
	m := &scriptedModel{replies: []*schema.Message{searchCall("loop")}}
	sink := telemetry.NewMemorySink()
	a, err := New(&Config{
		ChatModel:   m,
		Embedder:    memEmbedder{},
		VectorStore: &memStore{},
		Sink:        sink,
		MaxSteps:    4,
	})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}

	run := a.Answer(context.Background(), "never ends")

	if !run.StepLimitHit {
		t.Fatalf("step limit not detected, err = %v", run.Err)
	}
	if run.Answer == "" {
		t.Error("step-limit run must still produce an answer")
	}
	if m.calls > 4 {
		t.Errorf("model called %d times, bound was 4", m.calls)
	}
	runs := sink.Runs()
	if len(runs) != 1 || runs[0].Status != telemetry.StatusFailed {
		t.Errorf("step-limit run should end FAILED: %+v", runs)
	}
}

func Test_Agent_ConfigValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(&Config{Embedder: memEmbedder{}, VectorStore: &memStore{}}); err == nil {
		t.Error("nil ChatModel should fail")
	}
	if _, err := New(&Config{ChatModel: &scriptedModel{}, VectorStore: &memStore{}}); err == nil {
		t.Error("nil Embedder should fail")
	}
	if _, err := New(&Config{ChatModel: &scriptedModel{}, Embedder: memEmbedder{}}); err == nil {
		t.Error("nil VectorStore should fail")
	}
}

func Test_ExtractAnswer(t *testing.T) {
	t.Parallel()

	const fb = "fallback"
	cases := []struct {
		name string
		msg  *schema.Message
		want string
	}{
		{"nil message", nil, fb},
		{"assistant text", schema.AssistantMessage("the answer", nil), "the answer"},
		{"assistant blank", schema.AssistantMessage("   ", nil), fb},
		{"tool text", &schema.Message{Role: schema.Tool, Content: "raw observation"}, "raw observation"},
		{"unknown role", &schema.Message{Role: schema.RoleType("other"), Content: "x"}, fb},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := extractAnswer(tc.msg, fb); got != tc.want {
				t.Errorf("extractAnswer = %q, want %q", got, tc.want)
			}
		})
	}
}

func Test_Agent_EmptyTerminalContentFallsBackToQuery(t *testing.T) {
	t.Parallel()

	// A clean termination whose final assistant message carries no text:
	// the answer degrades to the raw query, not an error string.
	m := &scriptedModel{replies: []*schema.Message{
		schema.AssistantMessage("", nil),
	}}
	sink := telemetry.NewMemorySink()
	a := newTestAgent(t, m, sink)

	const query = "what is the sepsis bundle?"
	run := a.Answer(context.Background(), query)

	if run.Err != nil {
		t.Fatalf("unexpected error: %v", run.Err)
	}
	if run.Answer != query {
		t.Errorf("answer: expected the query %q, got %q", query, run.Answer)
	}
	if strings.HasPrefix(run.Answer, errorAnswerPrefix) {
		t.Errorf("answer must not carry the error prefix: %q", run.Answer)
	}

	// The backend reported no usage, so input tokens come from the query's
	// word count alone.
	if want := budget.Estimate(query); run.InputTokens != want {
		t.Errorf("input tokens: expected %d (query words), got %d", want, run.InputTokens)
	}
}

func Test_RunName(t *testing.T) {
	t.Parallel()

	if got := runName("  what   treats\nsepsis? "); got != "what treats sepsis?" {
		t.Errorf("runName = %q", got)
	}
	if got := runName(""); got != "query" {
		t.Errorf("empty query runName = %q", got)
	}
	long := strings.Repeat("word ", 40)
	if got := runName(long); len(got) > 60 {
		t.Errorf("runName not truncated: %d chars", len(got))
	}

	// Multibyte queries must truncate on a rune boundary.
	wide := strings.Repeat("浮腫", 50)
	got := runName(wide)
	if !utf8.ValidString(got) {
		t.Errorf("runName produced invalid UTF-8: %q", got)
	}
	if n := len([]rune(got)); n > 60 {
		t.Errorf("runName not truncated: %d runes", n)
	}
}

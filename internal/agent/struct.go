package agent

import (
	"time"
)

// StepKind identifies the author of a transcript step.
type StepKind string

const (
	// StepModel is a chat-model turn (reasoning or final answer).
	StepModel StepKind = "model"
	// StepTool is a tool observation returned to the model.
	StepTool StepKind = "tool"
)

// Step is one entry in a run's transcript, in completion order.
type Step struct {
	// Kind distinguishes model turns from tool observations.
	Kind StepKind `json:"kind"`
	// Name is the tool name for tool steps, empty for model steps.
	Name string `json:"name,omitempty"`
	// Content is the message content or tool observation text.
	Content string `json:"content"`
}

// Run is the complete record of one answered query.
type Run struct {
	// Query is the user's question.
	Query string `json:"query"`
	// Answer is the final answer text. Always non-empty: failures produce
	// a fallback answer rather than an empty string.
	Answer string `json:"answer"`
	// Steps is the ordered transcript of model turns and tool observations.
	Steps []Step `json:"steps"`

	// RetrievalCount is the number of retrieval tool round trips.
	RetrievalCount int `json:"retrieval_count"`
	// MeanDistance is the mean distance over all retrieved chunks, 0 when
	// nothing was retrieved.
	MeanDistance float64 `json:"mean_distance"`

	// InputTokens and OutputTokens are the provider-reported token usage,
	// or a word-count estimate when the provider reports none.
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	// CostUSD is the estimated request cost.
	CostUSD float64 `json:"cost_usd"`

	// Latency is the wall-clock duration of the run.
	Latency time.Duration `json:"-"`

	// StepLimitHit reports that the agent hit its reasoning step bound
	// before producing a final answer.
	StepLimitHit bool `json:"step_limit_hit"`
	// Err is the terminal error, nil for successful runs.
	Err error `json:"-"`
}

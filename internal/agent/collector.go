package agent

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
)

// collector is a per-run Eino callback handler that accumulates the
// transcript and token usage as graph nodes complete. One collector is
// created per query and never shared between runs.
type collector struct {
	mu           sync.Mutex
	steps        []Step
	inputTokens  int
	outputTokens int
}

// handler builds the Eino callback handler backed by this collector.
func (c *collector) handler() callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			if info == nil {
				return ctx
			}
			switch info.Component {
			case components.ComponentOfChatModel:
				out := model.ConvCallbackOutput(output)
				if out == nil {
					return ctx
				}
				c.mu.Lock()
				if out.Message != nil {
					c.steps = append(c.steps, Step{Kind: StepModel, Content: out.Message.Content})
				}
				if out.TokenUsage != nil {
					c.inputTokens += out.TokenUsage.PromptTokens
					c.outputTokens += out.TokenUsage.CompletionTokens
				}
				c.mu.Unlock()
			case components.ComponentOfTool:
				out := tool.ConvCallbackOutput(output)
				if out == nil {
					return ctx
				}
				c.mu.Lock()
				c.steps = append(c.steps, Step{Kind: StepTool, Name: info.Name, Content: out.Response})
				c.mu.Unlock()
			}
			return ctx
		}).
		Build()
}

// transcript returns a snapshot of the accumulated steps.
func (c *collector) transcript() []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Step, len(c.steps))
	copy(out, c.steps)
	return out
}

// usage returns the summed provider-reported token counts. Both are zero
// when the backend reports no usage.
func (c *collector) usage() (input, output int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputTokens, c.outputTokens
}

// lastModelContent returns the content of the most recent non-empty model
// step, or "" when the model never produced text.
func (c *collector) lastModelContent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.steps) - 1; i >= 0; i-- {
		if c.steps[i].Kind == StepModel && c.steps[i].Content != "" {
			return c.steps[i].Content
		}
	}
	return ""
}

// Package tools defines the retrieval tools the agent can invoke during a
// conversation. Each tool satisfies both this package's interface and Eino's
// tool.BaseTool interface so it can be registered directly with a ReAct agent.
package tools

// AgentTool is the interface that all agent-facing tools must satisfy.
// It extends the basic Eino tool contract with Name and Description accessors
// so callers can log and route tool calls without type assertions.
type AgentTool interface {
	// Name returns the unique tool name registered with the agent.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string
}

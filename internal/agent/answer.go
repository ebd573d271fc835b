package agent

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// extractAnswer pulls the final answer text out of the agent's terminal
// message. Each message role is handled explicitly so an unexpected terminal
// shape degrades to something printable instead of panicking or returning an
// empty answer.
func extractAnswer(msg *schema.Message, fallback string) string {
	if msg == nil {
		return fallback
	}
	switch msg.Role {
	case schema.Assistant:
		if strings.TrimSpace(msg.Content) != "" {
			return msg.Content
		}
		return fallback
	case schema.Tool, schema.User, schema.System:
		// The loop should always terminate on an assistant message; if a
		// backend misbehaves, surface whatever text it produced.
		if strings.TrimSpace(msg.Content) != "" {
			return msg.Content
		}
		return fallback
	default:
		return fallback
	}
}

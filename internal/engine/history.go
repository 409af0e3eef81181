package engine

import (
	"github.com/unfoldindia/unfold/internal/llm"
	"github.com/unfoldindia/unfold/internal/store"
)

// buildHistory turns stored messages (oldest first) into model context.
// User turns are sent whole. Earlier assistant turns are capped; long
// itineraries would otherwise crowd out the conversation.
func buildHistory(msgs []store.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		content := m.Content
		if m.Role == "assistant" && len(content) > maxContextReply {
			content = truncateClean(content, maxContextReply) + "..."
		}
		out = append(out, llm.Message{Role: m.Role, Content: content})
	}
	return out
}

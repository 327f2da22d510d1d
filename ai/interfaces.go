package ai

import (
	"strings"

	"github.com/poiesic/hooshi/core"
	"github.com/tmc/langchaingo/llms"
)

// Simulator is implemented by models that answer locally without calling
// a remote service. Usage recorders tag their records as simulated.
type Simulator interface {
	// Simulated reports whether responses are produced locally.
	Simulated() bool
}

// IsSimulated reports whether model answers locally.
func IsSimulated(model llms.Model) bool {
	s, ok := model.(Simulator)
	return ok && s.Simulated()
}

// BuildMessages assembles a chat request: the system prompt, the stored
// conversation history in order and the new user message. An empty system
// prompt is left out.
func BuildMessages(system string, history []*core.Message, user string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	if system != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == core.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, msg.Content))
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, user))
}

// LastUserText returns the text of the last human message, or "".
func LastUserText(messages []llms.MessageContent) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llms.ChatMessageTypeHuman {
			return MessageText(messages[i])
		}
	}
	return ""
}

// MessageText joins the text parts of a message.
func MessageText(msg llms.MessageContent) string {
	var sb strings.Builder
	for _, part := range msg.Parts {
		if text, ok := part.(llms.TextContent); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

package mock

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/poiesic/hooshi/ai"
	"github.com/tmc/langchaingo/llms"
)

// DefaultReply is returned by a Model with no GenerateFunc.
const DefaultReply = "پاسخ آزمایشی"

// Model is a test double for llms.Model.
// It allows custom behavior injection via function fields.
type Model struct {
	// GenerateFunc is called by GenerateContent if set.
	// If nil, the model replies with DefaultReply.
	GenerateFunc func(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)

	// Simulate marks the model as answering locally.
	Simulate bool

	mu           sync.Mutex
	callCount    int
	lastMessages []llms.MessageContent
}

var (
	_ llms.Model   = (*Model)(nil)
	_ ai.Simulator = (*Model)(nil)
)

// NewModel creates a mock model with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewModel() *Model {
	return &Model{}
}

// WithGenerateFunc sets custom behavior for GenerateContent.
func (m *Model) WithGenerateFunc(fn func(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)) *Model {
	m.GenerateFunc = fn
	return m
}

// GenerateContent records the call and returns the scripted response.
func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	m.callCount++
	m.lastMessages = messages
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages, options...)
	}
	prompt := utf8.RuneCountInString(ai.LastUserText(messages))
	return Response(DefaultReply, prompt, utf8.RuneCountInString(DefaultReply)), nil
}

// Call generates a completion for a single prompt.
func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Simulated reports the Simulate field.
func (m *Model) Simulated() bool {
	return m.Simulate
}

// CallCount returns the number of GenerateContent calls.
func (m *Model) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastMessages returns the messages of the most recent call.
func (m *Model) LastMessages() []llms.MessageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMessages
}

// Reset clears the call history.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastMessages = nil
}

// Response builds a single-choice response carrying token counts in the
// generation info, the way OpenAI-compatible clients report them.
func Response(content string, promptTokens, completionTokens int) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:    content,
			StopReason: "stop",
			GenerationInfo: map[string]any{
				"PromptTokens":     promptTokens,
				"CompletionTokens": completionTokens,
				"TotalTokens":      promptTokens + completionTokens,
			},
		}},
	}
}

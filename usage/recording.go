package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/hooshi/ai"
	"github.com/poiesic/hooshi/core"
	"github.com/tmc/langchaingo/llms"
)

// Defaults for recording retries.
const (
	DefaultRecordAttempts = 3
	DefaultRecordDelay    = 100 * time.Millisecond
)

// Recorder persists usage records. *hooshi.Database satisfies it.
type Recorder interface {
	RecordAPIUsage(ctx context.Context, record *core.UsageRecord) (core.ID, error)
}

type conversationKey struct{}

// WithConversation tags calls made with ctx as belonging to a conversation.
func WithConversation(ctx context.Context, id core.ID) context.Context {
	return context.WithValue(ctx, conversationKey{}, id)
}

// ConversationFrom returns the conversation tag set by WithConversation.
func ConversationFrom(ctx context.Context) (core.ID, bool) {
	id, ok := ctx.Value(conversationKey{}).(core.ID)
	return id, ok
}

// RecordingModel wraps an llms.Model and records one usage record for every
// completion. Recording failures never change what the caller receives.
type RecordingModel struct {
	model     llms.Model
	recorder  Recorder
	name      string
	attempts  int
	baseDelay time.Duration
	onError   func(*core.UsageRecord, error)
	clock     func() time.Time
	logger    *slog.Logger
}

var _ llms.Model = (*RecordingModel)(nil)

// Option configures a RecordingModel.
type Option func(*RecordingModel)

// WithModelName sets the model name used for pricing when the call options
// don't name one.
func WithModelName(name string) Option {
	return func(m *RecordingModel) {
		m.name = name
	}
}

// WithRetry sets how often a failed recording is retried.
// Default is 3 attempts starting at 100ms.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(m *RecordingModel) {
		if attempts > 0 {
			m.attempts = attempts
		}
		if baseDelay > 0 {
			m.baseDelay = baseDelay
		}
	}
}

// WithRecordErrorHandler sets a function called with the record and the
// error when recording fails after every retry.
func WithRecordErrorHandler(fn func(*core.UsageRecord, error)) Option {
	return func(m *RecordingModel) {
		m.onError = fn
	}
}

// WithClock sets the time source used to measure response times.
func WithClock(clock func() time.Time) Option {
	return func(m *RecordingModel) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *RecordingModel) {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger.With("component", "usage-recorder")
	}
}

// NewRecordingModel wraps model so that every completion is recorded to
// recorder.
func NewRecordingModel(model llms.Model, recorder Recorder, opts ...Option) *RecordingModel {
	m := &RecordingModel{
		model:     model,
		recorder:  recorder,
		attempts:  DefaultRecordAttempts,
		baseDelay: DefaultRecordDelay,
		clock:     time.Now,
		logger:    slog.Default().With("component", "usage-recorder"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GenerateContent calls the wrapped model and records the outcome.
func (m *RecordingModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	start := m.clock()
	resp, err := m.model.GenerateContent(ctx, messages, options...)
	elapsed := m.clock().Sub(start)

	m.record(ctx, m.describe(ctx, messages, options, resp, err, elapsed))
	return resp, err
}

// Call generates a completion for a single prompt.
func (m *RecordingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Simulated reports whether the wrapped model answers locally.
func (m *RecordingModel) Simulated() bool {
	return ai.IsSimulated(m.model)
}

func (m *RecordingModel) describe(ctx context.Context, messages []llms.MessageContent, options []llms.CallOption, resp *llms.ContentResponse, err error, elapsed time.Duration) *core.UsageRecord {
	var conversationID *core.ID
	if id, ok := ConversationFrom(ctx); ok {
		conversationID = core.IDPtr(id)
	}
	request := ai.LastUserText(messages)

	var callOpts llms.CallOptions
	for _, opt := range options {
		opt(&callOpts)
	}
	model := callOpts.Model
	if model == "" {
		model = m.name
	}

	if err != nil {
		return ChatErrorRecord(conversationID, model, request, err)
	}
	if ai.IsSimulated(m.model) {
		return SimulatedChatRecord(conversationID, request)
	}

	var content string
	var prompt, completion int
	if resp != nil && len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		content = choice.Content
		prompt = intInfo(choice.GenerationInfo, "PromptTokens")
		completion = intInfo(choice.GenerationInfo, "CompletionTokens")
	}
	return ChatRecord(conversationID, model, request, content, prompt, completion, elapsed)
}

// intInfo reads a token count from generation info, which clients report
// with varying numeric types.
func intInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// record stores the record, retrying with backoff. The caller's
// cancellation doesn't stop it. A final failure is logged with the full
// record and passed to the error handler.
func (m *RecordingModel) record(ctx context.Context, record *core.UsageRecord) {
	ctx = context.WithoutCancel(ctx)

	err := RetryWithBackoff(ctx, func() error {
		attempt := *record
		_, err := m.recorder.RecordAPIUsage(ctx, &attempt)
		if err == nil {
			*record = attempt
			return nil
		}
		if core.IsValidationError(err) {
			return Permanent(err)
		}
		return err
	}, m.attempts, m.baseDelay)
	if err == nil {
		return
	}

	m.logger.Error("failed to record api usage",
		"err", err,
		"endpoint", record.Endpoint,
		"response_type", record.ResponseType,
		"model", record.Model,
		"total_tokens", record.TotalTokens,
		"cost", record.Cost,
		"error_message", record.Error,
		"notes", record.Notes)
	if m.onError != nil {
		m.onError(record, err)
	}
}

package core

import (
	"time"
)

// ID is a unique identifier for domain entities.
// Ids are issued by monotonic sequences; 0 means the id has not been assigned.
type ID uint64

// Role identifies who authored a message.
type Role string

const (
	// RoleUser marks a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Response kinds recorded on usage records.
const (
	ResponseText      = "text"
	ResponseAudio     = "audio"
	ResponseError     = "error"
	ResponseSimulated = "simulated"
)

// Endpoint tags for the services a usage record can describe.
const (
	EndpointChat          = "chat"
	EndpointTranscription = "transcription"
	EndpointSpeech        = "tts"
)

// SettingsID is the fixed key of the singleton settings record.
const SettingsID ID = 1

// Conversation is a titled thread of messages.
type Conversation struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"` // Bumped on every message append or title change
}

// Summary returns the listing view of the conversation.
func (c *Conversation) Summary() ConversationSummary {
	return ConversationSummary{ID: c.ID, Title: c.Title, UpdatedAt: c.UpdatedAt}
}

// ConversationSummary is the listing view of a conversation.
type ConversationSummary struct {
	ID        ID        `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationDetail is a conversation together with its messages, oldest first.
type ConversationDetail struct {
	Conversation
	Messages []*Message `json:"messages"`
}

// Message is one turn in a conversation. Messages are never modified after creation.
type Message struct {
	ID             ID        `json:"id"`
	ConversationID ID        `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// UsageRecord captures the cost and volume of one outbound AI service call.
// Records are append-only.
type UsageRecord struct {
	ID               ID        `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Endpoint         string    `json:"endpoint"`      // chat, transcription, tts
	RequestType      string    `json:"request_type"`  // text, voice
	ResponseType     string    `json:"response_type"` // text, audio, error, simulated
	ConversationID   *ID       `json:"conversation_id,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	RequestChars     *int      `json:"request_chars,omitempty"`
	ResponseChars    *int      `json:"response_chars,omitempty"`
	DurationSeconds  *float64  `json:"duration_seconds,omitempty"`
	Model            string    `json:"model"`
	Error            string    `json:"error,omitempty"`
	Cost             float64   `json:"cost"` // Estimated cost in dollars
	Notes            string    `json:"notes,omitempty"`
}

// Settings is the opaque user preferences blob. Saving replaces it entirely.
type Settings struct {
	Data      map[string]any `json:"data"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Now returns the current time in the precision used for stored timestamps.
func Now() time.Time {
	return Timestamp(time.Now())
}

// Timestamp normalizes t to UTC with millisecond precision.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// IDPtr returns a pointer to id, for optional record fields.
func IDPtr(id ID) *ID {
	return &id
}

// IntPtr returns a pointer to n, for optional record fields.
func IntPtr(n int) *int {
	return &n
}

// FloatPtr returns a pointer to f, for optional record fields.
func FloatPtr(f float64) *float64 {
	return &f
}

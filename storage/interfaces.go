package storage

import (
	"context"
	"time"

	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/sequence"
)

// ConversationStore provides operations for conversations and their messages.
type ConversationStore interface {
	// InsertConversation stores a new conversation. The id must be assigned.
	// Returns ErrDuplicateKey if a conversation with the same id exists.
	InsertConversation(ctx context.Context, conv *core.Conversation) error

	// AppendMessage stores a message and moves the owning conversation's
	// UpdatedAt forward to the message's CreatedAt, never backwards.
	// Returns ErrNotFound if the conversation doesn't exist.
	AppendMessage(ctx context.Context, msg *core.Message) error

	// RenameConversation replaces the title and moves UpdatedAt forward to at,
	// never backwards.
	// Returns ErrNotFound if the conversation doesn't exist.
	RenameConversation(ctx context.Context, id core.ID, title string, at time.Time) error

	// DeleteConversation removes a conversation and all of its messages.
	// Returns false if the conversation didn't exist.
	DeleteConversation(ctx context.Context, id core.ID) (bool, error)

	// LoadConversation retrieves a conversation with its messages ordered by
	// CreatedAt ascending, ties broken by id.
	// Returns ErrNotFound if the conversation doesn't exist.
	LoadConversation(ctx context.Context, id core.ID) (*core.ConversationDetail, error)

	// ListConversations returns all conversations ordered by UpdatedAt
	// descending, ties broken by id descending.
	ListConversations(ctx context.Context) ([]core.ConversationSummary, error)
}

// UsageStore provides operations for the append-only usage log.
type UsageStore interface {
	// InsertUsageRecord appends a usage record. The id must be assigned.
	InsertUsageRecord(ctx context.Context, record *core.UsageRecord) error

	// ListUsageRecords returns records newest first, skipping offset records
	// and returning at most limit.
	ListUsageRecords(ctx context.Context, limit, offset int) ([]*core.UsageRecord, error)

	// ScanUsageRecords calls fn for every record with start <= Timestamp <= end
	// in timestamp order. Returning an error from fn stops the scan and the
	// error is returned.
	ScanUsageRecords(ctx context.Context, start, end time.Time, fn func(*core.UsageRecord) error) error

	// DeleteUsageRecordsBefore removes every record with Timestamp < cutoff
	// and returns how many were removed.
	DeleteUsageRecordsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SettingsStore provides operations for the singleton settings record.
type SettingsStore interface {
	// PutSettings replaces the settings record.
	PutSettings(ctx context.Context, settings *core.Settings) error

	// GetSettings returns the settings record.
	// Returns ErrNotFound if settings were never saved.
	GetSettings(ctx context.Context) (*core.Settings, error)
}

// Store is the full contract of a persistence backend.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	ConversationStore
	UsageStore
	SettingsStore
	sequence.Source
	sequence.Persister

	// Reset removes every conversation and message. Usage records and
	// settings are kept.
	Reset(ctx context.Context) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// Package memory implements the fallback store: the whole dataset held in
// memory and written out as a full snapshot after every change.
//
// The store answers every read exactly as the badger store would, so the
// facade can send any call to it when the primary store is unavailable.
// Snapshot writes are best effort: a failed write is logged and the
// in-memory state stays authoritative until the next successful one.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/sequence"
	"github.com/poiesic/hooshi/snapshot"
	"github.com/poiesic/hooshi/storage"
)

// Store implements storage.Store in memory with snapshot persistence.
type Store struct {
	mu            sync.RWMutex
	conversations map[core.ID]*core.Conversation
	messages      map[core.ID]*core.Message
	owned         map[core.ID]map[core.ID]struct{} // conversation -> message ids
	usage         map[core.ID]*core.UsageRecord
	settings      *core.Settings
	counters      map[sequence.Name]core.ID
	closed        bool

	snapMu sync.Mutex
	medium snapshot.Medium
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "fallback-store")
	}
}

// New returns an empty store that snapshots to medium. A nil medium keeps
// the store purely in memory. The store owns the medium and closes it.
func New(medium snapshot.Medium, opts ...Option) *Store {
	s := &Store{
		medium: medium,
		logger: slog.Default().With("component", "fallback-store"),
	}
	s.clear()
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) clear() {
	s.conversations = make(map[core.ID]*core.Conversation)
	s.messages = make(map[core.ID]*core.Message)
	s.owned = make(map[core.ID]map[core.ID]struct{})
	s.usage = make(map[core.ID]*core.UsageRecord)
	s.settings = nil
	s.counters = make(map[sequence.Name]core.ID)
}

// Close writes a final snapshot and closes the medium.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.Snapshot(context.Background())

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.medium == nil {
		return nil
	}
	return s.medium.Close()
}

// mutate runs fn under the write lock and snapshots afterwards if fn
// reports a change.
func (s *Store) mutate(ctx context.Context, fn func() (bool, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return storage.ErrStorageClosed
	}
	changed, err := fn()
	s.mu.Unlock()

	if changed {
		s.Snapshot(ctx)
	}
	return err
}

// read runs fn under the read lock.
func (s *Store) read(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	return fn()
}

// InsertConversation stores a new conversation.
func (s *Store) InsertConversation(ctx context.Context, conv *core.Conversation) error {
	return s.mutate(ctx, func() (bool, error) {
		if _, ok := s.conversations[conv.ID]; ok {
			return false, fmt.Errorf("%w: conversation %d", storage.ErrDuplicateKey, conv.ID)
		}
		c := *conv
		s.conversations[c.ID] = &c
		return true, nil
	})
}

// AppendMessage stores a message and bumps the owning conversation.
func (s *Store) AppendMessage(ctx context.Context, msg *core.Message) error {
	return s.mutate(ctx, func() (bool, error) {
		conv, ok := s.conversations[msg.ConversationID]
		if !ok {
			return false, fmt.Errorf("%w: conversation %d", storage.ErrNotFound, msg.ConversationID)
		}
		if _, ok := s.messages[msg.ID]; ok {
			return false, fmt.Errorf("%w: message %d", storage.ErrDuplicateKey, msg.ID)
		}

		m := *msg
		s.messages[m.ID] = &m
		s.own(m.ConversationID, m.ID)

		if m.CreatedAt.After(conv.UpdatedAt) {
			conv.UpdatedAt = m.CreatedAt
		}
		return true, nil
	})
}

func (s *Store) own(convID, msgID core.ID) {
	ids, ok := s.owned[convID]
	if !ok {
		ids = make(map[core.ID]struct{})
		s.owned[convID] = ids
	}
	ids[msgID] = struct{}{}
}

// RenameConversation replaces the title and moves UpdatedAt forward.
func (s *Store) RenameConversation(ctx context.Context, id core.ID, title string, at time.Time) error {
	return s.mutate(ctx, func() (bool, error) {
		conv, ok := s.conversations[id]
		if !ok {
			return false, fmt.Errorf("%w: conversation %d", storage.ErrNotFound, id)
		}
		conv.Title = title
		if at.After(conv.UpdatedAt) {
			conv.UpdatedAt = at
		}
		return true, nil
	})
}

// DeleteConversation removes the messages first and then the conversation.
// Running it again after a partial delete finishes the job.
func (s *Store) DeleteConversation(ctx context.Context, id core.ID) (bool, error) {
	deleted := false
	err := s.mutate(ctx, func() (bool, error) {
		changed := false
		for msgID := range s.owned[id] {
			delete(s.messages, msgID)
			changed = true
		}
		delete(s.owned, id)

		if _, ok := s.conversations[id]; ok {
			delete(s.conversations, id)
			deleted = true
			changed = true
		}
		return changed, nil
	})
	return deleted, err
}

// LoadConversation returns a copy of the conversation and its messages.
func (s *Store) LoadConversation(ctx context.Context, id core.ID) (*core.ConversationDetail, error) {
	var result *core.ConversationDetail
	err := s.read(func() error {
		conv, ok := s.conversations[id]
		if !ok {
			return fmt.Errorf("%w: conversation %d", storage.ErrNotFound, id)
		}
		result = &core.ConversationDetail{
			Conversation: *conv,
			Messages:     make([]*core.Message, 0, len(s.owned[id])),
		}
		for msgID := range s.owned[id] {
			if msg, ok := s.messages[msgID]; ok {
				m := *msg
				result.Messages = append(result.Messages, &m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	storage.SortMessages(result.Messages)
	return result, nil
}

// ListConversations returns summaries most recently updated first.
func (s *Store) ListConversations(ctx context.Context) ([]core.ConversationSummary, error) {
	var results []core.ConversationSummary
	err := s.read(func() error {
		results = make([]core.ConversationSummary, 0, len(s.conversations))
		for _, conv := range s.conversations {
			results = append(results, conv.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	storage.SortConversations(results)
	return results, nil
}

// Reset drops every conversation and message.
func (s *Store) Reset(ctx context.Context) error {
	return s.mutate(ctx, func() (bool, error) {
		s.conversations = make(map[core.ID]*core.Conversation)
		s.messages = make(map[core.ID]*core.Message)
		s.owned = make(map[core.ID]map[core.ID]struct{})
		return true, nil
	})
}

// PutSettings replaces the settings record.
func (s *Store) PutSettings(ctx context.Context, settings *core.Settings) error {
	return s.mutate(ctx, func() (bool, error) {
		s.settings = &core.Settings{Data: maps.Clone(settings.Data), UpdatedAt: settings.UpdatedAt}
		return true, nil
	})
}

// GetSettings returns a copy of the settings record.
func (s *Store) GetSettings(ctx context.Context) (*core.Settings, error) {
	var result *core.Settings
	err := s.read(func() error {
		if s.settings == nil {
			return storage.ErrNotFound
		}
		result = &core.Settings{Data: maps.Clone(s.settings.Data), UpdatedAt: s.settings.UpdatedAt}
		return nil
	})
	return result, err
}

// SaveCounters keeps a copy of the counters and snapshots it with the data.
func (s *Store) SaveCounters(ctx context.Context, values map[sequence.Name]core.ID) error {
	return s.mutate(ctx, func() (bool, error) {
		if maps.Equal(s.counters, values) {
			return false, nil
		}
		s.counters = maps.Clone(values)
		return true, nil
	})
}

// LoadCounters returns the counters last saved or restored.
func (s *Store) LoadCounters(ctx context.Context) (map[sequence.Name]core.ID, error) {
	var result map[sequence.Name]core.ID
	err := s.read(func() error {
		result = maps.Clone(s.counters)
		return nil
	})
	return result, err
}

// MaxIDs returns the highest id held per sequence.
func (s *Store) MaxIDs(ctx context.Context) (map[sequence.Name]core.ID, error) {
	result := make(map[sequence.Name]core.ID)
	err := s.read(func() error {
		for id := range s.conversations {
			result[sequence.Conversations] = max(result[sequence.Conversations], id)
		}
		for id := range s.messages {
			result[sequence.Messages] = max(result[sequence.Messages], id)
		}
		for id := range s.usage {
			result[sequence.APIUsage] = max(result[sequence.APIUsage], id)
		}
		return nil
	})
	return result, err
}

package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/storage"
)

// InsertConversation stores a new conversation and its recency index entry.
func (s *Store) InsertConversation(ctx context.Context, conv *core.Conversation) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeConversationKey(conv.ID)
		found, err := exists(tx, key)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: conversation %d", storage.ErrDuplicateKey, conv.ID)
		}

		if err := s.writeConversation(tx, conv); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// AppendMessage stores a message and bumps the owning conversation in the
// same transaction.
func (s *Store) AppendMessage(ctx context.Context, msg *core.Message) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		conv, err := s.readConversation(tx, msg.ConversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return fmt.Errorf("%w: conversation %d", storage.ErrNotFound, msg.ConversationID)
		}

		key := makeMessageKey(msg.ID)
		found, err := exists(tx, key)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: message %d", storage.ErrDuplicateKey, msg.ID)
		}

		if err := tx.Set(key, storage.MarshalMessage(msg)); err != nil {
			return err
		}
		if err := tx.Set(makeMessageOwnerKey(msg.ConversationID, msg.ID), storage.MarshalID(msg.ID)); err != nil {
			return err
		}

		// updated_at only moves forward
		if msg.CreatedAt.After(conv.UpdatedAt) {
			if err := s.moveConversation(tx, conv, conv.Title, msg.CreatedAt); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// RenameConversation replaces the title and moves the recency index entry.
func (s *Store) RenameConversation(ctx context.Context, id core.ID, title string, at time.Time) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		conv, err := s.readConversation(tx, id)
		if err != nil {
			return err
		}
		if conv == nil {
			return fmt.Errorf("%w: conversation %d", storage.ErrNotFound, id)
		}
		if conv.UpdatedAt.After(at) {
			at = conv.UpdatedAt
		}
		if err := s.moveConversation(tx, conv, title, at); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteConversation removes the conversation, its messages and every index
// entry pointing at them in one transaction.
func (s *Store) DeleteConversation(ctx context.Context, id core.ID) (bool, error) {
	deleted := false
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		conv, err := s.readConversation(tx, id)
		if err != nil {
			return err
		}
		if conv == nil {
			return nil
		}

		for _, ownerKey := range collectKeys(tx, makeMessageOwnerPrefix(id)) {
			if err := tx.Delete(makeMessageKey(idFromPairKey(ownerKey))); err != nil {
				return err
			}
			if err := tx.Delete(ownerKey); err != nil {
				return err
			}
		}

		if err := tx.Delete(makeConversationRecentKey(conv)); err != nil {
			return err
		}
		if err := tx.Delete(makeConversationKey(id)); err != nil {
			return err
		}
		deleted = true
		return tx.Commit()
	}, true)
	return deleted, err
}

// LoadConversation retrieves a conversation with its messages, oldest first.
func (s *Store) LoadConversation(ctx context.Context, id core.ID) (*core.ConversationDetail, error) {
	var result *core.ConversationDetail
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		conv, err := s.readConversation(tx, id)
		if err != nil {
			return err
		}
		if conv == nil {
			return fmt.Errorf("%w: conversation %d", storage.ErrNotFound, id)
		}

		result = &core.ConversationDetail{Conversation: *conv, Messages: []*core.Message{}}
		for _, ownerKey := range collectKeys(tx, makeMessageOwnerPrefix(id)) {
			msg, err := s.readMessage(tx, idFromPairKey(ownerKey))
			if err != nil {
				return err
			}
			if msg != nil {
				result.Messages = append(result.Messages, msg)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	storage.SortMessages(result.Messages)
	return result, nil
}

// ListConversations walks the recency index backwards so the most recently
// updated conversation comes first.
func (s *Store) ListConversations(ctx context.Context) ([]core.ConversationSummary, error) {
	results := []core.ConversationSummary{}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(conversationRecentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeLastKey(conversationRecentPrefix, 16)); iter.Valid(); iter.Next() {
			conv, err := s.readConversation(tx, idFromPairKey(iter.Item().Key()))
			if err != nil {
				return err
			}
			if conv != nil {
				results = append(results, conv.Summary())
			}
		}
		return nil
	}, false)
	return results, err
}

// Reset removes every conversation, message and their indexes.
func (s *Store) Reset(ctx context.Context) error {
	var keys [][]byte
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, prefix := range []string{conversationPrefix, conversationRecentPrefix, messagePrefix, messageOwnerPrefix} {
			keys = append(keys, collectKeys(tx, []byte(prefix))...)
		}
		return nil
	}, false)
	if err != nil {
		return err
	}
	return s.backend.DeleteKeys(keys)
}

// moveConversation rewrites the conversation with a new title and update
// time, keeping the recency index in step.
func (s *Store) moveConversation(tx *badger.Txn, conv *core.Conversation, title string, updatedAt time.Time) error {
	if err := tx.Delete(makeConversationRecentKey(conv)); err != nil {
		return err
	}
	conv.Title = title
	conv.UpdatedAt = updatedAt
	return s.writeConversation(tx, conv)
}

func (s *Store) writeConversation(tx *badger.Txn, conv *core.Conversation) error {
	if err := tx.Set(makeConversationKey(conv.ID), storage.MarshalConversation(conv)); err != nil {
		return err
	}
	return tx.Set(makeConversationRecentKey(conv), storage.MarshalID(conv.ID))
}

// readConversation returns nil if the conversation doesn't exist.
func (s *Store) readConversation(tx *badger.Txn, id core.ID) (*core.Conversation, error) {
	val, err := readValue(tx, makeConversationKey(id))
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalConversation(val)
}

// readMessage returns nil if the message doesn't exist.
func (s *Store) readMessage(tx *badger.Txn, id core.ID) (*core.Message, error) {
	val, err := readValue(tx, makeMessageKey(id))
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalMessage(val)
}

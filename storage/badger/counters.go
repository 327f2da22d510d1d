package badger

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/sequence"
	"github.com/poiesic/hooshi/storage"
)

// SaveCounters writes every counter value in one transaction.
func (s *Store) SaveCounters(ctx context.Context, values map[sequence.Name]core.ID) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		for name, v := range values {
			if err := tx.Set(makeCounterKey(name), storage.MarshalID(v)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// LoadCounters returns the counter values last saved.
func (s *Store) LoadCounters(ctx context.Context) (map[sequence.Name]core.ID, error) {
	values := make(map[sequence.Name]core.ID)
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(counterPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			name := sequence.Name(strings.TrimPrefix(string(iter.Item().Key()), counterPrefix))
			if err := iter.Item().Value(func(val []byte) error {
				v, err := storage.UnmarshalID(val)
				if err != nil {
					return err
				}
				values[name] = v
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	}, false)
	return values, err
}

// MaxIDs finds the highest stored id per sequence by seeking to the end of
// each primary record prefix.
func (s *Store) MaxIDs(ctx context.Context) (map[sequence.Name]core.ID, error) {
	prefixes := map[sequence.Name]string{
		sequence.Conversations: conversationPrefix,
		sequence.Messages:      messagePrefix,
		sequence.APIUsage:      usagePrefix,
	}

	values := make(map[sequence.Name]core.ID)
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for name, prefix := range prefixes {
			if id, ok := lastID(tx, prefix); ok {
				values[name] = id
			}
		}
		return nil
	}, false)
	return values, err
}

func lastID(tx *badger.Txn, prefix string) (core.ID, bool) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true
	opts.Prefix = []byte(prefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	iter.Seek(makeLastKey(prefix, 8))
	if !iter.Valid() {
		return 0, false
	}
	return idFromKey(prefix, iter.Item().Key()), true
}

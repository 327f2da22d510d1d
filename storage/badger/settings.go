package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/storage"
)

// PutSettings replaces the singleton settings record.
func (s *Store) PutSettings(ctx context.Context, settings *core.Settings) error {
	value, err := storage.MarshalSettings(settings)
	if err != nil {
		return err
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(settingsKey), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetSettings returns the singleton settings record.
func (s *Store) GetSettings(ctx context.Context) (*core.Settings, error) {
	var result *core.Settings
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		val, err := readValue(tx, []byte(settingsKey))
		if err != nil {
			return err
		}
		if val == nil {
			return storage.ErrNotFound
		}
		result, err = storage.UnmarshalSettings(val)
		return err
	}, false)
	return result, err
}

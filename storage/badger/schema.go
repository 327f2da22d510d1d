package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/storage"
)

// SchemaVersion is the layout version written by this build.
const SchemaVersion = 3

// migration upgrades the store from version-1 to version.
type migration struct {
	version     int
	description string
	apply       func(s *Store) error
}

// Version 1 holds the primary records only; later versions add the
// secondary indexes. Every step rebuilds its index from the primary records
// so it can also repair a damaged index.
var migrations = []migration{
	{version: 1, description: "primary records", apply: func(*Store) error { return nil }},
	{version: 2, description: "conversation recency index", apply: (*Store).rebuildRecencyIndex},
	{version: 3, description: "message owner and usage time indexes", apply: func(s *Store) error {
		if err := s.rebuildOwnerIndex(); err != nil {
			return err
		}
		return s.rebuildUsageTimeIndex()
	}},
}

// SchemaVersion returns the layout version recorded in the store.
// A store without a recorded version reports 0.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		val, err := readValue(tx, []byte(schemaKey))
		if err != nil || val == nil {
			return err
		}
		id, err := storage.UnmarshalID(val)
		if err != nil {
			return err
		}
		version = int(id)
		return nil
	}, false)
	return version, err
}

func (s *Store) migrate() error {
	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("%w: stored %d, supported %d", storage.ErrUnsupportedSchema, current, SchemaVersion)
	}
	if current == SchemaVersion {
		return nil
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		s.logger.Info("migrating schema", "version", m.version, "step", m.description)
		if err := m.apply(s); err != nil {
			return fmt.Errorf("schema migration to %d: %w", m.version, err)
		}
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(schemaKey), storage.MarshalID(core.ID(SchemaVersion))); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// rebuildIndex drops every key under indexPrefix and regenerates the index
// from the records under recordPrefix.
func (s *Store) rebuildIndex(indexPrefix, recordPrefix string, index func(val []byte) ([]byte, core.ID, error)) error {
	var stale [][]byte
	entries := make(map[string][]byte)

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		stale = collectKeys(tx, []byte(indexPrefix))

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var key []byte
			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				key, id, err = index(val)
				return err
			}); err != nil {
				return err
			}
			entries[string(key)] = storage.MarshalID(id)
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	if err := s.backend.DeleteKeys(stale); err != nil {
		return err
	}
	return s.backend.SetKeys(entries)
}

func (s *Store) rebuildRecencyIndex() error {
	return s.rebuildIndex(conversationRecentPrefix, conversationPrefix, func(val []byte) ([]byte, core.ID, error) {
		conv, err := storage.UnmarshalConversation(val)
		if err != nil {
			return nil, 0, err
		}
		return makeConversationRecentKey(conv), conv.ID, nil
	})
}

func (s *Store) rebuildOwnerIndex() error {
	return s.rebuildIndex(messageOwnerPrefix, messagePrefix, func(val []byte) ([]byte, core.ID, error) {
		msg, err := storage.UnmarshalMessage(val)
		if err != nil {
			return nil, 0, err
		}
		return makeMessageOwnerKey(msg.ConversationID, msg.ID), msg.ID, nil
	})
}

func (s *Store) rebuildUsageTimeIndex() error {
	return s.rebuildIndex(usageTimePrefix, usagePrefix, func(val []byte) ([]byte, core.ID, error) {
		rec, err := storage.UnmarshalUsageRecord(val)
		if err != nil {
			return nil, 0, err
		}
		return makeUsageTimeKey(rec.Timestamp, rec.ID), rec.ID, nil
	})
}

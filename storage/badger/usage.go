package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/storage"
)

// InsertUsageRecord appends a usage record and its timestamp index entry.
func (s *Store) InsertUsageRecord(ctx context.Context, record *core.UsageRecord) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeUsageKey(record.ID)
		found, err := exists(tx, key)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: usage record %d", storage.ErrDuplicateKey, record.ID)
		}

		if err := tx.Set(key, storage.MarshalUsageRecord(record)); err != nil {
			return err
		}
		if err := tx.Set(makeUsageTimeKey(record.Timestamp, record.ID), storage.MarshalID(record.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListUsageRecords walks the timestamp index backwards for newest-first paging.
func (s *Store) ListUsageRecords(ctx context.Context, limit, offset int) ([]*core.UsageRecord, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit %d offset %d", storage.ErrInvalidQuery, limit, offset)
	}

	results := []*core.UsageRecord{}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(usageTimePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		skipped := 0
		for iter.Seek(makeLastKey(usageTimePrefix, 16)); iter.Valid() && len(results) < limit; iter.Next() {
			if skipped < offset {
				skipped++
				continue
			}

			record, err := s.readUsageRecord(tx, idFromPairKey(iter.Item().Key()))
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)
	return results, err
}

// ScanUsageRecords streams records with start <= Timestamp <= end to fn in
// timestamp order without holding the whole range in memory.
func (s *Store) ScanUsageRecords(ctx context.Context, start, end time.Time, fn func(*core.UsageRecord) error) error {
	if end.Before(start) {
		return nil
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		startKey := makeUsageTimeBound(start, false)
		endKey := makeUsageTimeBound(end, true)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(usageTimePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if slices.Compare(key, endKey) > 0 {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			record, err := s.readUsageRecord(tx, idFromPairKey(key))
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// DeleteUsageRecordsBefore collects every record older than cutoff from the
// timestamp index and removes the records and index entries in a batch.
func (s *Store) DeleteUsageRecordsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var keys [][]byte
	count := 0

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		cutoffKey := makeUsageTimeBound(cutoff, false)

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(usageTimePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			if slices.Compare(key, cutoffKey) >= 0 {
				break
			}
			keys = append(keys, key, makeUsageKey(idFromPairKey(key)))
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}

	if count == 0 {
		return 0, nil
	}
	if err := s.backend.DeleteKeys(keys); err != nil {
		return 0, err
	}
	s.logger.Debug("deleted usage records", "count", count, "cutoff", cutoff)
	return count, nil
}

// readUsageRecord returns nil if the record doesn't exist.
func (s *Store) readUsageRecord(tx *badger.Txn, id core.ID) (*core.UsageRecord, error) {
	val, err := readValue(tx, makeUsageKey(id))
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalUsageRecord(val)
}

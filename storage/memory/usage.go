package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/storage"
)

func cloneUsage(r *core.UsageRecord) *core.UsageRecord {
	c := *r
	if r.ConversationID != nil {
		c.ConversationID = core.IDPtr(*r.ConversationID)
	}
	if r.RequestChars != nil {
		c.RequestChars = core.IntPtr(*r.RequestChars)
	}
	if r.ResponseChars != nil {
		c.ResponseChars = core.IntPtr(*r.ResponseChars)
	}
	if r.DurationSeconds != nil {
		c.DurationSeconds = core.FloatPtr(*r.DurationSeconds)
	}
	return &c
}

// InsertUsageRecord appends a usage record.
func (s *Store) InsertUsageRecord(ctx context.Context, record *core.UsageRecord) error {
	return s.mutate(ctx, func() (bool, error) {
		if _, ok := s.usage[record.ID]; ok {
			return false, fmt.Errorf("%w: usage record %d", storage.ErrDuplicateKey, record.ID)
		}
		s.usage[record.ID] = cloneUsage(record)
		return true, nil
	})
}

// sortedUsage returns copies of the records matching keep, oldest first.
func (s *Store) sortedUsage(keep func(*core.UsageRecord) bool) ([]*core.UsageRecord, error) {
	var records []*core.UsageRecord
	err := s.read(func() error {
		for _, r := range s.usage {
			if keep(r) {
				records = append(records, cloneUsage(r))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	storage.SortUsageRecords(records)
	return records, nil
}

// ListUsageRecords returns records newest first.
func (s *Store) ListUsageRecords(ctx context.Context, limit, offset int) ([]*core.UsageRecord, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit %d offset %d", storage.ErrInvalidQuery, limit, offset)
	}

	records, err := s.sortedUsage(func(*core.UsageRecord) bool { return true })
	if err != nil {
		return nil, err
	}
	slices.Reverse(records)

	if offset >= len(records) {
		return []*core.UsageRecord{}, nil
	}
	records = records[offset:]
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ScanUsageRecords calls fn for each record with start <= Timestamp <= end.
// fn runs without the store lock held.
func (s *Store) ScanUsageRecords(ctx context.Context, start, end time.Time, fn func(*core.UsageRecord) error) error {
	records, err := s.sortedUsage(func(r *core.UsageRecord) bool {
		return !r.Timestamp.Before(start) && !r.Timestamp.After(end)
	})
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// DeleteUsageRecordsBefore removes every record with Timestamp < cutoff.
func (s *Store) DeleteUsageRecordsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	count := 0
	err := s.mutate(ctx, func() (bool, error) {
		for id, r := range s.usage {
			if r.Timestamp.Before(cutoff) {
				delete(s.usage, id)
				count++
			}
		}
		return count > 0, nil
	})
	return count, err
}

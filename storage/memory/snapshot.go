package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/sequence"
	"github.com/poiesic/hooshi/snapshot"
)

// Snapshot entry names.
const (
	KeyConversations = "hooshi_conversations"
	KeyMessages      = "hooshi_messages"
	KeyUsage         = "hooshi_api_usage"
	KeySettings      = "hooshi_settings"
	KeyCounters      = "hooshi_counters"
	KeyDigest        = "hooshi_digest"
)

// snapshotKeys lists the data entries in digest order.
var snapshotKeys = []string{KeyConversations, KeyMessages, KeyUsage, KeySettings, KeyCounters}

// Snapshot writes the full state to the medium. Failures are logged.
func (s *Store) Snapshot(ctx context.Context) {
	if s.medium == nil {
		return
	}

	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	entries, err := s.encode()
	s.mu.RUnlock()
	if err != nil {
		s.logger.Error("failed to encode snapshot", "err", err)
		return
	}

	if err := s.medium.Set(ctx, entries); err != nil {
		s.logger.Warn("failed to write snapshot", "err", err)
	}
}

// encode renders every entry plus the digest. Caller holds the read lock.
func (s *Store) encode() (map[string]string, error) {
	convs := slices.Collect(maps.Values(s.conversations))
	slices.SortFunc(convs, func(a, b *core.Conversation) int { return cmp.Compare(a.ID, b.ID) })

	msgs := slices.Collect(maps.Values(s.messages))
	slices.SortFunc(msgs, func(a, b *core.Message) int { return cmp.Compare(a.ID, b.ID) })

	usage := slices.Collect(maps.Values(s.usage))
	slices.SortFunc(usage, func(a, b *core.UsageRecord) int { return cmp.Compare(a.ID, b.ID) })

	values := map[string]any{
		KeyConversations: convs,
		KeyMessages:      msgs,
		KeyUsage:         usage,
		KeySettings:      s.settings,
		KeyCounters:      s.counters,
	}

	entries := make(map[string]string, len(values)+1)
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		entries[key] = string(data)
	}
	entries[KeyDigest] = snapshot.Digest(entries, snapshotKeys)
	return entries, nil
}

// Restore replaces the in-memory state with the last snapshot on the
// medium. Missing entries start empty. An entry that fails to parse is
// logged and treated as empty; a digest mismatch is logged and the entries
// that still parse are kept.
func (s *Store) Restore(ctx context.Context) error {
	if s.medium == nil {
		return nil
	}

	entries := make(map[string]string, len(snapshotKeys))
	for _, key := range snapshotKeys {
		v, ok, err := s.medium.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read snapshot %s: %w", key, err)
		}
		if ok {
			entries[key] = v
		}
	}
	if len(entries) == 0 {
		s.logger.Debug("no snapshot found, starting empty")
		return nil
	}

	want, ok, err := s.medium.Get(ctx, KeyDigest)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", KeyDigest, err)
	}
	if got := snapshot.Digest(entries, snapshotKeys); ok && got != want {
		s.logger.Warn("snapshot digest mismatch, restoring entries that still parse", "want", want, "got", got)
	}

	convs := decodeEntry[[]*core.Conversation](s, entries, KeyConversations)
	msgs := decodeEntry[[]*core.Message](s, entries, KeyMessages)
	usage := decodeEntry[[]*core.UsageRecord](s, entries, KeyUsage)
	settings := decodeEntry[*core.Settings](s, entries, KeySettings)
	counters := decodeEntry[map[sequence.Name]core.ID](s, entries, KeyCounters)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clear()
	for _, c := range convs {
		if c != nil {
			s.conversations[c.ID] = c
		}
	}
	orphans := 0
	for _, m := range msgs {
		if m == nil {
			continue
		}
		if _, ok := s.conversations[m.ConversationID]; !ok {
			orphans++
			continue
		}
		s.messages[m.ID] = m
		s.own(m.ConversationID, m.ID)
	}
	for _, r := range usage {
		if r != nil {
			s.usage[r.ID] = r
		}
	}
	s.settings = settings
	if counters != nil {
		s.counters = counters
	}

	if orphans > 0 {
		s.logger.Warn("dropped messages without a conversation", "count", orphans)
	}
	s.logger.Info("restored snapshot",
		"conversations", len(s.conversations),
		"messages", len(s.messages),
		"usage_records", len(s.usage))
	return nil
}

// decodeEntry parses one entry, returning the zero value when the entry is
// missing or malformed.
func decodeEntry[T any](s *Store, entries map[string]string, key string) T {
	var v T
	raw, ok := entries[key]
	if !ok || raw == "" {
		return v
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.logger.Warn("discarding unreadable snapshot entry", "key", key, "err", err)
		var zero T
		return zero
	}
	return v
}

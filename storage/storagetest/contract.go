// Package storagetest holds the behavior every storage.Store must share.
// Backends run the suite from their own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/sequence"
	"github.com/poiesic/hooshi/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

// Run exercises the full Store contract against stores from open.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"ConversationRoundTrip", testConversationRoundTrip},
		{"DuplicateConversation", testDuplicateConversation},
		{"AppendMessageBumpsConversation", testAppendMessageBumpsConversation},
		{"AppendMessageToMissingConversation", testAppendMessageToMissingConversation},
		{"MessagesOrderedOldestFirst", testMessagesOrderedOldestFirst},
		{"ListConversationsOrder", testListConversationsOrder},
		{"RenameConversation", testRenameConversation},
		{"DeleteConversationCascades", testDeleteConversationCascades},
		{"UsageHistoryPaging", testUsageHistoryPaging},
		{"UsageScanInclusiveBounds", testUsageScanInclusiveBounds},
		{"UsageScanStopsOnError", testUsageScanStopsOnError},
		{"UsageCleanupStrictCutoff", testUsageCleanupStrictCutoff},
		{"Settings", testSettings},
		{"Counters", testCounters},
		{"Reset", testReset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func insertConversation(t *testing.T, s storage.Store, id core.ID, title string, created time.Time) {
	t.Helper()
	require.NoError(t, s.InsertConversation(context.Background(), &core.Conversation{
		ID: id, Title: title, CreatedAt: created, UpdatedAt: created,
	}))
}

func appendMessage(t *testing.T, s storage.Store, id, convID core.ID, role core.Role, content string, created time.Time) {
	t.Helper()
	require.NoError(t, s.AppendMessage(context.Background(), &core.Message{
		ID: id, ConversationID: convID, Role: role, Content: content, CreatedAt: created,
	}))
}

func insertUsage(t *testing.T, s storage.Store, id core.ID, ts time.Time, tokens int) {
	t.Helper()
	require.NoError(t, s.InsertUsageRecord(context.Background(), &core.UsageRecord{
		ID: id, Timestamp: ts, Endpoint: core.EndpointChat, ResponseType: core.ResponseText,
		PromptTokens: tokens, TotalTokens: tokens, Model: "gpt-4-turbo", Cost: float64(tokens) / 1000,
	}))
}

func testConversationRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	insertConversation(t, s, 1, "گفتگوی جدید", at(0))

	detail, err := s.LoadConversation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, core.ID(1), detail.ID)
	assert.Equal(t, "گفتگوی جدید", detail.Title)
	assert.True(t, detail.CreatedAt.Equal(at(0)))
	assert.True(t, detail.UpdatedAt.Equal(at(0)))
	assert.NotNil(t, detail.Messages)
	assert.Empty(t, detail.Messages)

	_, err = s.LoadConversation(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDuplicateConversation(t *testing.T, s storage.Store) {
	insertConversation(t, s, 1, "a", at(0))
	err := s.InsertConversation(context.Background(), &core.Conversation{ID: 1, Title: "b", CreatedAt: at(1), UpdatedAt: at(1)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func testAppendMessageBumpsConversation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	insertConversation(t, s, 1, "قیمت ملک", at(0))
	appendMessage(t, s, 1, 1, core.RoleUser, "سلام", at(5))

	detail, err := s.LoadConversation(ctx, 1)
	require.NoError(t, err)
	assert.True(t, detail.UpdatedAt.Equal(at(5)))

	// A message stamped earlier than the last update never moves it back
	appendMessage(t, s, 2, 1, core.RoleAssistant, "سلام! چطور می‌توانم کمک کنم؟", at(3))
	detail, err = s.LoadConversation(ctx, 1)
	require.NoError(t, err)
	assert.True(t, detail.UpdatedAt.Equal(at(5)))
	assert.Len(t, detail.Messages, 2)
}

func testAppendMessageToMissingConversation(t *testing.T, s storage.Store) {
	err := s.AppendMessage(context.Background(), &core.Message{
		ID: 1, ConversationID: 999, Role: core.RoleUser, Content: "سلام", CreatedAt: at(0),
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testMessagesOrderedOldestFirst(t *testing.T, s storage.Store) {
	ctx := context.Background()
	insertConversation(t, s, 1, "c", at(0))
	appendMessage(t, s, 3, 1, core.RoleUser, "third", at(2))
	appendMessage(t, s, 1, 1, core.RoleUser, "first", at(1))
	appendMessage(t, s, 2, 1, core.RoleAssistant, "second", at(1))

	detail, err := s.LoadConversation(ctx, 1)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 3)
	assert.Equal(t, "first", detail.Messages[0].Content)
	assert.Equal(t, "second", detail.Messages[1].Content)
	assert.Equal(t, "third", detail.Messages[2].Content)
	assert.Equal(t, core.RoleAssistant, detail.Messages[1].Role)
}

func testListConversationsOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()

	empty, err := s.ListConversations(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	insertConversation(t, s, 1, "old", at(0))
	insertConversation(t, s, 2, "tie-low", at(10))
	insertConversation(t, s, 3, "tie-high", at(10))
	insertConversation(t, s, 4, "bumped", at(1))
	appendMessage(t, s, 1, 4, core.RoleUser, "hi", at(20))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)

	var ids []core.ID
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []core.ID{4, 3, 2, 1}, ids)
	assert.True(t, list[0].UpdatedAt.Equal(at(20)))
}

func testRenameConversation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	insertConversation(t, s, 1, "گفتگوی جدید", at(0))
	insertConversation(t, s, 2, "other", at(5))

	require.NoError(t, s.RenameConversation(ctx, 1, "قیمت ملک", at(10)))

	detail, err := s.LoadConversation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "قیمت ملک", detail.Title)
	assert.True(t, detail.UpdatedAt.Equal(at(10)))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, core.ID(1), list[0].ID)

	// An earlier rename time keeps the later update time
	require.NoError(t, s.RenameConversation(ctx, 1, "قیمت", at(1)))
	detail, err = s.LoadConversation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "قیمت", detail.Title)
	assert.True(t, detail.UpdatedAt.Equal(at(10)))

	err = s.RenameConversation(ctx, 77, "x", at(11))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDeleteConversationCascades(t *testing.T, s storage.Store) {
	ctx := context.Background()
	insertConversation(t, s, 1, "doomed", at(0))
	insertConversation(t, s, 2, "kept", at(0))
	appendMessage(t, s, 1, 1, core.RoleUser, "a", at(1))
	appendMessage(t, s, 2, 1, core.RoleAssistant, "b", at(2))
	appendMessage(t, s, 3, 2, core.RoleUser, "c", at(3))

	deleted, err := s.DeleteConversation(ctx, 1)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.LoadConversation(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	kept, err := s.LoadConversation(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, kept.Messages, 1)

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, core.ID(2), list[0].ID)

	// Deleting again reports nothing removed
	deleted, err = s.DeleteConversation(ctx, 1)
	require.NoError(t, err)
	assert.False(t, deleted)

	maxIDs, err := s.MaxIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ID(3), maxIDs[sequence.Messages])
}

func testUsageHistoryPaging(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		insertUsage(t, s, core.ID(i), at(i), i*10)
	}
	// Same timestamp as id 5, higher id sorts as newer
	insertUsage(t, s, 6, at(5), 60)

	all, err := s.ListUsageRecords(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, all, 6)
	var ids []core.ID
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []core.ID{6, 5, 4, 3, 2, 1}, ids)

	page, err := s.ListUsageRecords(ctx, 2, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, core.ID(3), page[0].ID)
	assert.Equal(t, core.ID(2), page[1].ID)

	past, err := s.ListUsageRecords(ctx, 10, 50)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func testUsageScanInclusiveBounds(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for i := 0; i <= 10; i++ {
		insertUsage(t, s, core.ID(i+1), at(i), 1)
	}

	var seen []core.ID
	err := s.ScanUsageRecords(ctx, at(2), at(5), func(r *core.UsageRecord) error {
		seen = append(seen, r.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{3, 4, 5, 6}, seen)

	// Inverted range yields nothing
	seen = nil
	require.NoError(t, s.ScanUsageRecords(ctx, at(5), at(2), func(r *core.UsageRecord) error {
		seen = append(seen, r.ID)
		return nil
	}))
	assert.Empty(t, seen)
}

func testUsageScanStopsOnError(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		insertUsage(t, s, core.ID(i), at(i), 1)
	}

	stop := errors.New("stop")
	calls := 0
	err := s.ScanUsageRecords(ctx, at(0), at(10), func(r *core.UsageRecord) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func testUsageCleanupStrictCutoff(t *testing.T, s storage.Store) {
	ctx := context.Background()
	insertUsage(t, s, 1, at(0), 1)
	insertUsage(t, s, 2, at(1), 1)
	insertUsage(t, s, 3, at(2), 1)
	insertUsage(t, s, 4, at(3), 1)

	// The record stamped exactly at the cutoff survives
	n, err := s.DeleteUsageRecordsBefore(ctx, at(2))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rest, err := s.ListUsageRecords(ctx, 100, 0)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, core.ID(4), rest[0].ID)
	assert.Equal(t, core.ID(3), rest[1].ID)

	n, err = s.DeleteUsageRecordsBefore(ctx, at(2))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testSettings(t *testing.T, s storage.Store) {
	ctx := context.Background()

	_, err := s.GetSettings(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.PutSettings(ctx, &core.Settings{
		Data:      map[string]any{"voice": "alloy", "autoSpeak": true},
		UpdatedAt: at(0),
	}))
	require.NoError(t, s.PutSettings(ctx, &core.Settings{
		Data:      map[string]any{"voice": "nova"},
		UpdatedAt: at(1),
	}))

	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	// Saving replaces the whole blob
	assert.Equal(t, map[string]any{"voice": "nova"}, got.Data)
	assert.True(t, got.UpdatedAt.Equal(at(1)))
}

func testCounters(t *testing.T, s storage.Store) {
	ctx := context.Background()

	saved, err := s.LoadCounters(ctx)
	require.NoError(t, err)
	assert.Empty(t, saved)

	maxIDs, err := s.MaxIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, maxIDs)

	require.NoError(t, s.SaveCounters(ctx, map[sequence.Name]core.ID{
		sequence.Conversations: 4,
		sequence.Messages:      12,
		sequence.APIUsage:      1,
	}))

	saved, err = s.LoadCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ID(4), saved[sequence.Conversations])
	assert.Equal(t, core.ID(12), saved[sequence.Messages])
	assert.Equal(t, core.ID(1), saved[sequence.APIUsage])

	insertConversation(t, s, 2, "a", at(0))
	insertConversation(t, s, 300, "b", at(0))
	appendMessage(t, s, 7, 2, core.RoleUser, "x", at(1))
	insertUsage(t, s, 5, at(0), 1)

	maxIDs, err = s.MaxIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ID(300), maxIDs[sequence.Conversations])
	assert.Equal(t, core.ID(7), maxIDs[sequence.Messages])
	assert.Equal(t, core.ID(5), maxIDs[sequence.APIUsage])
}

func testReset(t *testing.T, s storage.Store) {
	ctx := context.Background()
	insertConversation(t, s, 1, "a", at(0))
	appendMessage(t, s, 1, 1, core.RoleUser, "x", at(1))
	insertUsage(t, s, 1, at(0), 1)
	require.NoError(t, s.PutSettings(ctx, &core.Settings{Data: map[string]any{"k": "v"}, UpdatedAt: at(0)}))

	require.NoError(t, s.Reset(ctx))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	maxIDs, err := s.MaxIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, maxIDs, sequence.Conversations)
	assert.NotContains(t, maxIDs, sequence.Messages)

	// Usage and settings survive
	usage, err := s.ListUsageRecords(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, usage, 1)
	_, err = s.GetSettings(ctx)
	assert.NoError(t, err)

	// The same ids can be written again after a reset
	insertConversation(t, s, 1, "again", at(2))
}

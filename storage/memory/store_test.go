package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/sequence"
	"github.com/poiesic/hooshi/snapshot"
	"github.com/poiesic/hooshi/storage"
	"github.com/poiesic/hooshi/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingMedium accepts reads and rejects every write.
type failingMedium struct {
	snapshot.Medium
	sets int
}

func (f *failingMedium) Set(ctx context.Context, entries map[string]string) error {
	f.sets++
	return errors.New("quota exceeded")
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return New(snapshot.NewMemory())
	})
}

func TestStoreContract_WithoutMedium(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return New(nil)
	})
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	now := core.Now().Add(-time.Hour)

	require.NoError(t, s.InsertConversation(ctx, &core.Conversation{ID: 1, Title: "قیمت ملک", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.AppendMessage(ctx, &core.Message{ID: 1, ConversationID: 1, Role: core.RoleUser, Content: "قیمت؟", CreatedAt: now.Add(time.Second)}))
	require.NoError(t, s.InsertUsageRecord(ctx, &core.UsageRecord{
		ID: 1, Timestamp: now, Endpoint: core.EndpointSpeech, Model: "tts-1",
		ConversationID: core.IDPtr(1), RequestChars: core.IntPtr(40), Cost: 0.0006,
	}))
	require.NoError(t, s.PutSettings(ctx, &core.Settings{Data: map[string]any{"voice": "nova"}, UpdatedAt: now}))
	require.NoError(t, s.SaveCounters(ctx, map[sequence.Name]core.ID{
		sequence.Conversations: 2, sequence.Messages: 2, sequence.APIUsage: 2,
	}))
}

func TestRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	medium := snapshot.NewMemory()

	first := New(medium)
	seed(t, first)

	second := New(medium)
	require.NoError(t, second.Restore(ctx))

	detail, err := second.LoadConversation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "قیمت ملک", detail.Title)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, "قیمت؟", detail.Messages[0].Content)
	// The append bumped updated_at and the bump survived the snapshot
	assert.True(t, detail.UpdatedAt.Equal(detail.Messages[0].CreatedAt))

	usage, err := second.ListUsageRecords(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	require.NotNil(t, usage[0].RequestChars)
	assert.Equal(t, 40, *usage[0].RequestChars)
	require.NotNil(t, usage[0].ConversationID)
	assert.Equal(t, core.ID(1), *usage[0].ConversationID)

	settings, err := second.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "nova", settings.Data["voice"])

	counters, err := second.LoadCounters(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ID(2), counters[sequence.Messages])
}

func TestRestore_EmptyMedium(t *testing.T) {
	s := New(snapshot.NewMemory())
	require.NoError(t, s.Restore(context.Background()))

	list, err := s.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRestore_MalformedEntryTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	medium := snapshot.NewMemory()
	seed(t, New(medium))

	// Corrupt one entry; the digest no longer matches either
	require.NoError(t, medium.Set(ctx, map[string]string{KeyMessages: "[{not json"}))

	s := New(medium)
	require.NoError(t, s.Restore(ctx))

	detail, err := s.LoadConversation(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, detail.Messages)

	usage, err := s.ListUsageRecords(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, usage, 1)
}

func TestRestore_DigestMismatchKeepsParsableEntries(t *testing.T) {
	ctx := context.Background()
	medium := snapshot.NewMemory()
	seed(t, New(medium))

	require.NoError(t, medium.Set(ctx, map[string]string{KeyDigest: "deadbeef"}))

	s := New(medium)
	require.NoError(t, s.Restore(ctx))

	list, err := s.ListConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRestore_DropsOrphanMessages(t *testing.T) {
	ctx := context.Background()
	medium := snapshot.NewMemory()
	require.NoError(t, medium.Set(ctx, map[string]string{
		KeyConversations: `[]`,
		KeyMessages:      `[{"id":5,"conversation_id":9,"role":"user","content":"x","created_at":"2025-01-01T00:00:00Z"}]`,
	}))

	s := New(medium)
	require.NoError(t, s.Restore(ctx))

	maxIDs, err := s.MaxIDs(ctx)
	require.NoError(t, err)
	assert.NotContains(t, maxIDs, sequence.Messages)
}

func TestSnapshotFailureIsNotSurfaced(t *testing.T) {
	medium := &failingMedium{Medium: snapshot.NewMemory()}
	s := New(medium)
	ctx := context.Background()

	now := core.Now()
	require.NoError(t, s.InsertConversation(ctx, &core.Conversation{ID: 1, CreatedAt: now, UpdatedAt: now}))
	assert.Equal(t, 1, medium.sets)

	// State stays authoritative in memory
	_, err := s.LoadConversation(ctx, 1)
	require.NoError(t, err)
}

func TestSnapshotSkippedWhenNothingChanged(t *testing.T) {
	medium := &failingMedium{Medium: snapshot.NewMemory()}
	s := New(medium)
	ctx := context.Background()

	deleted, err := s.DeleteConversation(ctx, 42)
	require.NoError(t, err)
	assert.False(t, deleted)

	n, err := s.DeleteUsageRecordsBefore(ctx, core.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Zero(t, medium.sets)
}

func TestClose(t *testing.T) {
	s := New(snapshot.NewMemory())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.InsertConversation(context.Background(), &core.Conversation{ID: 1})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	_, err = s.ListConversations(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	now := core.Now()

	conv := &core.Conversation{ID: 1, Title: "original", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.InsertConversation(ctx, conv))
	conv.Title = "mutated by caller"

	detail, err := s.LoadConversation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "original", detail.Title)

	detail.Title = "mutated again"
	again, err := s.LoadConversation(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
}

package storage

import (
	"cmp"
	"slices"

	"github.com/poiesic/hooshi/core"
)

// Orderings shared by every backend so reads look the same whichever store
// answered them.

// SortMessages orders messages by creation time, ties broken by id.
func SortMessages(msgs []*core.Message) {
	slices.SortFunc(msgs, func(a, b *core.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// SortConversations orders summaries most recently updated first, ties
// broken by id descending.
func SortConversations(convs []core.ConversationSummary) {
	slices.SortFunc(convs, func(a, b core.ConversationSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// SortUsageRecords orders records oldest first, ties broken by id.
func SortUsageRecords(records []*core.UsageRecord) {
	slices.SortFunc(records, func(a, b *core.UsageRecord) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

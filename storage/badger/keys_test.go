package badger

import (
	"bytes"
	"slices"
	"testing"
	"time"

	"github.com/poiesic/hooshi/core"
	"github.com/stretchr/testify/assert"
)

func TestKeysSortByID(t *testing.T) {
	keys := [][]byte{
		makeConversationKey(300),
		makeConversationKey(2),
		makeConversationKey(1 << 40),
		makeConversationKey(17),
	}
	slices.SortFunc(keys, bytes.Compare)

	var ids []core.ID
	for _, k := range keys {
		ids = append(ids, idFromKey(conversationPrefix, k))
	}
	assert.Equal(t, []core.ID{2, 17, 300, 1 << 40}, ids)
}

func TestUsageTimeKeysSortByTimestampThenID(t *testing.T) {
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	a := makeUsageTimeKey(base, 9)
	b := makeUsageTimeKey(base, 10)
	c := makeUsageTimeKey(base.Add(time.Millisecond), 1)

	assert.Negative(t, bytes.Compare(a, b))
	assert.Negative(t, bytes.Compare(b, c))

	// Bounds enclose every id at the same instant
	assert.LessOrEqual(t, bytes.Compare(makeUsageTimeBound(base, false), a), 0)
	assert.GreaterOrEqual(t, bytes.Compare(makeUsageTimeBound(base, true), b), 0)
	assert.Negative(t, bytes.Compare(makeUsageTimeBound(base, true), c))
}

func TestPrefixesDoNotOverlap(t *testing.T) {
	prefixes := []string{
		conversationPrefix, conversationRecentPrefix, messagePrefix,
		messageOwnerPrefix, usagePrefix, usageTimePrefix, counterPrefix,
	}
	for _, p := range prefixes {
		for _, q := range prefixes {
			if p == q {
				continue
			}
			assert.False(t, bytes.HasPrefix([]byte(q), []byte(p)), "%q is a prefix of %q", p, q)
		}
	}
}

func TestIDFromPairKey(t *testing.T) {
	key := makeMessageOwnerKey(4, 99)
	assert.Equal(t, core.ID(99), idFromPairKey(key))
	assert.True(t, bytes.HasPrefix(key, makeMessageOwnerPrefix(4)))
	assert.False(t, bytes.HasPrefix(key, makeMessageOwnerPrefix(5)))
}

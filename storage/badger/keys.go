package badger

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/poiesic/hooshi/core"
	"github.com/poiesic/hooshi/sequence"
)

// Key prefixes for different data types
const (
	conversationPrefix       = "conv:"
	conversationRecentPrefix = "convu:"
	messagePrefix            = "msg:"
	messageOwnerPrefix       = "msgc:"
	usagePrefix              = "use:"
	usageTimePrefix          = "uset:"
	counterPrefix            = "ctr:"
	settingsKey              = "settings:1"
	schemaKey                = "meta:schema"
)

// makeIDKey generates a key for a primary record by ID.
// Format: prefix + id (BigEndian, so keys sort by id)
func makeIDKey(prefix string, id core.ID) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePairKey generates a composite index key.
// Format: prefix + first + second, both BigEndian so lexicographic sort works correctly
func makePairKey(prefix string, first, second uint64) []byte {
	buf := make([]byte, len(prefix)+16)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], first)
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], second)
	return buf
}

// makePartialKey generates a partial key for range queries.
// Format: prefix + first
func makePartialKey(prefix string, first uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], first)
	return buf
}

// makeLastKey returns a key that sorts after every key under prefix whose
// suffix is at most n bytes long. Used to seek reverse iterators.
func makeLastKey(prefix string, n int) []byte {
	buf := make([]byte, len(prefix)+n)
	offset := copy(buf, prefix)
	for i := offset; i < len(buf); i++ {
		buf[i] = 0xFF
	}
	return buf
}

func micros(t time.Time) uint64 {
	return uint64(t.UnixMicro())
}

func makeConversationKey(id core.ID) []byte {
	return makeIDKey(conversationPrefix, id)
}

// makeConversationRecentKey indexes conversations by last update.
// Format: prefix:updatedAt:id
func makeConversationRecentKey(conv *core.Conversation) []byte {
	return makePairKey(conversationRecentPrefix, micros(conv.UpdatedAt), uint64(conv.ID))
}

func makeMessageKey(id core.ID) []byte {
	return makeIDKey(messagePrefix, id)
}

// makeMessageOwnerKey indexes messages by their conversation.
// Format: prefix:conversationID:messageID
func makeMessageOwnerKey(convID, msgID core.ID) []byte {
	return makePairKey(messageOwnerPrefix, uint64(convID), uint64(msgID))
}

func makeMessageOwnerPrefix(convID core.ID) []byte {
	return makePartialKey(messageOwnerPrefix, uint64(convID))
}

func makeUsageKey(id core.ID) []byte {
	return makeIDKey(usagePrefix, id)
}

// makeUsageTimeKey indexes usage records by timestamp.
// Format: prefix:timestamp:id
func makeUsageTimeKey(ts time.Time, id core.ID) []byte {
	return makePairKey(usageTimePrefix, micros(ts), uint64(id))
}

// makeUsageTimeBound returns the smallest (id 0) or largest (id max) index
// key for a timestamp.
func makeUsageTimeBound(ts time.Time, upper bool) []byte {
	if upper {
		return makePairKey(usageTimePrefix, micros(ts), math.MaxUint64)
	}
	return makePartialKey(usageTimePrefix, micros(ts))
}

func makeCounterKey(name sequence.Name) []byte {
	return []byte(counterPrefix + string(name))
}

// idFromPairKey extracts the trailing id of a composite index key.
func idFromPairKey(key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))
}

// idFromKey extracts the id of a primary record key.
func idFromKey(prefix string, key []byte) core.ID {
	return core.ID(binary.BigEndian.Uint64(key[len(prefix):]))
}

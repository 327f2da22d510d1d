package snapshot

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// Digest returns the hex BLAKE2b-256 digest of the entries named by keys,
// taken in the given order. Each entry is length-prefixed so moving bytes
// between neighbouring entries changes the digest.
func Digest(entries map[string]string, keys []string) string {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	var size [8]byte
	for _, k := range keys {
		v := entries[k]
		binary.BigEndian.PutUint64(size[:], uint64(len(v)))
		h.Write(size[:])
		h.Write([]byte(v))
	}
	return hex.EncodeToString(h.Sum(nil))
}

package badger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/hooshi/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	_, err := OpenBackend(tmpFile, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	// Closing twice is harmless
	require.NoError(t, backend.Close())

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, backend.DeleteKeys(nil), storage.ErrStorageClosed)
}

func TestBackendBatchWrites(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.SetKeys(map[string][]byte{
		"a:1": []byte("one"),
		"a:2": []byte("two"),
		"b:1": []byte("other"),
	}))

	var keys [][]byte
	require.NoError(t, backend.WithTx(func(tx *badger.Txn) error {
		keys = collectKeys(tx, []byte("a:"))
		return nil
	}, false))
	require.Len(t, keys, 2)

	require.NoError(t, backend.DeleteKeys(keys))

	require.NoError(t, backend.WithTx(func(tx *badger.Txn) error {
		assert.Empty(t, collectKeys(tx, []byte("a:")))
		val, err := readValue(tx, []byte("b:1"))
		require.NoError(t, err)
		assert.Equal(t, []byte("other"), val)

		missing, err := readValue(tx, []byte("a:1"))
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	}, false))
}

package badger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/geoingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("")
	require.NoError(t, err)
	defer backend.Close()

	assert.True(t, backend.InMemory())
	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "features")
	backend, err := OpenBackend(dir, WithSyncWrites(true))
	require.NoError(t, err)
	defer backend.Close()

	assert.False(t, backend.InMemory())
	assert.DirExists(t, dir)
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	backend, err := OpenBackend(path)
	require.Error(t, err)
	assert.Nil(t, backend)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestBackend_Close(t *testing.T) {
	backend, err := OpenBackend("")
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestBackend_UpdateAndView(t *testing.T) {
	backend, err := OpenBackend("")
	require.NoError(t, err)
	defer backend.Close()

	key := []byte("scratch")

	t.Run("failed update is discarded", func(t *testing.T) {
		err := backend.Update(func(txn *badger.Txn) error {
			if err := txn.Set(key, []byte("x")); err != nil {
				return err
			}
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)

		err = backend.View(func(txn *badger.Txn) error {
			_, err := txn.Get(key)
			return err
		})
		assert.ErrorIs(t, err, badger.ErrKeyNotFound)
	})

	t.Run("successful update is committed", func(t *testing.T) {
		require.NoError(t, backend.Update(func(txn *badger.Txn) error {
			return txn.Set(key, []byte("x"))
		}))

		var got []byte
		require.NoError(t, backend.View(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err != nil {
				return err
			}
			got, err = item.ValueCopy(nil)
			return err
		}))
		assert.Equal(t, []byte("x"), got)
	})
}

func TestBackend_Sequence(t *testing.T) {
	backend, err := OpenBackend("")
	require.NoError(t, err)
	defer backend.Close()

	seq, err := backend.Sequence(featureRecordIDSeq)
	require.NoError(t, err)
	defer seq.Release()

	id1, err := seq.Next()
	require.NoError(t, err)
	id2, err := seq.Next()
	require.NoError(t, err)

	assert.Greater(t, id2, id1)
}

func TestFeatureKeyOrdering(t *testing.T) {
	low := makeFeatureKey(core.ID(1))
	high := makeFeatureKey(core.ID(256))

	assert.Less(t, string(low), string(high))
	assert.Less(t, string(high), string(lastFeatureKey()))
	assert.Len(t, low, len(featureRecordPrefix)+8)
}

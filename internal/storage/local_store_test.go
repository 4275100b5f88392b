package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/obsbackup/internal/storage"
)

func TestLocalStoreRead(t *testing.T) {
	tmpDir := t.TempDir()
	store := newTestStore(t)

	path := filepath.Join(tmpDir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# heading"), 0644))

	t.Run("existing file", func(t *testing.T) {
		data, err := store.Read(path)
		require.NoError(t, err)
		assert.Equal(t, "# heading", string(data))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := store.Read(filepath.Join(tmpDir, "missing.md"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("null byte in path", func(t *testing.T) {
		_, err := store.Read("bad\x00path")
		assert.Error(t, err)
	})

	t.Run("symlink policy", func(t *testing.T) {
		link := filepath.Join(tmpDir, "link.md")
		require.NoError(t, os.Symlink(path, link))

		data, err := store.Read(link)
		require.NoError(t, err)
		assert.Equal(t, "# heading", string(data))

		store.SetAllowSymlinks(false)
		defer store.SetAllowSymlinks(true)
		_, err = store.Read(link)
		assert.Error(t, err)
	})

	t.Run("size limit", func(t *testing.T) {
		limited := newTestStore(t)
		limited.SetMaxFileSize(4)
		_, err := limited.Read(path)
		assert.ErrorIs(t, err, storage.ErrTooLarge)
	})
}

func TestLocalStoreStat(t *testing.T) {
	tmpDir := t.TempDir()
	store := newTestStore(t)

	path := filepath.Join(tmpDir, "file.bin")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0644))

	info, err := store.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.True(t, info.IsRegular())
	assert.False(t, info.IsDir)

	dirInfo, err := store.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, dirInfo.IsDir)
	assert.False(t, dirInfo.IsRegular())

	_, err = store.Stat(filepath.Join(tmpDir, "missing"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	dangling := filepath.Join(tmpDir, "dangling")
	require.NoError(t, os.Symlink(filepath.Join(tmpDir, "gone"), dangling))
	_, err = store.Stat(dangling)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLocalStoreExistsAndDelete(t *testing.T) {
	tmpDir := t.TempDir()
	store := newTestStore(t)
	path := filepath.Join(tmpDir, "file.txt")

	exists, err := store.Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Write(path, []byte("x"), 0644, storage.ConflictError))
	exists, err = store.Exists(path)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(path))
	require.NoError(t, store.Delete(path), "deleting twice is not an error")
	assert.NoFileExists(t, path)
}

func TestLocalStoreMove(t *testing.T) {
	tmpDir := t.TempDir()
	store := newTestStore(t)

	src := filepath.Join(tmpDir, "src.txt")
	dst := filepath.Join(tmpDir, "dst.txt")

	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))
	require.NoError(t, store.Move(src, dst, storage.ConflictError))
	assert.NoFileExists(t, src)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, os.WriteFile(src, []byte("newer"), 0644))
	err = store.Move(src, dst, storage.ConflictError)
	assert.True(t, errors.Is(err, storage.ErrExists))
	assert.FileExists(t, src, "source kept when destination exists")

	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, store.Move(src, dst, storage.ConflictOverwrite))
	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "newer", string(data))
}

func TestMockStore(t *testing.T) {
	store := storage.NewMockStore()

	require.NoError(t, store.Write("a", []byte("1"), 0600, storage.ConflictError))
	assert.ErrorIs(t, store.Write("a", []byte("2"), 0600, storage.ConflictError), storage.ErrExists)
	require.NoError(t, store.Write("a", []byte("2"), 0600, storage.ConflictOverwrite))

	info, err := store.Stat("a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Size)
	assert.True(t, info.IsRegular())

	store.FailWrites(assert.AnError)
	assert.ErrorIs(t, store.Write("b", []byte("x"), 0600, storage.ConflictError), assert.AnError)
	store.FailWrites(nil)

	require.NoError(t, store.Move("a", "b", storage.ConflictError))
	_, err = store.Read("a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Len(t, store.Files(), 1)
}

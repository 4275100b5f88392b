package storage_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/obsbackup/internal/events"
	"github.com/TheMichaelB/obsbackup/internal/storage"
)

func newTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	var buf bytes.Buffer
	return storage.NewLocalStore(events.NewTestLogger(events.DebugLevel, "json", &buf))
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.Contains(entry.Name(), ".tmp."), "found temp file: %s", entry.Name())
	}
}

func TestAtomicWrites(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("concurrent writes different files", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 10)

		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()

				store := newTestStore(t)
				path := filepath.Join(tmpDir, fmt.Sprintf("concurrent-%d.txt", n))
				data := fmt.Sprintf("content-%d", n)

				if err := store.Write(path, []byte(data), 0644, storage.ConflictError); err != nil {
					errs <- err
				}
			}(i)
		}

		wg.Wait()
		close(errs)

		for err := range errs {
			t.Errorf("Write error: %v", err)
		}

		store := newTestStore(t)
		for i := 0; i < 10; i++ {
			data, err := store.Read(filepath.Join(tmpDir, fmt.Sprintf("concurrent-%d.txt", i)))
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("content-%d", i), string(data))
		}
		assertNoTempFiles(t, tmpDir)
	})

	t.Run("concurrent writes same file without clobber", func(t *testing.T) {
		path := filepath.Join(tmpDir, "contended.bin")

		var wg sync.WaitGroup
		var wins, conflicts int32
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				err := newTestStore(t).Write(path, []byte(fmt.Sprintf("writer-%d", n)), 0600, storage.ConflictError)
				switch {
				case err == nil:
					atomic.AddInt32(&wins, 1)
				case errors.Is(err, storage.ErrExists):
					atomic.AddInt32(&conflicts, 1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins)
		assert.Equal(t, int32(15), conflicts)
		assertNoTempFiles(t, tmpDir)
	})

	t.Run("overwrite replaces content", func(t *testing.T) {
		store := newTestStore(t)
		path := filepath.Join(tmpDir, "replace.txt")

		require.NoError(t, store.Write(path, []byte("first"), 0600, storage.ConflictError))
		require.NoError(t, store.Write(path, []byte("second"), 0600, storage.ConflictOverwrite))

		data, err := store.Read(path)
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("write with size limit", func(t *testing.T) {
		store := newTestStore(t)
		store.SetMaxFileSize(1024)

		path := filepath.Join(tmpDir, "large.txt")
		err := store.Write(path, bytes.Repeat([]byte("b"), 2048), 0644, storage.ConflictError)
		assert.ErrorIs(t, err, storage.ErrTooLarge)

		exists, _ := store.Exists(path)
		assert.False(t, exists)
	})

	t.Run("write failure cleanup", func(t *testing.T) {
		store := newTestStore(t)
		blocker := filepath.Join(tmpDir, "blocker")
		require.NoError(t, os.Mkdir(blocker, 0755))

		err := store.Write(blocker, []byte("data"), 0644, storage.ConflictOverwrite)
		assert.Error(t, err)

		assertNoTempFiles(t, tmpDir)
	})

	t.Run("missing parent directory", func(t *testing.T) {
		store := newTestStore(t)
		err := store.Write(filepath.Join(tmpDir, "nope", "file.txt"), []byte("data"), 0644, storage.ConflictError)
		assert.Error(t, err)
		assert.NoDirExists(t, filepath.Join(tmpDir, "nope"))
	})

	t.Run("file mode applied", func(t *testing.T) {
		store := newTestStore(t)
		path := filepath.Join(tmpDir, "private.bin")
		require.NoError(t, store.Write(path, []byte("secret"), 0600, storage.ConflictError))

		info, err := store.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode.Perm())
	})
}

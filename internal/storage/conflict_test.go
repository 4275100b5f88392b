package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/obsbackup/internal/storage"
)

func TestConflictStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy storage.ConflictStrategy
		wantErr  error
		want     string
	}{
		{"error keeps existing", storage.ConflictError, storage.ErrExists, "original"},
		{"overwrite replaces", storage.ConflictOverwrite, nil, "new content"},
	}

	for _, tt := range tests {
		t.Run("write/"+tt.name, func(t *testing.T) {
			store := newTestStore(t)
			path := filepath.Join(t.TempDir(), "conflict.txt")
			require.NoError(t, store.Write(path, []byte("original"), 0600, storage.ConflictError))

			err := store.Write(path, []byte("new content"), 0600, tt.strategy)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			data, err := store.Read(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
			assertNoTempFiles(t, filepath.Dir(path))
		})

		t.Run("move/"+tt.name, func(t *testing.T) {
			store := newTestStore(t)
			dir := t.TempDir()
			src := filepath.Join(dir, "src.txt")
			dst := filepath.Join(dir, "dst.txt")
			require.NoError(t, os.WriteFile(src, []byte("new content"), 0600))
			require.NoError(t, os.WriteFile(dst, []byte("original"), 0600))

			err := store.Move(src, dst, tt.strategy)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, statErr := os.Stat(src)
				assert.NoError(t, statErr, "source must survive a refused move")
			} else {
				require.NoError(t, err)
				_, statErr := os.Stat(src)
				assert.True(t, os.IsNotExist(statErr))
			}

			data, err := os.ReadFile(dst)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestConflictStrategyString(t *testing.T) {
	assert.Equal(t, "error", storage.ConflictError.String())
	assert.Equal(t, "overwrite", storage.ConflictOverwrite.String())
	assert.Equal(t, "unknown", storage.ConflictStrategy(99).String())
}

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/TheMichaelB/obsbackup/internal/events"
)

// DefaultMaxFileSize bounds whole-file reads and writes.
const DefaultMaxFileSize int64 = 2 << 30

// linkFile is replaced in tests to simulate file systems without hard links.
var linkFile = os.Link

// LocalStore implements BlobStore on the local file system.
type LocalStore struct {
	logger *events.Logger

	allowSymlinks bool
	maxFileSize   int64
}

// NewLocalStore creates a local file store.
func NewLocalStore(logger *events.Logger) *LocalStore {
	return &LocalStore{
		logger:        logger.WithField("component", "local_store"),
		allowSymlinks: true,
		maxFileSize:   DefaultMaxFileSize,
	}
}

// SetMaxFileSize sets the maximum file size limit.
func (s *LocalStore) SetMaxFileSize(size int64) {
	s.maxFileSize = size
}

// SetAllowSymlinks controls whether Read follows symbolic links.
func (s *LocalStore) SetAllowSymlinks(allow bool) {
	s.allowSymlinks = allow
}

// Write saves data to a file atomically: temp file in the same directory,
// fsync, then rename (overwrite) or hard link (no clobber) into place.
// Where hard links are unsupported the no-clobber path creates the final
// name exclusively and removes it again if writing fails.
func (s *LocalStore) Write(path string, data []byte, mode os.FileMode, strategy ConflictStrategy) error {
	if err := validatePath(path); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"path":     path,
		"size":     len(data),
		"mode":     mode,
		"conflict": strategy.String(),
	}).Debug("Writing file")

	if int64(len(data)) > s.maxFileSize {
		return fmt.Errorf("%w: %d bytes (max: %d)", ErrTooLarge, len(data), s.maxFileSize)
	}

	if strategy == ConflictError {
		exists, err := s.Exists(path)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	tempPath, err := writeTemp(path, data, mode)
	if err != nil {
		return err
	}
	// After a rename this is a no-op; after a link it drops the temp name.
	defer os.Remove(tempPath)

	if err := s.commit(tempPath, path, data, mode, strategy); err != nil {
		return err
	}

	syncDir(filepath.Dir(path))
	return nil
}

// Read retrieves file contents.
func (s *LocalStore) Read(path string) ([]byte, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	stat, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat file: %w", err)
	}

	if stat.Mode()&os.ModeSymlink != 0 {
		if !s.allowSymlinks {
			return nil, fmt.Errorf("symlinks not allowed: %s", path)
		}
		if stat, err = os.Stat(path); err != nil {
			return nil, fmt.Errorf("stat link target: %w", err)
		}
	}

	if stat.Size() > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrTooLarge, stat.Size(), s.maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// Exists checks if a file exists.
func (s *LocalStore) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Stat returns file information. Symbolic links are reported with their target's type and size.
func (s *LocalStore) Stat(path string) (FileInfo, error) {
	lstat, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return FileInfo{}, fmt.Errorf("stat file: %w", err)
	}

	stat := lstat
	isSymlink := lstat.Mode()&os.ModeSymlink != 0
	if isSymlink {
		if stat, err = os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return FileInfo{}, fmt.Errorf("%w: dangling link %s", ErrNotFound, path)
			}
			return FileInfo{}, fmt.Errorf("stat link target: %w", err)
		}
	}

	return FileInfo{
		Path:      path,
		Size:      stat.Size(),
		Mode:      stat.Mode(),
		ModTime:   stat.ModTime(),
		IsDir:     stat.IsDir(),
		IsSymlink: isSymlink,
	}, nil
}

// Delete removes a file.
func (s *LocalStore) Delete(path string) error {
	s.logger.WithField("path", path).Debug("Deleting file")

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("delete file: %w", err)
	}

	return nil
}

// Move renames a file. With ConflictError an existing destination is never replaced.
func (s *LocalStore) Move(oldPath, newPath string, strategy ConflictStrategy) error {
	s.logger.WithFields(map[string]interface{}{
		"old":      oldPath,
		"new":      newPath,
		"conflict": strategy.String(),
	}).Debug("Moving file")

	if strategy == ConflictOverwrite {
		if err := os.Rename(oldPath, newPath); err != nil {
			return fmt.Errorf("rename file: %w", err)
		}
		return nil
	}

	err := linkFile(oldPath, newPath)
	switch {
	case err == nil:
		return os.Remove(oldPath)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", ErrExists, newPath)
	}

	// Hard links fail across devices and on some file systems; fall back to
	// an exclusive copy.
	s.logger.WithError(err).Debug("Link failed, copying instead")

	stat, statErr := os.Stat(oldPath)
	if statErr != nil {
		return fmt.Errorf("stat source: %w", statErr)
	}
	data, err := s.Read(oldPath)
	if err != nil {
		return err
	}
	if err := s.Write(newPath, data, stat.Mode().Perm(), ConflictError); err != nil {
		return err
	}
	return os.Remove(oldPath)
}

func writeTemp(path string, data []byte, mode os.FileMode) (string, error) {
	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := file.Name()

	fail := func(step string, err error) (string, error) {
		file.Close()
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("%s: %w", step, err)
	}

	if _, err := file.Write(data); err != nil {
		return fail("write temp file", err)
	}
	// CreateTemp already uses 0600, and vfat rejects chmod.
	if mode.Perm() != 0600 {
		if err := file.Chmod(mode); err != nil {
			return fail("chmod temp file", err)
		}
	}
	if err := file.Sync(); err != nil {
		return fail("sync temp file", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return tempPath, nil
}

func (s *LocalStore) commit(tempPath, path string, data []byte, mode os.FileMode, strategy ConflictStrategy) error {
	if strategy == ConflictOverwrite {
		if err := os.Rename(tempPath, path); err != nil {
			return fmt.Errorf("rename temp file: %w", err)
		}
		return nil
	}

	// link(2) fails with EEXIST instead of replacing, which closes the
	// window between the existence check and the commit.
	err := linkFile(tempPath, path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}

	s.logger.WithError(err).WithField("path", path).Debug("Hard link unsupported, creating exclusively")
	return writeExclusive(path, data, mode)
}

// writeExclusive creates path with O_EXCL and writes data to it. The file
// is removed if any step after creation fails.
func writeExclusive(path string, data []byte, mode os.FileMode) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode.Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("create file: %w", err)
	}

	fail := func(step string, err error) error {
		file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("%s: %w", step, err)
	}

	if _, err := file.Write(data); err != nil {
		return fail("write file", err)
	}
	if err := file.Sync(); err != nil {
		return fail("sync file", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
}

func validatePath(path string) error {
	if path == "" {
		return errors.New("invalid path: empty")
	}
	if strings.ContainsRune(path, 0) {
		return errors.New("invalid path: contains null bytes")
	}
	return nil
}

package storage

import (
	"errors"
	"os"
	"time"
)

// Errors
var (
	ErrNotFound = errors.New("file not found")
	ErrExists   = errors.New("file already exists")
	ErrTooLarge = errors.New("file too large")
)

// BlobStore manages whole-file reads and atomic writes on the local disk.
type BlobStore interface {
	// Read retrieves file contents.
	Read(path string) ([]byte, error)

	// Write saves data to path atomically. Readers see either the old
	// state or the complete new file, never a partial one.
	Write(path string, data []byte, mode os.FileMode, strategy ConflictStrategy) error

	// Exists checks if a file exists.
	Exists(path string) (bool, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// Delete removes a file.
	Delete(path string) error

	// Move renames a file, honoring strategy when newPath exists.
	Move(oldPath, newPath string, strategy ConflictStrategy) error
}

// FileInfo contains file metadata.
type FileInfo struct {
	Path      string
	Size      int64
	Mode      os.FileMode
	ModTime   time.Time
	IsDir     bool
	IsSymlink bool
}

// IsRegular reports whether the file is a plain file.
func (fi FileInfo) IsRegular() bool {
	return fi.Mode.IsRegular()
}

// ConflictStrategy defines how to handle an existing destination.
type ConflictStrategy int

const (
	// ConflictError refuses to replace an existing file.
	ConflictError ConflictStrategy = iota

	// ConflictOverwrite atomically replaces an existing file.
	ConflictOverwrite
)

func (s ConflictStrategy) String() string {
	switch s {
	case ConflictError:
		return "error"
	case ConflictOverwrite:
		return "overwrite"
	default:
		return "unknown"
	}
}

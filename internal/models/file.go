package models

import (
	"path/filepath"
	"strings"
	"time"
)

// ArchiveEntry represents a vault file or directory written to an archive.
type ArchiveEntry struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ModifiedTime time.Time `json:"modified_time"`
	IsDirectory  bool      `json:"is_directory"`
}

// NormalizedPath returns the cleaned, forward-slash path used inside archives.
func (e *ArchiveEntry) NormalizedPath() string {
	p := strings.ReplaceAll(filepath.Clean(e.Path), "\\", "/")
	if e.IsDirectory && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// IsSafe reports whether the entry stays inside the extraction root.
func (e *ArchiveEntry) IsSafe() bool {
	p := strings.ReplaceAll(e.Path, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") || strings.ContainsRune(p, 0) {
		return false
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

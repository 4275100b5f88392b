package models

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// ArchiveFormat identifies a backup container.
type ArchiveFormat string

const (
	FormatTarGz   ArchiveFormat = "tar.gz"
	FormatZip     ArchiveFormat = "zip"
	FormatUnknown ArchiveFormat = ""
)

// EncryptedSuffix marks sealed backups.
const EncryptedSuffix = ".enc"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
)

// ParseArchiveFormat validates a configured format name.
func ParseArchiveFormat(s string) (ArchiveFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tar.gz", "tgz", "":
		return FormatTarGz, nil
	case "zip":
		return FormatZip, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: unsupported archive format %q", ErrInvalidConfig, s)
	}
}

// Extension returns the file extension including the leading dot.
func (f ArchiveFormat) Extension() string {
	if f == FormatUnknown {
		return ""
	}
	return "." + string(f)
}

// DetectArchiveFormat detects the format from content, falling back to the name.
func DetectArchiveFormat(path string, head []byte) ArchiveFormat {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return FormatTarGz
	case bytes.HasPrefix(head, zipMagic):
		return FormatZip
	}

	name := strings.ToLower(strings.TrimSuffix(filepath.Base(path), EncryptedSuffix))
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(name, ".zip"):
		return FormatZip
	}
	return FormatUnknown
}

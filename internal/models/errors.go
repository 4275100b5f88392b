package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeVault      = "VAULT_ERROR"
	ErrCodeArchive    = "ARCHIVE_ERROR"
	ErrCodeEncryption = "ENCRYPTION_ERROR"
	ErrCodeStorage    = "STORAGE_ERROR"
	ErrCodeState      = "STATE_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
)

// Sentinel errors
var (
	ErrPasswordRequired = errors.New("encryption password required")
	ErrBackupExists     = errors.New("backup file already exists")
	ErrNotEncrypted     = errors.New("file must have .enc extension")
	ErrRecordNotFound   = errors.New("backup record not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// VaultValidationError reports an unusable vault path.
type VaultValidationError struct {
	Path   string
	Reason string
}

func (e *VaultValidationError) Error() string {
	return fmt.Sprintf("vault %s: %s", e.Path, e.Reason)
}

// ArchiveError provides detailed archive failure information.
type ArchiveError struct {
	Op   string
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("archive %s: %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("archive %s: %v", e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// EncryptionError wraps a seal or unseal failure inside a workflow.
type EncryptionError struct {
	Op   string
	Path string
	Err  error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// IntegrityError represents a hash mismatch.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected %s, got %s",
		e.Path, e.Expected, e.Actual)
}

// ErrorCode classifies a workflow error.
func ErrorCode(err error) string {
	var (
		vaultErr   *VaultValidationError
		archiveErr *ArchiveError
		encErr     *EncryptionError
		intErr     *IntegrityError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &vaultErr):
		return ErrCodeVault
	case errors.As(err, &encErr), errors.Is(err, ErrPasswordRequired):
		return ErrCodeEncryption
	case errors.As(err, &archiveErr), errors.As(err, &intErr),
		errors.Is(err, ErrBackupExists), errors.Is(err, ErrNotEncrypted):
		return ErrCodeArchive
	case errors.Is(err, ErrRecordNotFound):
		return ErrCodeState
	case errors.Is(err, ErrInvalidConfig):
		return ErrCodeConfig
	default:
		return ErrCodeStorage
	}
}

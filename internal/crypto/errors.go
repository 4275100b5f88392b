package crypto

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeEmptyPassword  = "EMPTY_PASSWORD"
	ErrCodeKeyDerivation  = "KEY_DERIVATION_ERROR"
	ErrCodeInputNotFound  = "INPUT_NOT_FOUND"
	ErrCodeEmptyInput     = "EMPTY_INPUT"
	ErrCodeOutputExists   = "OUTPUT_EXISTS"
	ErrCodeMalformedInput = "MALFORMED_INPUT"
	ErrCodeAuthentication = "INVALID_PASSWORD_OR_CORRUPT_DATA"
	ErrCodeOutputWrite    = "OUTPUT_WRITE_ERROR"
	ErrCodeUnknown        = "UNKNOWN_ERROR"
)

// Sentinel errors
var (
	ErrEmptyPassword = errors.New("password must not be empty")
	ErrInvalidSalt   = errors.New("invalid salt length")

	// ErrInvalidPasswordOrCorruptData is returned for every authentication
	// failure. Wrong passwords and damaged files are indistinguishable.
	ErrInvalidPasswordOrCorruptData = errors.New("invalid password or corrupted file")
)

// KeyDerivationError wraps a failure of the underlying KDF.
type KeyDerivationError struct {
	Err error
}

func (e *KeyDerivationError) Error() string {
	return fmt.Sprintf("key derivation failed: %v", e.Err)
}

func (e *KeyDerivationError) Unwrap() error {
	return e.Err
}

// InputNotFoundError reports a missing or non-regular source file.
type InputNotFoundError struct {
	Path   string
	Reason string
}

func (e *InputNotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("input file %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("input file not found: %s", e.Path)
}

// EmptyInputError reports a zero-length plaintext.
type EmptyInputError struct {
	Path string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("input file is empty: %s", e.Path)
}

// OutputExistsError reports a destination that would be clobbered.
type OutputExistsError struct {
	Path string
}

func (e *OutputExistsError) Error() string {
	return fmt.Sprintf("output file already exists: %s", e.Path)
}

// MalformedInputError reports a sealed file too short to hold a salt.
type MalformedInputError struct {
	Path string
	Size int64
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed sealed file %s: %d bytes, need at least %d", e.Path, e.Size, SaltSize)
}

// OutputWriteError wraps a disk failure while writing the result.
type OutputWriteError struct {
	Path string
	Err  error
}

func (e *OutputWriteError) Error() string {
	return fmt.Sprintf("write output %s: %v", e.Path, e.Err)
}

func (e *OutputWriteError) Unwrap() error {
	return e.Err
}

// Code returns the stable error code for err.
func Code(err error) string {
	var (
		kdErr        *KeyDerivationError
		notFoundErr  *InputNotFoundError
		emptyErr     *EmptyInputError
		existsErr    *OutputExistsError
		malformedErr *MalformedInputError
		writeErr     *OutputWriteError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyPassword):
		return ErrCodeEmptyPassword
	case errors.Is(err, ErrInvalidPasswordOrCorruptData):
		return ErrCodeAuthentication
	case errors.As(err, &kdErr):
		return ErrCodeKeyDerivation
	case errors.As(err, &notFoundErr):
		return ErrCodeInputNotFound
	case errors.As(err, &emptyErr):
		return ErrCodeEmptyInput
	case errors.As(err, &existsErr):
		return ErrCodeOutputExists
	case errors.As(err, &malformedErr):
		return ErrCodeMalformedInput
	case errors.As(err, &writeErr):
		return ErrCodeOutputWrite
	default:
		return ErrCodeUnknown
	}
}

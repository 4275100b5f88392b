package testutil

import (
	"errors"
	"sync"

	"github.com/TheMichaelB/obsbackup/internal/crypto"
	"github.com/TheMichaelB/obsbackup/internal/storage"
)

// ErrMockSeal is returned by MockSealer when failure is injected.
var ErrMockSeal = errors.New("mock seal failure")

// SealCall records one call to MockSealer.
type SealCall struct {
	Op       string
	Input    string
	Output   string
	Password string
}

// MockSealer implements crypto.Sealer without key derivation. Sealed output
// is the input bytes with a marker prefix, stored through the given BlobStore.
type MockSealer struct {
	mu    sync.Mutex
	store storage.BlobStore
	calls []SealCall
	err   error
}

var _ crypto.Sealer = (*MockSealer)(nil)

const mockMarker = "MOCKSEAL:"

// NewMockSealer creates a sealer that reads and writes through store.
func NewMockSealer(store storage.BlobStore) *MockSealer {
	return &MockSealer{store: store}
}

// FailWith makes every following call return err.
func (m *MockSealer) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the recorded calls.
func (m *MockSealer) Calls() []SealCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SealCall(nil), m.calls...)
}

// Seal prefixes the input with a marker and password.
func (m *MockSealer) Seal(inputPath, outputPath, password string) error {
	if err := m.record("seal", inputPath, outputPath, password); err != nil {
		return err
	}

	data, err := m.store.Read(inputPath)
	if err != nil {
		return err
	}
	sealed := append([]byte(mockMarker+password+":"), data...)
	return m.store.Write(outputPath, sealed, crypto.FileMode, storage.ConflictError)
}

// Unseal reverses Seal, failing with crypto.ErrInvalidPasswordOrCorruptData
// on a password mismatch.
func (m *MockSealer) Unseal(inputPath, outputPath, password string) error {
	if err := m.record("unseal", inputPath, outputPath, password); err != nil {
		return err
	}

	data, err := m.store.Read(inputPath)
	if err != nil {
		return err
	}
	prefix := []byte(mockMarker + password + ":")
	if len(data) < len(prefix) || string(data[:len(prefix)]) != string(prefix) {
		return crypto.ErrInvalidPasswordOrCorruptData
	}
	return m.store.Write(outputPath, data[len(prefix):], crypto.FileMode, storage.ConflictError)
}

func (m *MockSealer) record(op, in, out, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SealCall{Op: op, Input: in, Output: out, Password: password})
	return m.err
}

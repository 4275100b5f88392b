package storage

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// MockStore provides an in-memory BlobStore for testing.
type MockStore struct {
	mu       sync.RWMutex
	files    map[string][]byte
	modes    map[string]os.FileMode
	writeErr error
	readErr  error
}

// NewMockStore creates a mock blob store.
func NewMockStore() *MockStore {
	return &MockStore{
		files: make(map[string][]byte),
		modes: make(map[string]os.FileMode),
	}
}

// FailWrites makes every following Write return err. Nil restores normal behavior.
func (m *MockStore) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// FailReads makes every following Read return err. Nil restores normal behavior.
func (m *MockStore) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// Write saves data to a file.
func (m *MockStore) Write(path string, data []byte, mode os.FileMode, strategy ConflictStrategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return m.writeErr
	}

	if _, exists := m.files[path]; exists && strategy == ConflictError {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}

	m.files[path] = append([]byte(nil), data...)
	m.modes[path] = mode
	return nil
}

// Read retrieves file contents.
func (m *MockStore) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.readErr != nil {
		return nil, m.readErr
	}

	if data, ok := m.files[path]; ok {
		return append([]byte(nil), data...), nil
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Exists checks if a file exists.
func (m *MockStore) Exists(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.files[path]
	return ok, nil
}

// Stat returns file information.
func (m *MockStore) Stat(path string) (FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[path]
	if !ok {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	return FileInfo{
		Path:    path,
		Size:    int64(len(data)),
		Mode:    m.modes[path],
		ModTime: time.Now(),
	}, nil
}

// Delete removes a file.
func (m *MockStore) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, path)
	delete(m.modes, path)
	return nil
}

// Move renames a file.
func (m *MockStore) Move(oldPath, newPath string, strategy ConflictStrategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[oldPath]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, oldPath)
	}
	if _, exists := m.files[newPath]; exists && strategy == ConflictError {
		return fmt.Errorf("%w: %s", ErrExists, newPath)
	}

	m.files[newPath] = data
	m.modes[newPath] = m.modes[oldPath]
	delete(m.files, oldPath)
	delete(m.modes, oldPath)
	return nil
}

// Files returns a snapshot of all stored paths and contents.
func (m *MockStore) Files() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.files))
	for path, data := range m.files {
		out[path] = append([]byte(nil), data...)
	}
	return out
}

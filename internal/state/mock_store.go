package state

import (
	"fmt"
	"sync"

	"github.com/TheMichaelB/obsbackup/internal/events"
	"github.com/TheMichaelB/obsbackup/internal/models"
)

// MockStore keeps the catalog in memory. It backs the "none" driver and tests.
type MockStore struct {
	mu      sync.RWMutex
	records map[string]*models.BackupRecord
	order   []string
	err     error
}

// NewMockStore creates an in-memory catalog.
func NewMockStore() *MockStore {
	return &MockStore{
		records: make(map[string]*models.BackupRecord),
	}
}

// FailWith makes every following operation return err. Nil restores normal behavior.
func (m *MockStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Record stores a copy of rec.
func (m *MockStore) Record(rec *models.BackupRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	cp := prepare(rec)
	if _, exists := m.records[cp.ID]; !exists {
		m.order = append(m.order, cp.ID)
	}
	m.records[cp.ID] = cp
	return nil
}

// Get returns a copy of the record with id.
func (m *MockStore) Get(id string) (*models.BackupRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}

	if rec, ok := m.records[id]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

// List returns records matching filter, newest first.
func (m *MockStore) List(filter models.RecordFilter) ([]*models.BackupRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.err != nil {
		return nil, m.err
	}

	all := make([]*models.BackupRecord, 0, len(m.order))
	for _, id := range m.order {
		cp := *m.records[id]
		all = append(all, &cp)
	}
	return filter.Apply(all), nil
}

// Delete removes a record.
func (m *MockStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	delete(m.records, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Migrate copies all records to target.
func (m *MockStore) Migrate(target Store) error {
	return migrate(m, target, events.NewNopLogger())
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Len returns the number of stored records.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

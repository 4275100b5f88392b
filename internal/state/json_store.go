package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TheMichaelB/obsbackup/internal/events"
	"github.com/TheMichaelB/obsbackup/internal/models"
	"github.com/TheMichaelB/obsbackup/internal/storage"
)

// catalogFile is the on-disk layout of the JSON catalog.
type catalogFile struct {
	SchemaVersion int                    `json:"schema_version"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Records       []*models.BackupRecord `json:"records"`
	Checksum      string                 `json:"checksum,omitempty"`
}

func (c *catalogFile) computeChecksum() (string, error) {
	verification := catalogFile{
		SchemaVersion: c.SchemaVersion,
		UpdatedAt:     c.UpdatedAt,
		Records:       c.Records,
	}
	data, err := json.Marshal(verification)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// JSONStore implements a file-based catalog.
type JSONStore struct {
	path   string
	files  storage.BlobStore
	logger *events.Logger

	mu sync.Mutex
}

// NewJSONStore creates a JSON catalog in baseDir.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &JSONStore{
		path:   filepath.Join(baseDir, JSONFileName),
		files:  storage.NewLocalStore(logger),
		logger: logger.WithField("component", "json_state_store"),
	}, nil
}

// Record appends or replaces a record.
func (s *JSONStore) Record(rec *models.BackupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := prepare(rec)

	catalog, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range catalog.Records {
		if existing.ID == cp.ID {
			catalog.Records[i] = cp
			replaced = true
			break
		}
	}
	if !replaced {
		catalog.Records = append(catalog.Records, cp)
	}

	s.logger.WithFields(map[string]interface{}{
		"id":   cp.ID,
		"kind": cp.Kind,
	}).Debug("Recording catalog entry")

	return s.save(catalog)
}

// Get retrieves a record by ID.
func (s *JSONStore) Get(id string) (*models.BackupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.load()
	if err != nil {
		return nil, err
	}

	for _, r := range catalog.Records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

// List returns records matching filter, newest first.
func (s *JSONStore) List(filter models.RecordFilter) ([]*models.BackupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.load()
	if err != nil {
		return nil, err
	}
	return filter.Apply(catalog.Records), nil
}

// Delete removes a record.
func (s *JSONStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.load()
	if err != nil {
		return err
	}

	for i, r := range catalog.Records {
		if r.ID == id {
			catalog.Records = append(catalog.Records[:i], catalog.Records[i+1:]...)
			return s.save(catalog)
		}
	}
	return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
}

// Migrate copies all records to another store.
func (s *JSONStore) Migrate(target Store) error {
	return migrate(s, target, s.logger)
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

// Path returns the catalog file location.
func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) backupPath() string {
	return s.path + ".backup"
}

func (s *JSONStore) load() (*catalogFile, error) {
	catalog, err := s.readCatalog(s.path)
	switch {
	case err == nil:
		return catalog, nil
	case errors.Is(err, storage.ErrNotFound):
		return &catalogFile{SchemaVersion: CurrentSchemaVersion}, nil
	case errors.Is(err, ErrStateCorrupt):
		if backup, berr := s.readCatalog(s.backupPath()); berr == nil {
			s.logger.Warn("Loaded catalog from backup due to corruption")
			return backup, nil
		}
		return nil, err
	default:
		return nil, err
	}
}

func (s *JSONStore) readCatalog(path string) (*catalogFile, error) {
	data, err := s.files.Read(path)
	if err != nil {
		return nil, err
	}

	var catalog catalogFile
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	if catalog.Checksum != "" {
		calculated, err := catalog.computeChecksum()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
		}
		if calculated != catalog.Checksum {
			s.logger.WithFields(map[string]interface{}{
				"path":     path,
				"expected": catalog.Checksum,
				"actual":   calculated,
			}).Error("Catalog checksum mismatch")
			return nil, ErrStateCorrupt
		}
	}

	if catalog.SchemaVersion != CurrentSchemaVersion {
		s.logger.WithField("version", catalog.SchemaVersion).Warn("Catalog schema version mismatch")
	}

	return &catalog, nil
}

func (s *JSONStore) save(catalog *catalogFile) error {
	catalog.SchemaVersion = CurrentSchemaVersion
	catalog.UpdatedAt = time.Now().UTC()
	catalog.Checksum = ""

	checksum, err := catalog.computeChecksum()
	if err != nil {
		return fmt.Errorf("marshal catalog for checksum: %w", err)
	}
	catalog.Checksum = checksum

	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	// Keep the previous generation as a fallback for corruption.
	if previous, err := s.files.Read(s.path); err == nil {
		if err := s.files.Write(s.backupPath(), previous, 0600, storage.ConflictOverwrite); err != nil {
			s.logger.WithError(err).Warn("Failed to create backup")
		}
	}

	if err := s.files.Write(s.path, data, 0600, storage.ConflictOverwrite); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/TheMichaelB/obsbackup/internal/config"
	"github.com/TheMichaelB/obsbackup/internal/events"
	"github.com/TheMichaelB/obsbackup/internal/models"
)

// Store manages the catalog of completed backups and restores.
type Store interface {
	// Record persists a record. Missing ID and CreatedAt are filled in.
	Record(rec *models.BackupRecord) error

	// Get retrieves a record by ID.
	Get(id string) (*models.BackupRecord, error)

	// List returns records matching filter, newest first.
	List(filter models.RecordFilter) ([]*models.BackupRecord, error)

	// Delete removes a record.
	Delete(id string) error

	// Migrate copies every record into target.
	Migrate(target Store) error

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrRecordNotFound = models.ErrRecordNotFound
	ErrStateCorrupt   = errors.New("catalog file is corrupt")
)

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1

// File names inside state.dir.
const (
	JSONFileName   = "catalog.json"
	SQLiteFileName = "catalog.db"
)

// New opens the catalog selected by cfg.Driver.
func New(cfg config.StateConfig, logger *events.Logger) (Store, error) {
	switch cfg.Driver {
	case "json":
		return NewJSONStore(cfg.Dir, logger)
	case "sqlite":
		if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.Dir, SQLiteFileName), logger)
	case "none", "":
		return NewMockStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown state driver %q", models.ErrInvalidConfig, cfg.Driver)
	}
}

// prepare fills generated fields and returns a private copy.
func prepare(rec *models.BackupRecord) *models.BackupRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	cp := *rec
	return &cp
}

func migrate(src, target Store, logger *events.Logger) error {
	records, err := src.List(models.RecordFilter{})
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	logger.WithField("count", len(records)).Info("Migrating catalog")

	// Oldest first keeps insertion order stable in the target.
	for i := len(records) - 1; i >= 0; i-- {
		if err := target.Record(records[i]); err != nil {
			return fmt.Errorf("migrate record %s: %w", records[i].ID, err)
		}
	}
	return nil
}

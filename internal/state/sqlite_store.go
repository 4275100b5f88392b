package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/obsbackup/internal/events"
	"github.com/TheMichaelB/obsbackup/internal/models"
)

// SQLiteStore implements a SQLite-based catalog.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore opens or creates the catalog database at dbPath.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_state_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS backups (
        id TEXT PRIMARY KEY,
        kind TEXT NOT NULL,
        vault_path TEXT NOT NULL DEFAULT '',
        archive_path TEXT NOT NULL,
        source_path TEXT NOT NULL DEFAULT '',
        format TEXT NOT NULL DEFAULT '',
        encrypted INTEGER NOT NULL DEFAULT 0,
        size INTEGER NOT NULL DEFAULT 0,
        sha256 TEXT NOT NULL DEFAULT '',
        entries INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMP NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_backups_created ON backups(created_at);
    CREATE INDEX IF NOT EXISTS idx_backups_vault ON backups(vault_path);

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Record inserts or replaces a record.
func (s *SQLiteStore) Record(rec *models.BackupRecord) error {
	cp := prepare(rec)

	s.logger.WithFields(map[string]interface{}{
		"id":   cp.ID,
		"kind": cp.Kind,
	}).Debug("Recording catalog entry in SQLite")

	_, err := s.db.Exec(`
        INSERT INTO backups (id, kind, vault_path, archive_path, source_path, format,
                             encrypted, size, sha256, entries, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            kind = excluded.kind,
            vault_path = excluded.vault_path,
            archive_path = excluded.archive_path,
            source_path = excluded.source_path,
            format = excluded.format,
            encrypted = excluded.encrypted,
            size = excluded.size,
            sha256 = excluded.sha256,
            entries = excluded.entries,
            created_at = excluded.created_at
    `, cp.ID, string(cp.Kind), cp.VaultPath, cp.ArchivePath, cp.SourcePath, string(cp.Format),
		cp.Encrypted, cp.Size, cp.SHA256, cp.Entries, cp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

const selectColumns = `SELECT id, kind, vault_path, archive_path, source_path, format,
        encrypted, size, sha256, entries, created_at FROM backups`

// Get retrieves a record by ID.
func (s *SQLiteStore) Get(id string) (*models.BackupRecord, error) {
	row := s.db.QueryRow(selectColumns+" WHERE id = ?", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query record: %w", err)
	}
	return rec, nil
}

// List returns records matching filter, newest first.
func (s *SQLiteStore) List(filter models.RecordFilter) ([]*models.BackupRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.VaultPath != "" {
		where = append(where, "vault_path = ?")
		args = append(args, filter.VaultPath)
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []*models.BackupRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Delete removes a record.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM backups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// Migrate copies all records to another store.
func (s *SQLiteStore) Migrate(target Store) error {
	return migrate(s, target, s.logger)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*models.BackupRecord, error) {
	var (
		rec       models.BackupRecord
		kind      string
		format    string
		createdAt time.Time
	)

	err := row.Scan(&rec.ID, &kind, &rec.VaultPath, &rec.ArchivePath, &rec.SourcePath, &format,
		&rec.Encrypted, &rec.Size, &rec.SHA256, &rec.Entries, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.Kind = models.RecordKind(kind)
	rec.Format = models.ArchiveFormat(format)
	rec.CreatedAt = createdAt.UTC()
	return &rec, nil
}

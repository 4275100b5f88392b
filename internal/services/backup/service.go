package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/TheMichaelB/obsbackup/internal/archive"
	"github.com/TheMichaelB/obsbackup/internal/config"
	"github.com/TheMichaelB/obsbackup/internal/crypto"
	"github.com/TheMichaelB/obsbackup/internal/events"
	"github.com/TheMichaelB/obsbackup/internal/models"
	"github.com/TheMichaelB/obsbackup/internal/state"
	"github.com/TheMichaelB/obsbackup/internal/storage"
)

// TimestampLayout is the time part of backup file names.
const TimestampLayout = "20060102_150405"

// tempPattern names the private work directory created next to the output.
const tempPattern = ".obsbackup-*"

// Service creates vault backups.
type Service struct {
	store    storage.BlobStore
	sealer   crypto.Sealer
	catalog  state.Store
	archiver *archive.Writer
	cfg      *config.BackupConfig
	logger   *events.Logger
	now      func() time.Time
}

// Options overrides configured values for one backup. Zero values fall back
// to the service configuration.
type Options struct {
	Encrypt   bool
	Password  string
	OutputDir string
	Format    string
	OnEvent   func(Event)
}

// Result describes a finished backup.
type Result struct {
	Record   *models.BackupRecord
	Summary  *models.VaultSummary
	Path     string
	Duration time.Duration
}

// NewService creates a backup service.
func NewService(
	store storage.BlobStore,
	sealer crypto.Sealer,
	catalog state.Store,
	cfg *config.BackupConfig,
	logger *events.Logger,
) *Service {
	return &Service{
		store:    store,
		sealer:   sealer,
		catalog:  catalog,
		archiver: archive.NewWriter(logger),
		cfg:      cfg,
		logger:   logger.WithField("service", "backup"),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for backup names.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// FileName returns the backup file name for a point in time.
func (s *Service) FileName(format models.ArchiveFormat, encrypted bool, at time.Time) string {
	name := s.cfg.NamePrefix + "_" + at.Format(TimestampLayout) + format.Extension()
	if encrypted {
		name += models.EncryptedSuffix
	}
	return name
}

// Create archives the vault at vaultPath and, when encryption is on, seals
// the archive with the password. The finished file never replaces an
// existing one.
func (s *Service) Create(ctx context.Context, vaultPath string, opts Options) (*Result, error) {
	began := time.Now()
	start := s.now()
	emit := func(ev Event) {
		ev.Timestamp = time.Now()
		if opts.OnEvent != nil {
			opts.OnEvent(ev)
		}
	}

	result, err := s.create(ctx, vaultPath, opts, start, emit)
	if err != nil {
		emit(Event{Type: EventFailed, Error: err})
		s.logger.WithError(err).WithField("vault", vaultPath).Error("Backup failed")
		return nil, err
	}

	result.Duration = time.Since(began)
	emit(Event{Type: EventCompleted, Path: result.Path, Summary: result.Summary})

	s.logger.WithFields(map[string]interface{}{
		"path":      result.Path,
		"files":     result.Summary.Files,
		"size":      result.Record.Size,
		"encrypted": result.Record.Encrypted,
		"duration":  result.Duration.String(),
	}).Info("Backup created")

	return result, nil
}

func (s *Service) create(ctx context.Context, vaultPath string, opts Options, start time.Time, emit func(Event)) (*Result, error) {
	vaultPath, err := s.validateVault(vaultPath)
	if err != nil {
		return nil, err
	}

	password := opts.Password
	if password == "" {
		password = s.cfg.Password
	}
	if opts.Encrypt && password == "" {
		return nil, models.ErrPasswordRequired
	}

	formatName := opts.Format
	if formatName == "" {
		formatName = s.cfg.Format
	}
	format, err := models.ParseArchiveFormat(formatName)
	if err != nil {
		return nil, err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = s.cfg.OutputDir
	}
	outputDir, err = filepath.Abs(config.ExpandPath(outputDir))
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	name := s.FileName(format, opts.Encrypt, start)
	finalPath := filepath.Join(outputDir, name)

	exists, err := s.store.Exists(finalPath)
	if err != nil {
		return nil, fmt.Errorf("check output: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", models.ErrBackupExists, finalPath)
	}

	logger := s.logger.WithFields(map[string]interface{}{
		"vault":  vaultPath,
		"output": finalPath,
	})
	logger.Info("Creating backup")
	emit(Event{Type: EventStarted, Path: finalPath})

	workDir, err := os.MkdirTemp(outputDir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.WithError(err).Warn("Failed to remove work directory")
		}
	}()

	archivePath := filepath.Join(workDir, s.FileName(format, false, start))
	summary, err := s.archiver.Create(ctx, vaultPath, archivePath, archive.Options{
		Format: format,
		Level:  s.cfg.Level,
		Skip:   []string{workDir},
		OnEntry: func(e *models.ArchiveEntry) {
			emit(Event{Type: EventEntryAdded, Entry: e})
		},
	})
	if err != nil {
		return nil, err
	}
	emit(Event{Type: EventArchived, Summary: summary})

	producedPath := archivePath
	if opts.Encrypt {
		emit(Event{Type: EventSealing})
		sealedPath := archivePath + models.EncryptedSuffix
		if err := s.sealer.Seal(archivePath, sealedPath, password); err != nil {
			return nil, &models.EncryptionError{Op: "seal", Path: archivePath, Err: err}
		}
		emit(Event{Type: EventSealed})
		producedPath = sealedPath
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.store.Move(producedPath, finalPath, storage.ConflictError); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return nil, fmt.Errorf("%w: %s", models.ErrBackupExists, finalPath)
		}
		return nil, fmt.Errorf("promote backup: %w", err)
	}

	info, err := s.store.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}
	sum, err := fileSHA256(finalPath)
	if err != nil {
		return nil, fmt.Errorf("hash backup: %w", err)
	}

	rec := &models.BackupRecord{
		ID:          uuid.NewString(),
		Kind:        models.KindBackup,
		VaultPath:   vaultPath,
		ArchivePath: finalPath,
		Format:      format,
		Encrypted:   opts.Encrypt,
		Size:        info.Size,
		SHA256:      sum,
		Entries:     summary.Entries(),
		CreatedAt:   start.UTC(),
	}
	if err := s.catalog.Record(rec); err != nil {
		logger.WithError(err).Warn("Failed to record backup in catalog")
	}

	return &Result{
		Record:  rec,
		Summary: summary,
		Path:    finalPath,
	}, nil
}

func (s *Service) validateVault(vaultPath string) (string, error) {
	if vaultPath == "" {
		vaultPath = s.cfg.VaultPath
	}
	if vaultPath == "" {
		return "", &models.VaultValidationError{Path: vaultPath, Reason: "no vault path configured"}
	}

	abs, err := filepath.Abs(config.ExpandPath(vaultPath))
	if err != nil {
		return "", &models.VaultValidationError{Path: vaultPath, Reason: err.Error()}
	}

	info, err := s.store.Stat(abs)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "", &models.VaultValidationError{Path: abs, Reason: "does not exist"}
	case err != nil:
		return "", &models.VaultValidationError{Path: abs, Reason: err.Error()}
	case !info.IsDir:
		return "", &models.VaultValidationError{Path: abs, Reason: "not a directory"}
	}

	// The archive walk does not descend into a symlinked root.
	if info.IsSymlink {
		target, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return "", &models.VaultValidationError{Path: abs, Reason: err.Error()}
		}
		s.logger.WithFields(map[string]interface{}{
			"link":   abs,
			"target": target,
		}).Debug("Vault path is a symbolic link")
		abs = target
	}

	return abs, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

package restore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
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

// Service decrypts sealed backups.
type Service struct {
	store   storage.BlobStore
	sealer  crypto.Sealer
	catalog state.Store
	cfg     *config.RestoreConfig
	logger  *events.Logger
}

// Options controls one restore.
type Options struct {
	Password  string
	OutputDir string // empty = restore.output_dir, then the sealed file's directory

	// Extract unpacks the decrypted archive into ExtractDir, or into the
	// output directory when ExtractDir is empty.
	Extract    bool
	ExtractDir string
}

// Result describes a finished restore.
type Result struct {
	Record    *models.BackupRecord
	Path      string
	Summary   *models.VaultSummary // nil unless the archive was verified or extracted
	Extracted string
	VerifyErr error // set when the decrypted file failed archive verification
	Duration  time.Duration
}

// NewService creates a restore service.
func NewService(
	store storage.BlobStore,
	sealer crypto.Sealer,
	catalog state.Store,
	cfg *config.RestoreConfig,
	logger *events.Logger,
) *Service {
	return &Service{
		store:   store,
		sealer:  sealer,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger.WithField("service", "restore"),
	}
}

// OutputPath returns where the decrypted archive for encPath lands.
func (s *Service) OutputPath(encPath, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = s.cfg.OutputDir
	}
	if outputDir == "" {
		outputDir = filepath.Dir(encPath)
	}

	outputDir, err := filepath.Abs(config.ExpandPath(outputDir))
	if err != nil {
		return "", fmt.Errorf("resolve output directory: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(encPath), models.EncryptedSuffix)
	return filepath.Join(outputDir, name), nil
}

// Restore decrypts the sealed backup at encPath.
func (s *Service) Restore(ctx context.Context, encPath string, opts Options) (*Result, error) {
	start := time.Now()

	result, err := s.restore(ctx, encPath, opts)
	if err != nil {
		s.logger.WithError(err).WithField("path", encPath).Error("Restore failed")
		return nil, err
	}
	result.Duration = time.Since(start)

	s.logger.WithFields(map[string]interface{}{
		"path":     result.Path,
		"duration": result.Duration.String(),
	}).Info("Backup decrypted")

	return result, nil
}

func (s *Service) restore(ctx context.Context, encPath string, opts Options) (*Result, error) {
	encPath, err := s.validateInput(encPath)
	if err != nil {
		return nil, err
	}
	if opts.Password == "" {
		return nil, models.ErrPasswordRequired
	}

	outPath, err := s.OutputPath(encPath, opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	logger := s.logger.WithFields(map[string]interface{}{
		"input":  encPath,
		"output": outPath,
	})
	logger.Info("Decrypting backup")

	if err := s.sealer.Unseal(encPath, outPath, opts.Password); err != nil {
		return nil, &models.EncryptionError{Op: "unseal", Path: encPath, Err: err}
	}

	result := &Result{Path: outPath}

	if s.cfg.VerifyArchive && !opts.Extract {
		summary, err := archive.Inspect(ctx, outPath)
		if err != nil {
			logger.WithError(err).Warn("Decrypted file is not a readable archive")
			result.VerifyErr = err
		}
		result.Summary = summary
	}

	if opts.Extract {
		dest := config.ExpandPath(opts.ExtractDir)
		if dest == "" {
			dest = filepath.Dir(outPath)
		}
		summary, err := archive.Extract(ctx, outPath, dest)
		if err != nil {
			return nil, err
		}
		result.Summary = summary
		result.Extracted = filepath.Join(dest, summary.Name)
		logger.WithField("dest", result.Extracted).Info("Archive extracted")
	}

	rec := &models.BackupRecord{
		ID:          uuid.NewString(),
		Kind:        models.KindRestore,
		ArchivePath: outPath,
		SourcePath:  encPath,
		Format:      models.DetectArchiveFormat(outPath, nil),
		Encrypted:   false,
		CreatedAt:   time.Now().UTC(),
	}
	if info, err := s.store.Stat(outPath); err == nil {
		rec.Size = info.Size
	}
	if result.Summary != nil {
		rec.Entries = result.Summary.Entries()
	}
	if err := s.catalog.Record(rec); err != nil {
		logger.WithError(err).Warn("Failed to record restore in catalog")
	}
	result.Record = rec

	return result, nil
}

func (s *Service) validateInput(encPath string) (string, error) {
	abs, err := filepath.Abs(config.ExpandPath(encPath))
	if err != nil {
		return "", fmt.Errorf("resolve input: %w", err)
	}

	info, err := s.store.Stat(abs)
	if errors.Is(err, storage.ErrNotFound) {
		return "", &crypto.InputNotFoundError{Path: abs}
	}
	if err != nil {
		return "", &crypto.InputNotFoundError{Path: abs, Reason: err.Error()}
	}
	if !info.IsRegular() {
		return "", &crypto.InputNotFoundError{Path: abs, Reason: "not a regular file"}
	}
	if !strings.HasSuffix(abs, models.EncryptedSuffix) {
		return "", fmt.Errorf("%w: %s", models.ErrNotEncrypted, abs)
	}

	return abs, nil
}

package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"github.com/TheMichaelB/obsbackup/internal/models"
)

// visitFunc receives each entry with a reader over its content. The reader
// is nil for directories.
type visitFunc func(entry *models.ArchiveEntry, mode os.FileMode, r io.Reader) error

// DetectFormat sniffs the archive format of the file at path.
func DetectFormat(path string) (models.ArchiveFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.FormatUnknown, err
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return models.FormatUnknown, err
	}
	return models.DetectArchiveFormat(path, head[:n]), nil
}

// Inspect reads every entry of the archive at path, decompressing all
// content, and returns what it holds. A truncated or corrupted archive fails.
func Inspect(ctx context.Context, path string) (*models.VaultSummary, error) {
	summary := &models.VaultSummary{}
	err := visit(ctx, path, func(entry *models.ArchiveEntry, _ os.FileMode, r io.Reader) error {
		if r != nil {
			n, err := io.Copy(io.Discard, r)
			if err != nil {
				return err
			}
			entry.Size = n
		}
		if summary.Name == "" {
			summary.Name = strings.SplitN(entry.NormalizedPath(), "/", 2)[0]
		}
		summary.Add(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Extract unpacks the archive at path below destDir. Existing files are
// never replaced. Entries that would land outside destDir are rejected.
func Extract(ctx context.Context, path, destDir string) (*models.VaultSummary, error) {
	destDir, err := filepath.Abs(destDir)
	if err != nil {
		return nil, &models.ArchiveError{Op: "extract", Path: destDir, Err: err}
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, &models.ArchiveError{Op: "extract", Path: destDir, Err: err}
	}

	summary := &models.VaultSummary{}
	err = visit(ctx, path, func(entry *models.ArchiveEntry, mode os.FileMode, r io.Reader) error {
		target := filepath.Join(destDir, filepath.FromSlash(entry.NormalizedPath()))
		if target != destDir && !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
			return fmt.Errorf("%w: %s", ErrUnsafePath, entry.Path)
		}

		if entry.IsDirectory {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		} else {
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			n, err := extractFile(target, mode, r)
			if err != nil {
				return err
			}
			entry.Size = n
		}

		if summary.Name == "" {
			summary.Name = strings.SplitN(entry.NormalizedPath(), "/", 2)[0]
		}
		summary.Add(entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func extractFile(target string, mode os.FileMode, r io.Reader) (int64, error) {
	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return 0, err
	}
	return n, nil
}

func visit(ctx context.Context, path string, fn visitFunc) error {
	format, err := DetectFormat(path)
	if err != nil {
		return &models.ArchiveError{Op: "open", Path: path, Err: err}
	}

	switch format {
	case models.FormatTarGz:
		err = visitTarGz(ctx, path, fn)
	case models.FormatZip:
		err = visitZip(ctx, path, fn)
	default:
		err = ErrUnknownFormat
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var archiveErr *models.ArchiveError
		if errors.As(err, &archiveErr) {
			return err
		}
		return &models.ArchiveError{Op: "read", Path: path, Err: err}
	}
	return nil
}

func visitTarGz(ctx context.Context, path string, fn visitFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			// Drain the padding so the gzip trailer checksum is verified.
			_, err = io.Copy(io.Discard, gz)
			return err
		}
		if err != nil {
			return err
		}

		entry := &models.ArchiveEntry{
			Path:         hdr.Name,
			ModifiedTime: hdr.ModTime,
		}
		if !entry.IsSafe() {
			return fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			entry.IsDirectory = true
			err = fn(entry, hdr.FileInfo().Mode(), nil)
		case tar.TypeReg:
			err = fn(entry, hdr.FileInfo().Mode(), tr)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}
}

func visitZip(ctx context.Context, path string, fn visitFunc) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry := &models.ArchiveEntry{
			Path:         zf.Name,
			ModifiedTime: zf.Modified,
			IsDirectory:  strings.HasSuffix(zf.Name, "/"),
		}
		if !entry.IsSafe() {
			return fmt.Errorf("%w: %s", ErrUnsafePath, zf.Name)
		}

		if entry.IsDirectory {
			if err := fn(entry, zf.Mode(), nil); err != nil {
				return err
			}
			continue
		}

		if err := visitZipFile(zf, entry, fn); err != nil {
			return err
		}
	}
	return nil
}

func visitZipFile(zf *zip.File, entry *models.ArchiveEntry, fn visitFunc) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	return fn(entry, zf.Mode(), rc)
}

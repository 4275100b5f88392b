// Package archive packs a vault directory into a tar.gz or zip file and reads
// such files back for verification and extraction.
package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/TheMichaelB/obsbackup/internal/events"
	"github.com/TheMichaelB/obsbackup/internal/models"
)

// Errors
var (
	ErrUnknownFormat = errors.New("unknown archive format")
	ErrUnsafePath    = errors.New("archive entry escapes destination")
)

const fileMode = 0600

// Options controls archive creation.
type Options struct {
	Format models.ArchiveFormat
	Level  int // flate level, -2 (huffman only) to 9

	// Skip lists absolute paths left out of the archive, such as a
	// temporary directory that lives inside the vault.
	Skip []string

	// OnEntry is called after each entry is written.
	OnEntry func(*models.ArchiveEntry)
}

// Writer builds archives from directories.
type Writer struct {
	logger *events.Logger
}

// NewWriter creates an archive writer.
func NewWriter(logger *events.Logger) *Writer {
	return &Writer{
		logger: logger.WithField("component", "archive"),
	}
}

// Create writes srcDir into a new archive at destPath. Entries are rooted at
// the base name of srcDir. destPath must not exist; a partial file is
// removed on failure.
func (w *Writer) Create(ctx context.Context, srcDir, destPath string, opts Options) (*models.VaultSummary, error) {
	srcDir, err := filepath.Abs(srcDir)
	if err != nil {
		return nil, &models.ArchiveError{Op: "create", Path: srcDir, Err: err}
	}

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fileMode)
	if err != nil {
		return nil, &models.ArchiveError{Op: "create", Path: destPath, Err: err}
	}

	summary, err := w.write(ctx, f, srcDir, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &models.ArchiveError{Op: "close", Path: destPath, Err: cerr}
	}
	if err != nil {
		os.Remove(destPath)
		return nil, err
	}

	w.logger.WithFields(map[string]interface{}{
		"path":   destPath,
		"format": opts.Format,
		"files":  summary.Files,
		"dirs":   summary.Dirs,
	}).Debug("Archive written")

	return summary, nil
}

func (w *Writer) write(ctx context.Context, f *os.File, srcDir string, opts Options) (*models.VaultSummary, error) {
	buf := bufio.NewWriterSize(f, 256*1024)

	var (
		ew  entryWriter
		err error
	)
	switch opts.Format {
	case models.FormatTarGz:
		ew, err = newTarGzWriter(buf, opts.Level)
	case models.FormatZip:
		ew, err = newZipWriter(buf, opts.Level)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
	if err != nil {
		return nil, &models.ArchiveError{Op: "create", Path: f.Name(), Err: err}
	}

	summary, err := w.walk(ctx, ew, srcDir, opts)
	if cerr := ew.Close(); err == nil && cerr != nil {
		err = &models.ArchiveError{Op: "finish", Path: f.Name(), Err: cerr}
	}
	if err != nil {
		return nil, err
	}

	if err := buf.Flush(); err != nil {
		return nil, &models.ArchiveError{Op: "flush", Path: f.Name(), Err: err}
	}
	if err := f.Sync(); err != nil {
		return nil, &models.ArchiveError{Op: "sync", Path: f.Name(), Err: err}
	}

	return summary, nil
}

func (w *Writer) walk(ctx context.Context, ew entryWriter, srcDir string, opts Options) (*models.VaultSummary, error) {
	root := filepath.Base(srcDir)
	summary := &models.VaultSummary{Name: root}

	skip := make(map[string]bool, len(opts.Skip))
	for _, p := range opts.Skip {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		skip[abs] = true
	}

	// Skip entries are resolved, so the walk must run over resolved paths too.
	walkRoot, err := filepath.Abs(srcDir)
	if err != nil {
		return nil, &models.ArchiveError{Op: "add", Path: srcDir, Err: err}
	}
	if resolved, err := filepath.EvalSymlinks(walkRoot); err == nil {
		walkRoot = resolved
	}

	err = filepath.WalkDir(walkRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if skip[path] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if !info.Mode().IsRegular() && !info.IsDir() {
			w.logger.WithField("path", path).Debug("Skipping special file")
			return nil
		}

		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return err
		}

		entry := &models.ArchiveEntry{
			Path:         filepath.Join(root, rel),
			ModifiedTime: info.ModTime(),
			IsDirectory:  info.IsDir(),
		}
		if !info.IsDir() {
			entry.Size = info.Size()
		}

		if err := ew.WriteEntry(entry, path, info); err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}

		summary.Add(entry)
		if opts.OnEntry != nil {
			opts.OnEntry(entry)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &models.ArchiveError{Op: "add", Path: srcDir, Err: err}
	}

	return summary, nil
}

// entryWriter adds entries to one archive format.
type entryWriter interface {
	WriteEntry(entry *models.ArchiveEntry, srcPath string, info os.FileInfo) error
	Close() error
}

type zipWriter struct {
	zw *zip.Writer
}

func newZipWriter(w io.Writer, level int) (*zipWriter, error) {
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, fmt.Errorf("invalid compression level %d", level)
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
	return &zipWriter{zw: zw}, nil
}

func (z *zipWriter) WriteEntry(entry *models.ArchiveEntry, srcPath string, info os.FileInfo) error {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = entry.NormalizedPath()
	if entry.IsDirectory {
		hdr.Method = zip.Store
	} else {
		hdr.Method = zip.Deflate
	}

	dst, err := z.zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if entry.IsDirectory {
		return nil
	}
	return copyFile(dst, srcPath)
}

func (z *zipWriter) Close() error {
	return z.zw.Close()
}

func copyFile(dst io.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(dst, src)
	return err
}

package archive

import (
	"archive/tar"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/TheMichaelB/obsbackup/internal/models"
)

type tarGzWriter struct {
	gz *gzip.Writer
	tw *tar.Writer
}

func newTarGzWriter(w io.Writer, level int) (*tarGzWriter, error) {
	gz, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, err
	}
	return &tarGzWriter{
		gz: gz,
		tw: tar.NewWriter(gz),
	}, nil
}

func (t *tarGzWriter) WriteEntry(entry *models.ArchiveEntry, srcPath string, info os.FileInfo) error {
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = entry.NormalizedPath()
	hdr.Format = tar.FormatPAX

	// Owner names differ between machines and carry no meaning in a backup.
	hdr.Uname = ""
	hdr.Gname = ""

	if err := t.tw.WriteHeader(hdr); err != nil {
		return err
	}
	if entry.IsDirectory {
		return nil
	}
	return copyFile(t.tw, srcPath)
}

func (t *tarGzWriter) Close() error {
	if err := t.tw.Close(); err != nil {
		t.gz.Close()
		return err
	}
	return t.gz.Close()
}

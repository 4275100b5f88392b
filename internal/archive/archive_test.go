package archive_test

import (
	"archive/tar"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/obsbackup/internal/archive"
	"github.com/TheMichaelB/obsbackup/internal/models"
	"github.com/TheMichaelB/obsbackup/test/testutil"
)

func newWriter() *archive.Writer {
	return archive.NewWriter(testutil.NewTestLogger())
}

func TestCreateExtractRoundTrip(t *testing.T) {
	for _, format := range []models.ArchiveFormat{models.FormatTarGz, models.FormatZip} {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			fixture := testutil.SampleVault()
			vault := fixture.Create(t, dir)

			dest := filepath.Join(dir, "backup"+format.Extension())
			var seen []string
			summary, err := newWriter().Create(context.Background(), vault, dest, archive.Options{
				Format: format,
				Level:  -1,
				OnEntry: func(e *models.ArchiveEntry) {
					seen = append(seen, e.NormalizedPath())
				},
			})
			require.NoError(t, err)

			assert.Equal(t, "vault", summary.Name)
			assert.Equal(t, fixture.FileCount(), summary.Files)
			assert.Equal(t, fixture.TotalBytes(), summary.Bytes)
			assert.Equal(t, summary.Entries(), len(seen))
			assert.Contains(t, seen, "vault/")
			assert.Contains(t, seen, "vault/Archive/Empty/")

			detected, err := archive.DetectFormat(dest)
			require.NoError(t, err)
			assert.Equal(t, format, detected)

			inspected, err := archive.Inspect(context.Background(), dest)
			require.NoError(t, err)
			assert.Equal(t, summary, inspected)

			out := filepath.Join(dir, "restored")
			extracted, err := archive.Extract(context.Background(), dest, out)
			require.NoError(t, err)
			assert.Equal(t, summary.Files, extracted.Files)

			fixture.AssertMatches(t, filepath.Join(out, "vault"))
		})
	}
}

func TestCreateRefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	vault := testutil.SampleVault().Create(t, dir)

	dest := filepath.Join(dir, "backup.tar.gz")
	require.NoError(t, os.WriteFile(dest, []byte("keep me"), 0644))

	_, err := newWriter().Create(context.Background(), vault, dest, archive.Options{Format: models.FormatTarGz, Level: -1})

	var archiveErr *models.ArchiveError
	require.True(t, errors.As(err, &archiveErr))
	assert.ErrorIs(t, err, os.ErrExist)

	content, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, "keep me", string(content))
}

func TestCreateSkipsPaths(t *testing.T) {
	dir := t.TempDir()
	vault := testutil.SampleVault().Create(t, dir)

	skipped := filepath.Join(vault, ".obsbackup-tmp")
	require.NoError(t, os.MkdirAll(skipped, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(skipped, "partial"), []byte("x"), 0600))

	dest := filepath.Join(skipped, "backup.tar.gz")
	summary, err := newWriter().Create(context.Background(), vault, dest, archive.Options{
		Format: models.FormatTarGz,
		Level:  -1,
		Skip:   []string{skipped},
	})
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleVault().FileCount(), summary.Files)
}

func TestCreateSkipsPathsThroughLink(t *testing.T) {
	dir := t.TempDir()
	vault := testutil.SampleVault().Create(t, dir)
	link := filepath.Join(dir, "linked")
	require.NoError(t, os.Symlink(vault, link))

	skipped := filepath.Join(link, ".obsbackup-tmp")
	require.NoError(t, os.MkdirAll(skipped, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(skipped, "partial"), []byte("x"), 0600))

	summary, err := newWriter().Create(context.Background(), vault, filepath.Join(skipped, "backup.zip"), archive.Options{
		Format: models.FormatZip,
		Level:  -1,
		Skip:   []string{skipped},
	})
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleVault().FileCount(), summary.Files)
	assert.Equal(t, filepath.Base(vault), summary.Name)
}

func TestCreateUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	vault := testutil.SampleVault().Create(t, dir)
	dest := filepath.Join(dir, "backup.rar")

	_, err := newWriter().Create(context.Background(), vault, dest, archive.Options{Format: "rar"})
	assert.ErrorIs(t, err, archive.ErrUnknownFormat)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "partial archive must be removed")
}

func TestCreateInvalidZipLevel(t *testing.T) {
	dir := t.TempDir()
	vault := testutil.SampleVault().Create(t, dir)

	_, err := newWriter().Create(context.Background(), vault, filepath.Join(dir, "b.zip"), archive.Options{
		Format: models.FormatZip,
		Level:  42,
	})
	var archiveErr *models.ArchiveError
	assert.True(t, errors.As(err, &archiveErr))
}

func TestCreateCancelled(t *testing.T) {
	dir := t.TempDir()
	vault := testutil.SampleVault().Create(t, dir)
	dest := filepath.Join(dir, "backup.tar.gz")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newWriter().Create(ctx, vault, dest, archive.Options{Format: models.FormatTarGz, Level: -1})
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestInspectCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	vault := testutil.SampleVault().Create(t, dir)
	dest := filepath.Join(dir, "backup.tar.gz")

	_, err := newWriter().Create(context.Background(), vault, dest, archive.Options{Format: models.FormatTarGz, Level: -1})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)

	truncated := filepath.Join(dir, "truncated.tar.gz")
	require.NoError(t, os.WriteFile(truncated, data[:len(data)/2], 0600))

	_, err = archive.Inspect(context.Background(), truncated)
	var archiveErr *models.ArchiveError
	assert.True(t, errors.As(err, &archiveErr))
}

func TestInspectUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0600))

	_, err := archive.Inspect(context.Background(), path)
	assert.ErrorIs(t, err, archive.ErrUnknownFormat)
}

func TestExtractRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evil.tar.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	content := []byte("owned")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../escape.txt",
		Mode:     0644,
		Size:     int64(len(content)),
		Typeflag: tar.TypeReg,
	}))
	_, err = tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "out")
	_, err = archive.Extract(context.Background(), path, out)
	assert.ErrorIs(t, err, archive.ErrUnsafePath)

	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	fixture := testutil.SampleVault()
	vault := fixture.Create(t, dir)
	dest := filepath.Join(dir, "backup.zip")

	_, err := newWriter().Create(context.Background(), vault, dest, archive.Options{Format: models.FormatZip, Level: 6})
	require.NoError(t, err)

	out := filepath.Join(dir, "out")
	existing := filepath.Join(out, "vault", "Welcome.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0755))
	require.NoError(t, os.WriteFile(existing, []byte("local edits"), 0644))

	_, err = archive.Extract(context.Background(), dest, out)
	assert.ErrorIs(t, err, os.ErrExist)

	content, readErr := os.ReadFile(existing)
	require.NoError(t, readErr)
	assert.Equal(t, "local edits", string(content))
}

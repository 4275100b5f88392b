package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/obsbackup/internal/models"
)

func TestArchiveEntryNormalizedPath(t *testing.T) {
	tests := []struct {
		entry models.ArchiveEntry
		want  string
	}{
		{models.ArchiveEntry{Path: "vault/notes/a.md"}, "vault/notes/a.md"},
		{models.ArchiveEntry{Path: "vault/./notes//a.md"}, "vault/notes/a.md"},
		{models.ArchiveEntry{Path: "vault/notes", IsDirectory: true}, "vault/notes/"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.entry.NormalizedPath())
	}
}

func TestArchiveEntryIsSafe(t *testing.T) {
	safe := []string{"vault/a.md", "vault/.obsidian/app.json", "a..b/c.md"}
	unsafe := []string{"", "/etc/passwd", "../escape.md", "vault/../../x", "vault\\..\\x", "a\x00b"}

	for _, p := range safe {
		e := models.ArchiveEntry{Path: p}
		assert.True(t, e.IsSafe(), p)
	}
	for _, p := range unsafe {
		e := models.ArchiveEntry{Path: p}
		assert.False(t, e.IsSafe(), p)
	}
}

func TestParseArchiveFormat(t *testing.T) {
	f, err := models.ParseArchiveFormat("TAR.GZ")
	require.NoError(t, err)
	assert.Equal(t, models.FormatTarGz, f)

	f, err = models.ParseArchiveFormat("zip")
	require.NoError(t, err)
	assert.Equal(t, models.FormatZip, f)
	assert.Equal(t, ".zip", f.Extension())

	_, err = models.ParseArchiveFormat("rar")
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestDetectArchiveFormat(t *testing.T) {
	assert.Equal(t, models.FormatTarGz, models.DetectArchiveFormat("x.bin", []byte{0x1f, 0x8b, 0x08}))
	assert.Equal(t, models.FormatZip, models.DetectArchiveFormat("x.bin", []byte("PK\x03\x04rest")))
	assert.Equal(t, models.FormatTarGz, models.DetectArchiveFormat("backup.tar.gz.enc", nil))
	assert.Equal(t, models.FormatZip, models.DetectArchiveFormat("/dir/backup.ZIP", []byte("??")))
	assert.Equal(t, models.FormatUnknown, models.DetectArchiveFormat("notes.md", []byte("# title")))
}

func TestRecordFilter(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	records := []*models.BackupRecord{
		{ID: "1", Kind: models.KindBackup, VaultPath: "/v1", CreatedAt: base},
		{ID: "2", Kind: models.KindRestore, CreatedAt: base.Add(time.Hour)},
		{ID: "3", Kind: models.KindBackup, VaultPath: "/v2", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "4", Kind: models.KindBackup, VaultPath: "/v1", CreatedAt: base.Add(3 * time.Hour)},
	}

	ids := func(rs []*models.BackupRecord) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}

	assert.Equal(t, []string{"4", "3", "2", "1"}, ids(models.RecordFilter{}.Apply(records)))
	assert.Equal(t, []string{"4", "3", "1"}, ids(models.RecordFilter{Kind: models.KindBackup}.Apply(records)))
	assert.Equal(t, []string{"4", "1"}, ids(models.RecordFilter{VaultPath: "/v1"}.Apply(records)))
	assert.Equal(t, []string{"4", "3"}, ids(models.RecordFilter{Limit: 2}.Apply(records)))

	assert.Equal(t, "1", records[0].ID, "input slice is not reordered")
}

func TestVaultSummary(t *testing.T) {
	var s models.VaultSummary
	s.Add(&models.ArchiveEntry{Path: "v", IsDirectory: true})
	s.Add(&models.ArchiveEntry{Path: "v/a.md", Size: 10})
	s.Add(&models.ArchiveEntry{Path: "v/b.png", Size: 32})

	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 1, s.Dirs)
	assert.Equal(t, int64(42), s.Bytes)
	assert.Equal(t, 3, s.Entries())
}

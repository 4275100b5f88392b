package testutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/obsbackup/internal/events"
)

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// VaultFixture describes a vault laid out on disk for tests.
type VaultFixture struct {
	Name  string
	Files map[string][]byte // slash-separated path relative to the vault root
	Dirs  []string          // empty directories
}

// SampleVault returns a small vault with notes, attachments and config.
func SampleVault() *VaultFixture {
	return &VaultFixture{
		Name: "vault",
		Files: map[string][]byte{
			"Welcome.md":                  []byte("# Welcome\n\nThis is your new vault.\n"),
			"Daily/2024-01-15.md":         []byte("- [ ] review backups\n- [x] write notes\n"),
			"Daily/2024-01-16.md":         []byte("Nothing today.\n"),
			"Projects/Backup/plan.md":     []byte("## Plan\n\n1. archive\n2. seal\n3. store offsite\n"),
			"attachments/diagram.png":     {0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0xff, 0xfe},
			".obsidian/app.json":          []byte(`{"promptDelete":false}`),
			".obsidian/workspace.json":    []byte(`{"main":{"id":"a1b2"}}`),
			"Unicode/Zürich café ☕.md":     []byte("Grüße\n"),
		},
		Dirs: []string{"Archive/Empty"},
	}
}

// Create writes the fixture below parent and returns the vault path.
func (v *VaultFixture) Create(t testing.TB, parent string) string {
	t.Helper()

	root := filepath.Join(parent, v.Name)
	require.NoError(t, os.MkdirAll(root, 0755))

	mtime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	for rel, content := range v.Files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, content, 0644))
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
	for _, rel := range v.Dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel)), 0755))
	}

	return root
}

// FileCount returns the number of regular files in the fixture.
func (v *VaultFixture) FileCount() int {
	return len(v.Files)
}

// TotalBytes returns the summed size of all files.
func (v *VaultFixture) TotalBytes() int64 {
	var n int64
	for _, content := range v.Files {
		n += int64(len(content))
	}
	return n
}

// AssertMatches checks that dir holds exactly the fixture's files.
func (v *VaultFixture) AssertMatches(t testing.TB, dir string) {
	t.Helper()

	got := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		got[filepath.ToSlash(rel)] = content
		return nil
	})
	require.NoError(t, err)

	require.Equal(t, sortedKeys(v.Files), sortedKeys(got))
	for rel, want := range v.Files {
		require.Equal(t, want, got[rel], "content of %s", rel)
	}
	for _, rel := range v.Dirs {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err)
		require.True(t, info.IsDir(), "%s should be a directory", rel)
	}
}

// FileHash returns the hex SHA-256 of the file at path.
func FileHash(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// GenerateBytes returns size bytes of deterministic, poorly compressible data.
func GenerateBytes(size int) []byte {
	data := make([]byte, size)
	x := uint32(2463534242)
	for i := range data {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		data[i] = byte(x)
	}
	return data
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package models

import (
	"sort"
	"time"
)

// RecordKind distinguishes catalog entries.
type RecordKind string

const (
	KindBackup  RecordKind = "backup"
	KindRestore RecordKind = "restore"
)

// BackupRecord describes one completed backup or restore.
type BackupRecord struct {
	ID          string        `json:"id"`
	Kind        RecordKind    `json:"kind"`
	VaultPath   string        `json:"vault_path,omitempty"`
	ArchivePath string        `json:"archive_path"`
	SourcePath  string        `json:"source_path,omitempty"`
	Format      ArchiveFormat `json:"format"`
	Encrypted   bool          `json:"encrypted"`
	Size        int64         `json:"size"`
	SHA256      string        `json:"sha256,omitempty"`
	Entries     int           `json:"entries,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// RecordFilter selects catalog entries. Zero values match everything.
type RecordFilter struct {
	Kind      RecordKind
	VaultPath string
	Limit     int
}

// Match reports whether r passes the filter.
func (f RecordFilter) Match(r *BackupRecord) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.VaultPath != "" && r.VaultPath != f.VaultPath {
		return false
	}
	return true
}

// Apply filters records, orders them newest first and applies the limit.
func (f RecordFilter) Apply(records []*BackupRecord) []*BackupRecord {
	out := make([]*BackupRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}

	SortNewestFirst(out)

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// SortNewestFirst orders records by creation time, newest first.
func SortNewestFirst(records []*BackupRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

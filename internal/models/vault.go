package models

// VaultSummary counts what an archive run picked up from a vault.
type VaultSummary struct {
	Name  string `json:"name"`
	Files int    `json:"files"`
	Dirs  int    `json:"dirs"`
	Bytes int64  `json:"bytes"`
}

// Add accounts for one archived entry.
func (s *VaultSummary) Add(e *ArchiveEntry) {
	if e.IsDirectory {
		s.Dirs++
		return
	}
	s.Files++
	s.Bytes += e.Size
}

// Entries returns the total number of archive entries.
func (s *VaultSummary) Entries() int {
	return s.Files + s.Dirs
}

package backup

import (
	"time"

	"github.com/TheMichaelB/obsbackup/internal/models"
)

// Event reports backup progress.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Path      string
	Entry     *models.ArchiveEntry
	Summary   *models.VaultSummary
	Error     error
}

// EventType defines backup event types.
type EventType string

const (
	EventStarted    EventType = "started"
	EventEntryAdded EventType = "entry_added"
	EventArchived   EventType = "archived"
	EventSealing    EventType = "sealing"
	EventSealed     EventType = "sealed"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
)

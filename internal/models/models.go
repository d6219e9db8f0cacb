package models

import (
	"errors"
	"time"
)

// SprintStatus enumerates the possible states of a sprint.
type SprintStatus string

const (
	StatusPlanning  SprintStatus = "planning"
	StatusActive    SprintStatus = "active"
	StatusCompleted SprintStatus = "completed"
)

// Valid reports whether s is one of the known sprint statuses.
func (s SprintStatus) Valid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusCompleted:
		return true
	}
	return false
}

// EntryType records how a ticket entered a sprint.
type EntryType string

const (
	EntryAdded       EntryType = "added"
	EntryCarriedOver EntryType = "carried_over"
)

// ExitStatus records how a ticket left a sprint. The zero value means the
// ledger entry is still open.
type ExitStatus string

const (
	ExitOpen        ExitStatus = ""
	ExitCompleted   ExitStatus = "completed"
	ExitCarriedOver ExitStatus = "carried_over"
	ExitRemoved     ExitStatus = "removed"
)

// Storage sentinels shared by every store implementation.
var (
	ErrNotFound           = errors.New("not found")
	ErrActiveSprintExists = errors.New("project already has an active sprint")
	ErrOpenEntryExists    = errors.New("ticket already has an open entry in sprint")
)

// Project is the tenant every sprint, column and ticket belongs to.
type Project struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Column is a board column (status bucket) of a project.
type Column struct {
	ID        int64
	ProjectID int64
	Name      string
	Position  int
}

// CompletionSnapshot holds the figures written when a sprint completes.
type CompletionSnapshot struct {
	CompletedAt           time.Time
	CompletedByID         int64
	CompletedTicketCount  int
	IncompleteTicketCount int
	CompletedStoryPoints  float64
	IncompleteStoryPoints float64
}

// Sprint is a time-boxed planning unit scoped to one project.
type Sprint struct {
	ID        int64
	ProjectID int64
	Name      string
	Status    SprintStatus
	Goal      *string
	StartDate *time.Time
	EndDate   *time.Time
	Budget    *float64 // capacity in story points
	CreatedAt time.Time

	// Completion snapshot, nil unless the sprint is completed.
	CompletedAt           *time.Time
	CompletedByID         *int64
	CompletedTicketCount  *int
	IncompleteTicketCount *int
	CompletedStoryPoints  *float64
	IncompleteStoryPoints *float64
}

// Snapshot returns the completion snapshot if one is recorded.
func (s Sprint) Snapshot() (CompletionSnapshot, bool) {
	if s.CompletedAt == nil {
		return CompletionSnapshot{}, false
	}
	snap := CompletionSnapshot{CompletedAt: *s.CompletedAt}
	if s.CompletedByID != nil {
		snap.CompletedByID = *s.CompletedByID
	}
	if s.CompletedTicketCount != nil {
		snap.CompletedTicketCount = *s.CompletedTicketCount
	}
	if s.IncompleteTicketCount != nil {
		snap.IncompleteTicketCount = *s.IncompleteTicketCount
	}
	if s.CompletedStoryPoints != nil {
		snap.CompletedStoryPoints = *s.CompletedStoryPoints
	}
	if s.IncompleteStoryPoints != nil {
		snap.IncompleteStoryPoints = *s.IncompleteStoryPoints
	}
	return snap, true
}

// Ticket is a unit of work owned by one project. A nil SprintID means the
// ticket sits in the backlog.
type Ticket struct {
	ID                  int64
	ProjectID           int64
	SprintID            *int64
	ColumnID            int64
	Title               string
	StoryPoints         *float64
	IsCarriedOver       bool
	CarriedFromSprintID *int64
	CarriedOverCount    int
	CreatedAt           time.Time
}

// Points returns the story point estimate, treating a missing estimate as 0.
func (t Ticket) Points() float64 {
	if t.StoryPoints == nil {
		return 0
	}
	return *t.StoryPoints
}

// HistoryEntry is one ticket's membership interval in one sprint.
type HistoryEntry struct {
	ID                  int64
	TicketID            int64
	SprintID            int64
	EntryType           EntryType
	CarriedFromSprintID *int64
	AddedAt             time.Time
	RemovedAt           *time.Time
	ExitStatus          ExitStatus
}

// Open reports whether the entry is the ticket's current interval in the sprint.
func (e HistoryEntry) Open() bool {
	return e.ExitStatus == ExitOpen
}

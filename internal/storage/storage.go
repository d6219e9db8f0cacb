// Package storage defines the transactional port the sprint lifecycle engine
// runs against. The SQLite (internal/database) and PostgreSQL
// (internal/pgstore) backends both implement it.
package storage

import (
	"context"
	"time"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

// Store runs units of work atomically. fn either commits as a whole or leaves
// no trace; implementations retry transient lock contention before fn's
// writes become visible.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the set of reads and writes available inside one transaction.
// Lookups of missing rows return an error matching models.ErrNotFound.
type Tx interface {
	SprintTx
	TicketTx
	HistoryTx
	CatalogTx
}

// SprintTx covers sprint rows.
type SprintTx interface {
	GetSprint(ctx context.Context, id int64) (models.Sprint, error)
	// ActiveSprint returns nil when the project has no active sprint.
	ActiveSprint(ctx context.Context, projectID int64) (*models.Sprint, error)
	ListSprints(ctx context.Context, projectID int64) ([]models.Sprint, error)
	CreateSprint(ctx context.Context, s *models.Sprint) error
	// ActivateSprint fails with models.ErrActiveSprintExists when another
	// sprint of the project is already active.
	ActivateSprint(ctx context.Context, id int64, start time.Time, end *time.Time) error
	CompleteSprint(ctx context.Context, id int64, snap models.CompletionSnapshot) error
	ReopenSprint(ctx context.Context, id int64) error
	SetSprintEndDate(ctx context.Context, id int64, end time.Time) error
}

// TicketTx covers the ticket fields the engine reads and writes.
type TicketTx interface {
	GetTicket(ctx context.Context, id int64) (models.Ticket, error)
	TicketsInSprint(ctx context.Context, sprintID int64) ([]models.Ticket, error)
	BacklogTickets(ctx context.Context, projectID int64) ([]models.Ticket, error)
	AssignTicket(ctx context.Context, ticketID int64, sprintID *int64) error
	CarryOverTicket(ctx context.Context, ticketID, fromSprintID, toSprintID int64) error
}

// HistoryTx covers the append-only ticket/sprint ledger.
type HistoryTx interface {
	HasHistoryEntry(ctx context.Context, ticketID, sprintID int64) (bool, error)
	InsertHistoryEntry(ctx context.Context, e *models.HistoryEntry) error
	// CloseHistoryEntry closes the open entry for the pair and reports whether
	// one existed.
	CloseHistoryEntry(ctx context.Context, ticketID, sprintID int64, exit models.ExitStatus, at time.Time) (bool, error)
	TicketHistory(ctx context.Context, ticketID int64) ([]models.HistoryEntry, error)
	SprintHistory(ctx context.Context, sprintID int64) ([]models.HistoryEntry, error)
}

// CatalogTx covers the project data the engine treats as read-only input,
// plus the writes used to seed it.
type CatalogTx interface {
	GetProject(ctx context.Context, id int64) (models.Project, error)
	CreateProject(ctx context.Context, name string) (int64, error)
	Columns(ctx context.Context, projectID int64) ([]models.Column, error)
	CreateColumn(ctx context.Context, projectID int64, name string) (int64, error)
	CreateTicket(ctx context.Context, t *models.Ticket) error
	SetTicketColumn(ctx context.Context, ticketID, columnID int64) error
}

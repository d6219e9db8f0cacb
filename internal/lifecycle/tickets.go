package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

// MoveTicket assigns a ticket to a sprint, or to the backlog when sprintID is
// nil. Leaving a sprint closes the ticket's open interval there as removed;
// entering an active sprint opens a new one.
func (c *Controller) MoveTicket(ctx context.Context, caller Caller, ticketID int64, sprintID *int64) (models.Ticket, error) {
	var ticket models.Ticket
	err := c.execute(ctx, "move ticket", caller, derefID(sprintID), c.opTimeout, func(ctx context.Context, tx storage.Tx) error {
		tk, err := loadTicket(ctx, tx, caller, ticketID)
		if err != nil {
			return err
		}
		if sameSprint(tk.SprintID, sprintID) {
			ticket = tk
			return nil
		}

		var target *models.Sprint
		if sprintID != nil {
			s, err := tx.GetSprint(ctx, *sprintID)
			switch {
			case errors.Is(err, models.ErrNotFound):
				return &TargetError{TargetID: *sprintID, Reason: "not found"}
			case err != nil:
				return err
			case s.ProjectID != tk.ProjectID:
				return &TargetError{TargetID: *sprintID, Reason: "belongs to another project"}
			case s.Status == models.StatusCompleted:
				return &TargetError{TargetID: *sprintID, Reason: "status is completed"}
			}
			target = &s
		}

		now := c.now()
		if tk.SprintID != nil {
			if err := closeEntry(ctx, tx, tk.ID, *tk.SprintID, models.ExitRemoved, now); err != nil {
				return err
			}
		}
		if err := tx.AssignTicket(ctx, tk.ID, sprintID); err != nil {
			return err
		}
		if target != nil && target.Status == models.StatusActive {
			if err := reenterEntry(ctx, tx, tk.ID, target.ID, now); err != nil {
				return err
			}
		}
		ticket, err = tx.GetTicket(ctx, tk.ID)
		return err
	})
	return ticket, err
}

// TicketHistory returns a ticket's ledger across sprints, oldest first.
func (c *Controller) TicketHistory(ctx context.Context, caller Caller, ticketID int64) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := c.execute(ctx, "ticket history", caller, 0, c.opTimeout, func(ctx context.Context, tx storage.Tx) error {
		if _, err := loadTicket(ctx, tx, caller, ticketID); err != nil {
			return err
		}
		var err error
		entries, err = tx.TicketHistory(ctx, ticketID)
		return err
	})
	return entries, err
}

// SprintHistory returns every ledger entry recorded for a sprint.
func (c *Controller) SprintHistory(ctx context.Context, caller Caller, sprintID int64) ([]models.HistoryEntry, error) {
	var entries []models.HistoryEntry
	err := c.execute(ctx, "sprint history", caller, sprintID, c.opTimeout, func(ctx context.Context, tx storage.Tx) error {
		if _, err := loadSprint(ctx, tx, caller, sprintID); err != nil {
			return err
		}
		var err error
		entries, err = tx.SprintHistory(ctx, sprintID)
		return err
	})
	return entries, err
}

func loadTicket(ctx context.Context, tx storage.TicketTx, caller Caller, id int64) (models.Ticket, error) {
	tk, err := tx.GetTicket(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return models.Ticket{}, fmt.Errorf("ticket %d: %w", id, ErrTicketNotFound)
	}
	if err != nil {
		return models.Ticket{}, err
	}
	if tk.ProjectID != caller.ProjectID {
		return models.Ticket{}, fmt.Errorf("ticket %d: %w", id, ErrTicketNotFound)
	}
	return tk, nil
}

func sameSprint(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

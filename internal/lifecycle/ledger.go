package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

// openEntry records a ticket entering a sprint. It does nothing when any
// entry, open or closed, already exists for the pair, which makes history
// seeding safe to repeat. It reports whether a row was written.
func openEntry(ctx context.Context, tx storage.HistoryTx, ticketID, sprintID int64, typ models.EntryType, from *int64, at time.Time) (bool, error) {
	exists, err := tx.HasHistoryEntry(ctx, ticketID, sprintID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	err = tx.InsertHistoryEntry(ctx, &models.HistoryEntry{
		TicketID:            ticketID,
		SprintID:            sprintID,
		EntryType:           typ,
		CarriedFromSprintID: from,
		AddedAt:             at,
	})
	if errors.Is(err, models.ErrOpenEntryExists) {
		return false, nil
	}
	return err == nil, err
}

// reenterEntry opens a fresh interval for a ticket returning to a sprint it
// left earlier. Unlike openEntry it only requires that no interval is open.
func reenterEntry(ctx context.Context, tx storage.HistoryTx, ticketID, sprintID int64, at time.Time) error {
	err := tx.InsertHistoryEntry(ctx, &models.HistoryEntry{
		TicketID:  ticketID,
		SprintID:  sprintID,
		EntryType: models.EntryAdded,
		AddedAt:   at,
	})
	if errors.Is(err, models.ErrOpenEntryExists) {
		return nil
	}
	return err
}

// closeEntry closes the open interval for the pair. Tickets that never got an
// entry (legacy data) are tolerated.
func closeEntry(ctx context.Context, tx storage.HistoryTx, ticketID, sprintID int64, exit models.ExitStatus, at time.Time) error {
	_, err := tx.CloseHistoryEntry(ctx, ticketID, sprintID, exit, at)
	return err
}

// seedSprintHistory opens an "added" entry for every ticket assigned to the
// sprint that has no entry there yet.
func seedSprintHistory(ctx context.Context, tx storage.Tx, sprintID int64, at time.Time) (int, error) {
	tickets, err := tx.TicketsInSprint(ctx, sprintID)
	if err != nil {
		return 0, err
	}
	opened := 0
	for _, tk := range tickets {
		ok, err := openEntry(ctx, tx, tk.ID, sprintID, models.EntryAdded, nil, at)
		if err != nil {
			return opened, err
		}
		if ok {
			opened++
		}
	}
	return opened, nil
}

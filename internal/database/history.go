package database

import (
	"context"
	"time"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

const historyColumns = `id, ticket_id, sprint_id, entry_type, carried_from_sprint_id, added_at, removed_at, exit_status`

func scanHistoryEntry(row interface{ Scan(...interface{}) error }) (models.HistoryEntry, error) {
	var e models.HistoryEntry
	var exit *string
	if err := row.Scan(&e.ID, &e.TicketID, &e.SprintID, &e.EntryType, &e.CarriedFromSprintID, &e.AddedAt, &e.RemovedAt, &exit); err != nil {
		return models.HistoryEntry{}, err
	}
	if exit != nil {
		e.ExitStatus = models.ExitStatus(*exit)
	}
	return e, nil
}

// HasHistoryEntry reports whether any entry, open or closed, exists for the pair.
func (t *txStore) HasHistoryEntry(ctx context.Context, ticketID, sprintID int64) (bool, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM ticket_sprint_history WHERE ticket_id = ? AND sprint_id = ?",
		ticketID, sprintID).Scan(&n)
	if err != nil {
		return false, wrapErr(EntityHistory, "lookup", ticketID, err)
	}
	return n > 0, nil
}

func (t *txStore) InsertHistoryEntry(ctx context.Context, e *models.HistoryEntry) error {
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now().UTC()
	}
	var exit interface{}
	if e.ExitStatus != models.ExitOpen {
		exit = string(e.ExitStatus)
	}
	res, err := t.q.ExecContext(ctx, `INSERT INTO ticket_sprint_history (ticket_id, sprint_id, entry_type, carried_from_sprint_id, added_at, removed_at, exit_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.TicketID, e.SprintID, e.EntryType, toNullableArg(e.CarriedFromSprintID), e.AddedAt, toNullableArg(e.RemovedAt), exit)
	if err != nil {
		if isUniqueViolation(err) {
			return wrapErr(EntityHistory, "insert", e.TicketID, models.ErrOpenEntryExists)
		}
		return wrapErr(EntityHistory, "insert", e.TicketID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return wrapErr(EntityHistory, "insert", e.TicketID, err)
	}
	e.ID = id
	return nil
}

func (t *txStore) CloseHistoryEntry(ctx context.Context, ticketID, sprintID int64, exit models.ExitStatus, at time.Time) (bool, error) {
	res, err := t.q.ExecContext(ctx, `
		UPDATE ticket_sprint_history
		SET exit_status = ?, removed_at = ?
		WHERE ticket_id = ? AND sprint_id = ? AND exit_status IS NULL`,
		string(exit), at, ticketID, sprintID)
	if err != nil {
		return false, wrapErr(EntityHistory, "close", ticketID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr(EntityHistory, "close", ticketID, err)
	}
	return n > 0, nil
}

func (t *txStore) TicketHistory(ctx context.Context, ticketID int64) ([]models.HistoryEntry, error) {
	return t.queryHistory(ctx, "list ticket", "ticket_id = ?", ticketID)
}

func (t *txStore) SprintHistory(ctx context.Context, sprintID int64) ([]models.HistoryEntry, error) {
	return t.queryHistory(ctx, "list sprint", "sprint_id = ?", sprintID)
}

func (t *txStore) queryHistory(ctx context.Context, op, filter string, arg int64) ([]models.HistoryEntry, error) {
	rows, err := t.q.QueryContext(ctx,
		"SELECT "+historyColumns+" FROM ticket_sprint_history WHERE "+filter+" ORDER BY added_at ASC, id ASC", arg)
	if err != nil {
		return nil, wrapErr(EntityHistory, op, 0, err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, wrapErr(EntityHistory, op, 0, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(EntityHistory, op, 0, err)
	}
	return entries, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

func scanTicket(row interface{ Scan(...interface{}) error }) (models.Ticket, error) {
	var tk models.Ticket
	var carried int
	if err := row.Scan(
		&tk.ID,
		&tk.ProjectID,
		&tk.SprintID,
		&tk.ColumnID,
		&tk.Title,
		&tk.StoryPoints,
		&carried,
		&tk.CarriedFromSprintID,
		&tk.CarriedOverCount,
		&tk.CreatedAt,
	); err != nil {
		return models.Ticket{}, err
	}
	tk.IsCarriedOver = carried == 1
	return tk, nil
}

func (t *txStore) queryTickets(ctx context.Context, op string, q *TicketQuery) ([]models.Ticket, error) {
	query, args := q.Build()
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(EntityTicket, op, 0, err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		tk, err := scanTicket(rows)
		if err != nil {
			return nil, wrapErr(EntityTicket, op, 0, err)
		}
		tickets = append(tickets, tk)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(EntityTicket, op, 0, err)
	}
	return tickets, nil
}

func (t *txStore) GetTicket(ctx context.Context, id int64) (models.Ticket, error) {
	query, args := NewTicketQuery().WhereID(id).Build()
	tk, err := scanTicket(t.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, wrapErr(EntityTicket, "get", id, models.ErrNotFound)
	}
	return tk, wrapErr(EntityTicket, "get", id, err)
}

func (t *txStore) TicketsInSprint(ctx context.Context, sprintID int64) ([]models.Ticket, error) {
	return t.queryTickets(ctx, "list sprint", NewTicketQuery().WhereSprint(sprintID))
}

func (t *txStore) BacklogTickets(ctx context.Context, projectID int64) ([]models.Ticket, error) {
	return t.queryTickets(ctx, "list backlog", NewTicketQuery().WhereProject(projectID).WhereBacklog())
}

func (t *txStore) AssignTicket(ctx context.Context, ticketID int64, sprintID *int64) error {
	return t.updateTicket(ctx, "assign", ticketID, "UPDATE tickets SET sprint_id = ? WHERE id = ?", toNullableArg(sprintID), ticketID)
}

func (t *txStore) CarryOverTicket(ctx context.Context, ticketID, fromSprintID, toSprintID int64) error {
	return t.updateTicket(ctx, "carry over", ticketID, `
		UPDATE tickets
		SET sprint_id = ?,
		    is_carried_over = 1,
		    carried_from_sprint_id = ?,
		    carried_over_count = carried_over_count + 1
		WHERE id = ?`, toSprintID, fromSprintID, ticketID)
}

func (t *txStore) CreateTicket(ctx context.Context, tk *models.Ticket) error {
	if tk.CreatedAt.IsZero() {
		tk.CreatedAt = time.Now().UTC()
	}
	res, err := t.q.ExecContext(ctx, `INSERT INTO tickets (project_id, sprint_id, column_id, title, story_points, is_carried_over, carried_from_sprint_id, carried_over_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tk.ProjectID, toNullableArg(tk.SprintID), tk.ColumnID, tk.Title, toNullableArg(tk.StoryPoints),
		boolToInt(tk.IsCarriedOver), toNullableArg(tk.CarriedFromSprintID), tk.CarriedOverCount, tk.CreatedAt)
	if err != nil {
		return wrapErr(EntityTicket, "create", 0, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return wrapErr(EntityTicket, "create", 0, err)
	}
	tk.ID = id
	return nil
}

func (t *txStore) SetTicketColumn(ctx context.Context, ticketID, columnID int64) error {
	return t.updateTicket(ctx, "set column", ticketID, "UPDATE tickets SET column_id = ? WHERE id = ?", columnID, ticketID)
}

func (t *txStore) updateTicket(ctx context.Context, op string, id int64, query string, args ...interface{}) error {
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapErr(EntityTicket, op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(EntityTicket, op, id, err)
	}
	if n == 0 {
		return wrapErr(EntityTicket, op, id, models.ErrNotFound)
	}
	return nil
}

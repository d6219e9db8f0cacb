package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

const sprintColumns = `id, project_id, name, status, goal, start_date, end_date, budget, created_at,
	completed_at, completed_by_id, completed_ticket_count, incomplete_ticket_count, completed_story_points, incomplete_story_points`

func scanSprint(row interface{ Scan(...interface{}) error }) (models.Sprint, error) {
	var s models.Sprint
	if err := row.Scan(
		&s.ID,
		&s.ProjectID,
		&s.Name,
		&s.Status,
		&s.Goal,
		&s.StartDate,
		&s.EndDate,
		&s.Budget,
		&s.CreatedAt,
		&s.CompletedAt,
		&s.CompletedByID,
		&s.CompletedTicketCount,
		&s.IncompleteTicketCount,
		&s.CompletedStoryPoints,
		&s.IncompleteStoryPoints,
	); err != nil {
		return models.Sprint{}, err
	}
	return s, nil
}

func (t *txStore) GetSprint(ctx context.Context, id int64) (models.Sprint, error) {
	row := t.q.QueryRowContext(ctx, "SELECT "+sprintColumns+" FROM sprints WHERE id = ?", id)
	s, err := scanSprint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sprint{}, wrapErr(EntitySprint, "get", id, models.ErrNotFound)
	}
	return s, wrapErr(EntitySprint, "get", id, err)
}

func (t *txStore) ActiveSprint(ctx context.Context, projectID int64) (*models.Sprint, error) {
	row := t.q.QueryRowContext(ctx,
		"SELECT "+sprintColumns+" FROM sprints WHERE project_id = ? AND status = ? ORDER BY id ASC LIMIT 1",
		projectID, models.StatusActive)
	s, err := scanSprint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(EntitySprint, "get active", 0, err)
	}
	return &s, nil
}

func (t *txStore) ListSprints(ctx context.Context, projectID int64) ([]models.Sprint, error) {
	rows, err := t.q.QueryContext(ctx, "SELECT "+sprintColumns+" FROM sprints WHERE project_id = ? ORDER BY id ASC", projectID)
	if err != nil {
		return nil, wrapErr(EntitySprint, "list", 0, err)
	}
	defer rows.Close()

	var sprints []models.Sprint
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, wrapErr(EntitySprint, "list", 0, err)
		}
		sprints = append(sprints, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(EntitySprint, "list", 0, err)
	}
	return sprints, nil
}

func (t *txStore) CreateSprint(ctx context.Context, s *models.Sprint) error {
	if s.Status == "" {
		s.Status = models.StatusPlanning
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	res, err := t.q.ExecContext(ctx, `INSERT INTO sprints (project_id, name, status, goal, start_date, end_date, budget, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ProjectID, s.Name, s.Status, toNullableArg(s.Goal), toNullableArg(s.StartDate), toNullableArg(s.EndDate), toNullableArg(s.Budget), s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return wrapErr(EntitySprint, "create", 0, models.ErrActiveSprintExists)
		}
		return wrapErr(EntitySprint, "create", 0, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return wrapErr(EntitySprint, "create", 0, err)
	}
	s.ID = id
	return nil
}

func (t *txStore) ActivateSprint(ctx context.Context, id int64, start time.Time, end *time.Time) error {
	return t.updateSprint(ctx, "start", id,
		"UPDATE sprints SET status = 'active', start_date = ?, end_date = ? WHERE id = ?",
		start, toNullableArg(end), id)
}

func (t *txStore) CompleteSprint(ctx context.Context, id int64, snap models.CompletionSnapshot) error {
	return t.updateSprint(ctx, "complete", id, `
		UPDATE sprints
		SET status = 'completed',
		    completed_at = ?,
		    completed_by_id = ?,
		    completed_ticket_count = ?,
		    incomplete_ticket_count = ?,
		    completed_story_points = ?,
		    incomplete_story_points = ?
		WHERE id = ?`,
		snap.CompletedAt, nullableInt64(snap.CompletedByID), snap.CompletedTicketCount, snap.IncompleteTicketCount,
		snap.CompletedStoryPoints, snap.IncompleteStoryPoints, id)
}

func (t *txStore) ReopenSprint(ctx context.Context, id int64) error {
	return t.updateSprint(ctx, "reopen", id, `
		UPDATE sprints
		SET status = 'active',
		    completed_at = NULL,
		    completed_by_id = NULL,
		    completed_ticket_count = NULL,
		    incomplete_ticket_count = NULL,
		    completed_story_points = NULL,
		    incomplete_story_points = NULL
		WHERE id = ?`, id)
}

func (t *txStore) SetSprintEndDate(ctx context.Context, id int64, end time.Time) error {
	return t.updateSprint(ctx, "extend", id, "UPDATE sprints SET end_date = ? WHERE id = ?", end, id)
}

func (t *txStore) updateSprint(ctx context.Context, op string, id int64, query string, args ...interface{}) error {
	res, err := t.q.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return wrapErr(EntitySprint, op, id, models.ErrActiveSprintExists)
		}
		return wrapErr(EntitySprint, op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(EntitySprint, op, id, err)
	}
	if n == 0 {
		return wrapErr(EntitySprint, op, id, models.ErrNotFound)
	}
	return nil
}

// CountActiveSprints returns how many sprints of the project are active. The
// partial unique index keeps this at 0 or 1; it exists for health checks.
func (d *Database) CountActiveSprints(ctx context.Context, projectID int64) (int, error) {
	return withDBContextResult(d, ctx, func(ctx context.Context) (int, error) {
		var n int
		err := d.DB.QueryRowContext(ctx, "SELECT COUNT(1) FROM sprints WHERE project_id = ? AND status = 'active'", projectID).Scan(&n)
		if err != nil {
			return 0, wrapErr(EntitySprint, "count active", 0, fmt.Errorf("project %d: %w", projectID, err))
		}
		return n, nil
	})
}

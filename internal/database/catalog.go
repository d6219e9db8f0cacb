package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

func (t *txStore) GetProject(ctx context.Context, id int64) (models.Project, error) {
	var p models.Project
	err := t.q.QueryRowContext(ctx, "SELECT id, name, created_at FROM projects WHERE id = ?", id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, wrapErr(EntityProject, "get", id, models.ErrNotFound)
	}
	return p, wrapErr(EntityProject, "get", id, err)
}

func (t *txStore) CreateProject(ctx context.Context, name string) (int64, error) {
	res, err := t.q.ExecContext(ctx, "INSERT INTO projects (name) VALUES (?)", name)
	if err != nil {
		return 0, wrapErr(EntityProject, "create", 0, err)
	}
	return res.LastInsertId()
}

func (t *txStore) Columns(ctx context.Context, projectID int64) ([]models.Column, error) {
	rows, err := t.q.QueryContext(ctx, "SELECT id, project_id, name, position FROM columns WHERE project_id = ? ORDER BY position ASC, id ASC", projectID)
	if err != nil {
		return nil, wrapErr(EntityColumn, "list", 0, err)
	}
	defer rows.Close()

	var cols []models.Column
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Position); err != nil {
			return nil, wrapErr(EntityColumn, "list", 0, err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(EntityColumn, "list", 0, err)
	}
	return cols, nil
}

// CreateColumn appends a column after the project's existing ones.
func (t *txStore) CreateColumn(ctx context.Context, projectID int64, name string) (int64, error) {
	maxPos, err := t.getMaxColumnPosition(ctx, projectID)
	if err != nil {
		return 0, wrapErr(EntityColumn, "create", 0, err)
	}
	res, err := t.q.ExecContext(ctx, "INSERT INTO columns (project_id, name, position) VALUES (?, ?, ?)", projectID, name, maxPos+1)
	if err != nil {
		return 0, wrapErr(EntityColumn, "create", 0, err)
	}
	return res.LastInsertId()
}

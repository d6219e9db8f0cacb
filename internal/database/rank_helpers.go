package database

import "context"

// getMaxColumnPosition returns the highest board position used by a project.
func (t *txStore) getMaxColumnPosition(ctx context.Context, projectID int64) (int, error) {
	var maxPos int
	query := "SELECT COALESCE(MAX(position), 0) FROM columns WHERE project_id = ?"
	err := t.q.QueryRowContext(ctx, query, projectID).Scan(&maxPos)
	return maxPos, err
}

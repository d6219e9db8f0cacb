package database

import (
	"fmt"
	"strings"
)

const ticketColumns = `id, project_id, sprint_id, column_id, title, story_points, is_carried_over, carried_from_sprint_id, carried_over_count, created_at`

type TicketQuery struct {
	columns string
	filters []string
	args    []interface{}
	orderBy string
	limit   int
}

func NewTicketQuery() *TicketQuery {
	return &TicketQuery{columns: ticketColumns, orderBy: "id ASC"}
}

func (q *TicketQuery) Where(filter string, args ...interface{}) *TicketQuery {
	q.filters = append(q.filters, filter)
	q.args = append(q.args, args...)
	return q
}

func (q *TicketQuery) WhereID(id int64) *TicketQuery {
	return q.Where("id = ?", id)
}

func (q *TicketQuery) WhereBacklog() *TicketQuery {
	return q.Where("sprint_id IS NULL")
}

func (q *TicketQuery) WhereSprint(sprintID int64) *TicketQuery {
	return q.Where("sprint_id = ?", sprintID)
}

func (q *TicketQuery) WhereProject(projectID int64) *TicketQuery {
	return q.Where("project_id = ?", projectID)
}

func (q *TicketQuery) Limit(limit int) *TicketQuery {
	q.limit = limit
	return q
}

func (q *TicketQuery) Build() (string, []interface{}) {
	query := fmt.Sprintf("SELECT %s FROM tickets", q.columns)
	if len(q.filters) > 0 {
		query += " WHERE " + strings.Join(q.filters, " AND ")
	}
	if q.orderBy != "" {
		query += " ORDER BY " + q.orderBy
	}
	if q.limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.limit)
	}
	return query, q.args
}

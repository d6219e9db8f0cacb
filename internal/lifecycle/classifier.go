package lifecycle

import (
	"strings"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

// DonePredicate decides whether tickets in a column count as finished work.
type DonePredicate func(col models.Column) bool

// KeywordPredicate matches columns whose name contains any keyword, ignoring case.
func KeywordPredicate(keywords ...string) DonePredicate {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return func(col models.Column) bool {
		name := strings.ToLower(col.Name)
		for _, k := range lowered {
			if strings.Contains(name, k) {
				return true
			}
		}
		return false
	}
}

// DoneColumns resolves the done column set. Explicit ids win when given;
// otherwise every project column accepted by isDone is included.
func DoneColumns(cols []models.Column, explicit []int64, isDone DonePredicate) map[int64]bool {
	done := make(map[int64]bool)
	if len(explicit) > 0 {
		for _, id := range explicit {
			done[id] = true
		}
		return done
	}
	for _, col := range cols {
		if isDone(col) {
			done[col.ID] = true
		}
	}
	return done
}

// Classification partitions a sprint's tickets at one point in time.
type Classification struct {
	Completed  []models.Ticket `json:"completed"`
	Incomplete []models.Ticket `json:"incomplete"`

	CompletedTicketCount  int     `json:"completed_ticket_count"`
	IncompleteTicketCount int     `json:"incomplete_ticket_count"`
	CompletedStoryPoints  float64 `json:"completed_story_points"`
	IncompleteStoryPoints float64 `json:"incomplete_story_points"`
}

// Classify splits tickets by done column membership. Input order is kept in
// both partitions; missing estimates count as zero points.
func Classify(tickets []models.Ticket, done map[int64]bool) Classification {
	var c Classification
	for _, tk := range tickets {
		if done[tk.ColumnID] {
			c.Completed = append(c.Completed, tk)
			c.CompletedStoryPoints += tk.Points()
			continue
		}
		c.Incomplete = append(c.Incomplete, tk)
		c.IncompleteStoryPoints += tk.Points()
	}
	c.CompletedTicketCount = len(c.Completed)
	c.IncompleteTicketCount = len(c.Incomplete)
	return c
}

// Snapshot converts the aggregates into the figures stored on the sprint.
func (c Classification) Snapshot() models.CompletionSnapshot {
	return models.CompletionSnapshot{
		CompletedTicketCount:  c.CompletedTicketCount,
		IncompleteTicketCount: c.IncompleteTicketCount,
		CompletedStoryPoints:  c.CompletedStoryPoints,
		IncompleteStoryPoints: c.IncompleteStoryPoints,
	}
}

// Package report renders sprint summaries for the terminal and as PDF, and
// exports a project's sprints, tickets and ledger as JSON or YAML.
package report

import (
	"context"
	"fmt"

	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

// Line is one ledger entry joined with its ticket.
type Line struct {
	Entry  models.HistoryEntry
	Title  string
	Points float64
}

// SprintReport is everything a rendered report shows about one sprint.
type SprintReport struct {
	Project models.Project
	Sprint  models.Sprint
	Lines   []Line
}

// Group returns the lines whose entry ended with exit. ExitOpen selects the
// entries still open.
func (r SprintReport) Group(exit models.ExitStatus) []Line {
	var out []Line
	for _, l := range r.Lines {
		if l.Entry.ExitStatus == exit {
			out = append(out, l)
		}
	}
	return out
}

// Load reads a sprint and its ledger in one transaction. A sprint outside
// projectID is reported as not found.
func Load(ctx context.Context, store storage.Store, projectID, sprintID int64) (SprintReport, error) {
	var r SprintReport
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		r = SprintReport{}
		sprint, err := tx.GetSprint(ctx, sprintID)
		if err != nil {
			return err
		}
		if sprint.ProjectID != projectID {
			return fmt.Errorf("sprint %d: %w", sprintID, models.ErrNotFound)
		}
		r.Sprint = sprint
		if r.Project, err = tx.GetProject(ctx, projectID); err != nil {
			return err
		}
		entries, err := tx.SprintHistory(ctx, sprintID)
		if err != nil {
			return err
		}
		titles := map[int64]models.Ticket{}
		for _, e := range entries {
			tk, ok := titles[e.TicketID]
			if !ok {
				if tk, err = tx.GetTicket(ctx, e.TicketID); err != nil {
					return err
				}
				titles[e.TicketID] = tk
			}
			r.Lines = append(r.Lines, Line{Entry: e, Title: tk.Title, Points: tk.Points()})
		}
		return nil
	})
	return r, err
}

func formatPoints(p float64) string {
	if p == float64(int64(p)) {
		return fmt.Sprintf("%d", int64(p))
	}
	return fmt.Sprintf("%.1f", p)
}

func intOr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func floatOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

type ExportColumn struct {
	ID       int64  `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Position int    `json:"position" yaml:"position"`
}

type ExportSprint struct {
	ID                    int64      `json:"id" yaml:"id"`
	Name                  string     `json:"name" yaml:"name"`
	Status                string     `json:"status" yaml:"status"`
	Goal                  *string    `json:"goal,omitempty" yaml:"goal,omitempty"`
	StartDate             *time.Time `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate               *time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Budget                *float64   `json:"budget,omitempty" yaml:"budget,omitempty"`
	CreatedAt             time.Time  `json:"created_at" yaml:"created_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	CompletedByID         *int64     `json:"completed_by_id,omitempty" yaml:"completed_by_id,omitempty"`
	CompletedTicketCount  *int       `json:"completed_ticket_count,omitempty" yaml:"completed_ticket_count,omitempty"`
	IncompleteTicketCount *int       `json:"incomplete_ticket_count,omitempty" yaml:"incomplete_ticket_count,omitempty"`
	CompletedStoryPoints  *float64   `json:"completed_story_points,omitempty" yaml:"completed_story_points,omitempty"`
	IncompleteStoryPoints *float64   `json:"incomplete_story_points,omitempty" yaml:"incomplete_story_points,omitempty"`
}

type ExportTicket struct {
	ID                  int64    `json:"id" yaml:"id"`
	Title               string   `json:"title" yaml:"title"`
	SprintID            *int64   `json:"sprint_id,omitempty" yaml:"sprint_id,omitempty"`
	ColumnID            int64    `json:"column_id" yaml:"column_id"`
	StoryPoints         *float64 `json:"story_points,omitempty" yaml:"story_points,omitempty"`
	IsCarriedOver       bool     `json:"is_carried_over" yaml:"is_carried_over"`
	CarriedFromSprintID *int64   `json:"carried_from_sprint_id,omitempty" yaml:"carried_from_sprint_id,omitempty"`
	CarriedOverCount    int      `json:"carried_over_count" yaml:"carried_over_count"`
}

type ExportHistoryEntry struct {
	ID                  int64      `json:"id" yaml:"id"`
	TicketID            int64      `json:"ticket_id" yaml:"ticket_id"`
	SprintID            int64      `json:"sprint_id" yaml:"sprint_id"`
	EntryType           string     `json:"entry_type" yaml:"entry_type"`
	CarriedFromSprintID *int64     `json:"carried_from_sprint_id,omitempty" yaml:"carried_from_sprint_id,omitempty"`
	AddedAt             time.Time  `json:"added_at" yaml:"added_at"`
	RemovedAt           *time.Time `json:"removed_at,omitempty" yaml:"removed_at,omitempty"`
	ExitStatus          *string    `json:"exit_status" yaml:"exit_status"`
}

// ProjectExport is a full dump of one project's lifecycle data.
type ProjectExport struct {
	ExportedAt time.Time            `json:"exported_at" yaml:"exported_at"`
	ProjectID  int64                `json:"project_id" yaml:"project_id"`
	Project    string               `json:"project" yaml:"project"`
	Columns    []ExportColumn       `json:"columns" yaml:"columns"`
	Sprints    []ExportSprint       `json:"sprints" yaml:"sprints"`
	Tickets    []ExportTicket       `json:"tickets" yaml:"tickets"`
	History    []ExportHistoryEntry `json:"history" yaml:"history"`
}

// BuildExport reads the whole project in one transaction. Tickets are listed
// sprint by sprint, then the backlog.
func BuildExport(ctx context.Context, store storage.Store, projectID int64, now time.Time) (ProjectExport, error) {
	var out ProjectExport
	err := store.RunInTransaction(ctx, func(tx storage.Tx) error {
		out = ProjectExport{ExportedAt: now, ProjectID: projectID}
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		out.Project = project.Name

		cols, err := tx.Columns(ctx, projectID)
		if err != nil {
			return err
		}
		out.Columns = make([]ExportColumn, 0, len(cols))
		for _, c := range cols {
			out.Columns = append(out.Columns, ExportColumn{ID: c.ID, Name: c.Name, Position: c.Position})
		}

		sprints, err := tx.ListSprints(ctx, projectID)
		if err != nil {
			return err
		}
		out.Sprints = make([]ExportSprint, 0, len(sprints))
		out.Tickets = []ExportTicket{}
		out.History = []ExportHistoryEntry{}
		for _, s := range sprints {
			out.Sprints = append(out.Sprints, toExportSprint(s))
			tickets, err := tx.TicketsInSprint(ctx, s.ID)
			if err != nil {
				return err
			}
			for _, tk := range tickets {
				out.Tickets = append(out.Tickets, toExportTicket(tk))
			}
			entries, err := tx.SprintHistory(ctx, s.ID)
			if err != nil {
				return err
			}
			for _, e := range entries {
				out.History = append(out.History, toExportEntry(e))
			}
		}
		backlog, err := tx.BacklogTickets(ctx, projectID)
		if err != nil {
			return err
		}
		for _, tk := range backlog {
			out.Tickets = append(out.Tickets, toExportTicket(tk))
		}
		return nil
	})
	return out, err
}

// Encode writes e in the given format.
func (e ProjectExport) Encode(w io.Writer, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(e)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(e); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown export format %q", format)
}

func toExportSprint(s models.Sprint) ExportSprint {
	return ExportSprint{
		ID:                    s.ID,
		Name:                  s.Name,
		Status:                string(s.Status),
		Goal:                  s.Goal,
		StartDate:             s.StartDate,
		EndDate:               s.EndDate,
		Budget:                s.Budget,
		CreatedAt:             s.CreatedAt,
		CompletedAt:           s.CompletedAt,
		CompletedByID:         s.CompletedByID,
		CompletedTicketCount:  s.CompletedTicketCount,
		IncompleteTicketCount: s.IncompleteTicketCount,
		CompletedStoryPoints:  s.CompletedStoryPoints,
		IncompleteStoryPoints: s.IncompleteStoryPoints,
	}
}

func toExportTicket(t models.Ticket) ExportTicket {
	return ExportTicket{
		ID:                  t.ID,
		Title:               t.Title,
		SprintID:            t.SprintID,
		ColumnID:            t.ColumnID,
		StoryPoints:         t.StoryPoints,
		IsCarriedOver:       t.IsCarriedOver,
		CarriedFromSprintID: t.CarriedFromSprintID,
		CarriedOverCount:    t.CarriedOverCount,
	}
}

func toExportEntry(e models.HistoryEntry) ExportHistoryEntry {
	out := ExportHistoryEntry{
		ID:                  e.ID,
		TicketID:            e.TicketID,
		SprintID:            e.SprintID,
		EntryType:           string(e.EntryType),
		CarriedFromSprintID: e.CarriedFromSprintID,
		AddedAt:             e.AddedAt,
		RemovedAt:           e.RemovedAt,
	}
	if !e.Open() {
		s := string(e.ExitStatus)
		out.ExitStatus = &s
	}
	return out
}

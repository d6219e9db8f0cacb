package testutil

import (
	"time"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

// TicketBuilder provides fluent API for creating test tickets.
type TicketBuilder struct {
	ticket models.Ticket
}

func NewTicket() *TicketBuilder {
	return &TicketBuilder{
		ticket: models.Ticket{
			ProjectID: 1,
			Title:     "Test Ticket",
			CreatedAt: time.Now(),
		},
	}
}

func (b *TicketBuilder) WithID(id int64) *TicketBuilder {
	b.ticket.ID = id
	return b
}

func (b *TicketBuilder) WithTitle(title string) *TicketBuilder {
	b.ticket.Title = title
	return b
}

func (b *TicketBuilder) WithColumn(id int64) *TicketBuilder {
	b.ticket.ColumnID = id
	return b
}

func (b *TicketBuilder) WithPoints(p float64) *TicketBuilder {
	b.ticket.StoryPoints = &p
	return b
}

func (b *TicketBuilder) InSprint(id int64) *TicketBuilder {
	b.ticket.SprintID = &id
	return b
}

// CarriedFrom marks the ticket as carried over count times, most recently
// from sprint id.
func (b *TicketBuilder) CarriedFrom(id int64, count int) *TicketBuilder {
	b.ticket.IsCarriedOver = true
	b.ticket.CarriedFromSprintID = &id
	b.ticket.CarriedOverCount = count
	return b
}

func (b *TicketBuilder) Build() models.Ticket {
	return b.ticket
}

// SprintBuilder provides fluent API for creating test sprints.
type SprintBuilder struct {
	sprint models.Sprint
}

func NewSprint() *SprintBuilder {
	return &SprintBuilder{
		sprint: models.Sprint{
			ProjectID: 1,
			Name:      "Sprint 1",
			Status:    models.StatusPlanning,
			CreatedAt: time.Now(),
		},
	}
}

func (b *SprintBuilder) WithID(id int64) *SprintBuilder {
	b.sprint.ID = id
	return b
}

func (b *SprintBuilder) WithName(name string) *SprintBuilder {
	b.sprint.Name = name
	return b
}

func (b *SprintBuilder) WithStatus(s models.SprintStatus) *SprintBuilder {
	b.sprint.Status = s
	return b
}

func (b *SprintBuilder) WithDates(start, end time.Time) *SprintBuilder {
	b.sprint.StartDate = &start
	b.sprint.EndDate = &end
	return b
}

func (b *SprintBuilder) WithGoal(goal string) *SprintBuilder {
	b.sprint.Goal = &goal
	return b
}

// Completed sets a completion snapshot and the completed status.
func (b *SprintBuilder) Completed(snap models.CompletionSnapshot) *SprintBuilder {
	b.sprint.Status = models.StatusCompleted
	b.sprint.CompletedAt = &snap.CompletedAt
	b.sprint.CompletedByID = &snap.CompletedByID
	b.sprint.CompletedTicketCount = &snap.CompletedTicketCount
	b.sprint.IncompleteTicketCount = &snap.IncompleteTicketCount
	b.sprint.CompletedStoryPoints = &snap.CompletedStoryPoints
	b.sprint.IncompleteStoryPoints = &snap.IncompleteStoryPoints
	return b
}

func (b *SprintBuilder) Build() models.Sprint {
	return b.sprint
}

// ColumnBuilder provides fluent API for creating test board columns.
type ColumnBuilder struct {
	column models.Column
}

func NewColumn() *ColumnBuilder {
	return &ColumnBuilder{column: models.Column{ProjectID: 1, Name: "To Do"}}
}

func (b *ColumnBuilder) WithID(id int64) *ColumnBuilder {
	b.column.ID = id
	return b
}

func (b *ColumnBuilder) WithName(name string) *ColumnBuilder {
	b.column.Name = name
	return b
}

func (b *ColumnBuilder) Build() models.Column {
	return b.column
}

package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

type TestDataBuilder struct {
	t         *testing.T
	ctx       context.Context
	db        *Database
	projectID int64
	columnIDs map[string]int64
	sprintIDs []int64
	ticketIDs []int64
}

func NewTestDataBuilder(t *testing.T) *TestDataBuilder {
	t.Helper()
	ctx := context.Background()
	db := setupTestDB(t, ctx)
	return &TestDataBuilder{t: t, ctx: ctx, db: db, columnIDs: map[string]int64{}}
}

func (b *TestDataBuilder) tx(fn func(tx storage.Tx) error) {
	b.t.Helper()
	if err := b.db.RunInTransaction(b.ctx, fn); err != nil {
		b.t.Fatalf("RunInTransaction failed: %v", err)
	}
}

func (b *TestDataBuilder) WithProject(name string, columns ...string) *TestDataBuilder {
	b.t.Helper()
	b.tx(func(tx storage.Tx) error {
		id, err := tx.CreateProject(b.ctx, name)
		if err != nil {
			return err
		}
		b.projectID = id
		for _, col := range columns {
			colID, err := tx.CreateColumn(b.ctx, id, col)
			if err != nil {
				return err
			}
			b.columnIDs[col] = colID
		}
		return nil
	})
	return b
}

func (b *TestDataBuilder) WithSprints(count int) *TestDataBuilder {
	b.t.Helper()
	if b.projectID == 0 {
		b.WithProject("Default", "To Do", "Done")
	}
	b.tx(func(tx storage.Tx) error {
		for i := 0; i < count; i++ {
			s := &models.Sprint{ProjectID: b.projectID, Name: fmt.Sprintf("Sprint %d", len(b.sprintIDs)+1)}
			if err := tx.CreateSprint(b.ctx, s); err != nil {
				return err
			}
			b.sprintIDs = append(b.sprintIDs, s.ID)
		}
		return nil
	})
	return b
}

// WithTickets adds perSprint tickets to every sprint in the To Do column.
func (b *TestDataBuilder) WithTickets(perSprint int) *TestDataBuilder {
	b.t.Helper()
	if len(b.sprintIDs) == 0 {
		b.WithSprints(1)
	}
	colID := b.columnIDs["To Do"]
	b.tx(func(tx storage.Tx) error {
		for sprintIdx, sprintID := range b.sprintIDs {
			for i := 0; i < perSprint; i++ {
				id := sprintID
				tk := &models.Ticket{
					ProjectID: b.projectID,
					SprintID:  &id,
					ColumnID:  colID,
					Title:     fmt.Sprintf("Ticket %d-%d", sprintIdx+1, i+1),
				}
				if err := tx.CreateTicket(b.ctx, tk); err != nil {
					return err
				}
				b.ticketIDs = append(b.ticketIDs, tk.ID)
			}
		}
		return nil
	})
	return b
}

func (b *TestDataBuilder) Build() (*Database, int64, []int64, []int64) {
	return b.db, b.projectID, b.sprintIDs, b.ticketIDs
}

func (b *TestDataBuilder) Column(name string) int64 {
	return b.columnIDs[name]
}

func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

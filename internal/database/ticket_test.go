package database

import (
	"context"
	"errors"
	"testing"

	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

func TestTicketRoundTrip(t *testing.T) {
	b := NewTestDataBuilder(t).WithProject("Board", "To Do", "Done")
	db, projectID, _, _ := b.Build()
	ctx := context.Background()
	pts := 5.0

	err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		tk := &models.Ticket{ProjectID: projectID, ColumnID: b.Column("To Do"), Title: "Login page", StoryPoints: &pts}
		if err := tx.CreateTicket(ctx, tk); err != nil {
			return err
		}
		got, err := tx.GetTicket(ctx, tk.ID)
		if err != nil {
			return err
		}
		if got.Title != "Login page" || got.Points() != 5 {
			t.Fatalf("unexpected ticket %+v", got)
		}
		if got.SprintID != nil || got.IsCarriedOver || got.CarriedOverCount != 0 {
			t.Fatalf("expected fresh backlog ticket, got %+v", got)
		}

		backlog, err := tx.BacklogTickets(ctx, projectID)
		if err != nil {
			return err
		}
		if len(backlog) != 1 || backlog[0].ID != tk.ID {
			t.Fatalf("expected ticket in backlog, got %+v", backlog)
		}

		if err := tx.SetTicketColumn(ctx, tk.ID, b.Column("Done")); err != nil {
			return err
		}
		got, err = tx.GetTicket(ctx, tk.ID)
		if err != nil {
			return err
		}
		if got.ColumnID != b.Column("Done") {
			t.Fatalf("expected Done column, got %d", got.ColumnID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestCarryOverTicketIncrementsCounter(t *testing.T) {
	db, _, sprintIDs, ticketIDs := NewTestDataBuilder(t).WithSprints(3).WithTickets(1).Build()
	ctx := context.Background()

	err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		if err := tx.CarryOverTicket(ctx, ticketIDs[0], sprintIDs[0], sprintIDs[1]); err != nil {
			return err
		}
		if err := tx.CarryOverTicket(ctx, ticketIDs[0], sprintIDs[1], sprintIDs[2]); err != nil {
			return err
		}
		tk, err := tx.GetTicket(ctx, ticketIDs[0])
		if err != nil {
			return err
		}
		if !tk.IsCarriedOver || tk.CarriedOverCount != 2 {
			t.Fatalf("expected carried over twice, got %+v", tk)
		}
		if tk.CarriedFromSprintID == nil || *tk.CarriedFromSprintID != sprintIDs[1] {
			t.Fatalf("expected carried from %d, got %v", sprintIDs[1], tk.CarriedFromSprintID)
		}
		if tk.SprintID == nil || *tk.SprintID != sprintIDs[2] {
			t.Fatalf("expected sprint %d, got %v", sprintIDs[2], tk.SprintID)
		}
		inSprint, err := tx.TicketsInSprint(ctx, sprintIDs[2])
		if err != nil {
			return err
		}
		if len(inSprint) != 2 {
			t.Fatalf("expected 2 tickets in last sprint, got %d", len(inSprint))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestAssignTicketMissing(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t, ctx)
	err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.AssignTicket(ctx, 42, nil)
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestColumnsOrderedByPosition(t *testing.T) {
	db, projectID, _, _ := NewTestDataBuilder(t).WithProject("Board", "To Do", "Doing", "Done").Build()
	ctx := context.Background()
	err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		cols, err := tx.Columns(ctx, projectID)
		if err != nil {
			return err
		}
		if len(cols) != 3 {
			t.Fatalf("expected 3 columns, got %d", len(cols))
		}
		for i, want := range []string{"To Do", "Doing", "Done"} {
			if cols[i].Name != want || cols[i].Position != i+1 {
				t.Fatalf("column %d: got %+v", i, cols[i])
			}
		}
		p, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		if p.Name != "Board" {
			t.Fatalf("expected project Board, got %q", p.Name)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

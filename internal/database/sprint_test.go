package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

func TestSprintCreateAndGet(t *testing.T) {
	db, projectID, _, _ := NewTestDataBuilder(t).WithProject("Board", "To Do", "Done").Build()
	ctx := context.Background()
	goal := "ship it"
	budget := 21.0

	var id int64
	err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		s := &models.Sprint{ProjectID: projectID, Name: "Sprint 1", Goal: &goal, Budget: &budget}
		if err := tx.CreateSprint(ctx, s); err != nil {
			return err
		}
		id = s.ID
		got, err := tx.GetSprint(ctx, id)
		if err != nil {
			return err
		}
		if got.Status != models.StatusPlanning {
			t.Fatalf("expected planning status, got %q", got.Status)
		}
		if got.Goal == nil || *got.Goal != goal {
			t.Fatalf("expected goal %q, got %v", goal, got.Goal)
		}
		if got.Budget == nil || *got.Budget != budget {
			t.Fatalf("expected budget %v, got %v", budget, got.Budget)
		}
		if got.StartDate != nil || got.EndDate != nil {
			t.Fatalf("expected no dates on a planning sprint")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestGetSprintNotFound(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t, ctx)
	err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		_, err := tx.GetSprint(ctx, 999)
		return err
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Resource != EntitySprint || opErr.ID != 999 {
		t.Fatalf("expected sprint OpError, got %v", err)
	}
}

func TestActivateSprintRejectsSecondActive(t *testing.T) {
	db, projectID, sprintIDs, _ := NewTestDataBuilder(t).WithSprints(2).Build()
	ctx := context.Background()
	start := nowUTC()

	if err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.ActivateSprint(ctx, sprintIDs[0], start, nil)
	}); err != nil {
		t.Fatalf("first activation failed: %v", err)
	}
	err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.ActivateSprint(ctx, sprintIDs[1], start, nil)
	})
	if !errors.Is(err, models.ErrActiveSprintExists) {
		t.Fatalf("expected ErrActiveSprintExists, got %v", err)
	}

	n, err := db.CountActiveSprints(ctx, projectID)
	if err != nil {
		t.Fatalf("CountActiveSprints failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 active sprint, got %d", n)
	}
}

func TestCompleteAndReopenSprintSnapshot(t *testing.T) {
	db, projectID, sprintIDs, _ := NewTestDataBuilder(t).WithSprints(1).Build()
	ctx := context.Background()
	start := nowUTC()
	end := start.Add(14 * 24 * time.Hour)

	err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		if err := tx.ActivateSprint(ctx, sprintIDs[0], start, &end); err != nil {
			return err
		}
		return tx.CompleteSprint(ctx, sprintIDs[0], models.CompletionSnapshot{
			CompletedAt:           start.Add(time.Hour),
			CompletedByID:         7,
			CompletedTicketCount:  3,
			IncompleteTicketCount: 2,
			CompletedStoryPoints:  8,
			IncompleteStoryPoints: 5,
		})
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	err = db.RunInTransaction(ctx, func(tx storage.Tx) error {
		s, err := tx.GetSprint(ctx, sprintIDs[0])
		if err != nil {
			return err
		}
		if s.Status != models.StatusCompleted {
			t.Fatalf("expected completed, got %q", s.Status)
		}
		snap, ok := s.Snapshot()
		if !ok {
			t.Fatalf("expected snapshot")
		}
		if snap.CompletedByID != 7 || snap.CompletedTicketCount != 3 || snap.IncompleteTicketCount != 2 {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
		if snap.CompletedStoryPoints != 8 || snap.IncompleteStoryPoints != 5 {
			t.Fatalf("unexpected snapshot points %+v", snap)
		}
		active, err := tx.ActiveSprint(ctx, projectID)
		if err != nil {
			return err
		}
		if active != nil {
			t.Fatalf("expected no active sprint after completion")
		}

		if err := tx.ReopenSprint(ctx, sprintIDs[0]); err != nil {
			return err
		}
		s, err = tx.GetSprint(ctx, sprintIDs[0])
		if err != nil {
			return err
		}
		if s.Status != models.StatusActive {
			t.Fatalf("expected active after reopen, got %q", s.Status)
		}
		if _, ok := s.Snapshot(); ok {
			t.Fatalf("expected snapshot to be cleared on reopen")
		}
		if s.EndDate == nil || !s.EndDate.Equal(end) {
			t.Fatalf("expected end date to survive reopen, got %v", s.EndDate)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
}

func TestSetSprintEndDate(t *testing.T) {
	db, _, sprintIDs, _ := NewTestDataBuilder(t).WithSprints(1).Build()
	ctx := context.Background()
	end := nowUTC().Add(48 * time.Hour)
	err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		if err := tx.SetSprintEndDate(ctx, sprintIDs[0], end); err != nil {
			return err
		}
		s, err := tx.GetSprint(ctx, sprintIDs[0])
		if err != nil {
			return err
		}
		if s.EndDate == nil || !s.EndDate.Equal(end) {
			t.Fatalf("expected end date %v, got %v", end, s.EndDate)
		}
		return tx.SetSprintEndDate(ctx, 12345, end)
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing sprint, got %v", err)
	}
}

func TestListSprintsOrdered(t *testing.T) {
	db, projectID, sprintIDs, _ := NewTestDataBuilder(t).WithSprints(3).Build()
	ctx := context.Background()
	err := db.RunInTransaction(ctx, func(tx storage.Tx) error {
		sprints, err := tx.ListSprints(ctx, projectID)
		if err != nil {
			return err
		}
		if len(sprints) != 3 {
			t.Fatalf("expected 3 sprints, got %d", len(sprints))
		}
		for i, s := range sprints {
			if s.ID != sprintIDs[i] {
				t.Fatalf("sprint %d: expected id %d, got %d", i, sprintIDs[i], s.ID)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestConcurrentActivationsLeaveOneActive(t *testing.T) {
	db, projectID, sprintIDs, _ := NewTestDataBuilder(t).WithSprints(10).Build()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, len(sprintIDs))
	for _, id := range sprintIDs {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			errs <- db.RunInTransaction(ctx, func(tx storage.Tx) error {
				active, err := tx.ActiveSprint(ctx, projectID)
				if err != nil {
					return err
				}
				if active != nil {
					return models.ErrActiveSprintExists
				}
				return tx.ActivateSprint(ctx, id, nowUTC(), nil)
			})
		}(id)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, models.ErrActiveSprintExists):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one activation, got %d", succeeded)
	}
	n, err := db.CountActiveSprints(ctx, projectID)
	if err != nil {
		t.Fatalf("CountActiveSprints failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 active sprint, got %d", n)
	}
}

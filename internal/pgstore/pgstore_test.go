package pgstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

// openTestStore connects to SPRINTLEDGER_PG_DSN. Each test gets a fresh
// project so runs against a shared database don't interfere.
func openTestStore(t *testing.T) *PgStore {
	t.Helper()
	dsn := os.Getenv("SPRINTLEDGER_PG_DSN")
	if dsn == "" {
		t.Skip("SPRINTLEDGER_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: codeSerializationFailure}))
	assert.True(t, isRetryable(&pgconn.PgError{Code: codeDeadlockDetected}))
	assert.False(t, isRetryable(&pgconn.PgError{Code: codeUniqueViolation}))
	assert.False(t, isRetryable(errors.New("boom")))
}

func TestUniqueViolationOn(t *testing.T) {
	err := &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "idx_sprints_one_active"}
	assert.True(t, uniqueViolationOn(err, "idx_sprints_one_active"))
	assert.False(t, uniqueViolationOn(err, "idx_history_one_open"))
	assert.False(t, uniqueViolationOn(errors.New("x"), "idx_sprints_one_active"))
}

func TestPgStoreSprintLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var projectID int64
	var first, second models.Sprint
	require.NoError(t, s.RunInTransaction(ctx, func(tx storage.Tx) error {
		var err error
		if projectID, err = tx.CreateProject(ctx, "pg-"+time.Now().Format(time.RFC3339Nano)); err != nil {
			return err
		}
		first = models.Sprint{ProjectID: projectID, Name: "Sprint 1"}
		if err := tx.CreateSprint(ctx, &first); err != nil {
			return err
		}
		second = models.Sprint{ProjectID: projectID, Name: "Sprint 2"}
		return tx.CreateSprint(ctx, &second)
	}))

	require.NoError(t, s.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.ActivateSprint(ctx, first.ID, time.Now().UTC(), nil)
	}))

	err := s.RunInTransaction(ctx, func(tx storage.Tx) error {
		return tx.ActivateSprint(ctx, second.ID, time.Now().UTC(), nil)
	})
	require.ErrorIs(t, err, models.ErrActiveSprintExists)

	require.NoError(t, s.RunInTransaction(ctx, func(tx storage.Tx) error {
		active, err := tx.ActiveSprint(ctx, projectID)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, first.ID, active.ID)
		return nil
	}))
}

func TestPgStoreHistoryOpenEntry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RunInTransaction(ctx, func(tx storage.Tx) error {
		projectID, err := tx.CreateProject(ctx, "pg-history")
		require.NoError(t, err)
		colID, err := tx.CreateColumn(ctx, projectID, "To Do")
		require.NoError(t, err)
		sp := models.Sprint{ProjectID: projectID, Name: "Sprint 1"}
		require.NoError(t, tx.CreateSprint(ctx, &sp))
		tk := models.Ticket{ProjectID: projectID, SprintID: &sp.ID, ColumnID: colID, Title: "t"}
		require.NoError(t, tx.CreateTicket(ctx, &tk))

		entry := models.HistoryEntry{TicketID: tk.ID, SprintID: sp.ID, EntryType: models.EntryAdded}
		require.NoError(t, tx.InsertHistoryEntry(ctx, &entry))
		dup := entry
		assert.ErrorIs(t, tx.InsertHistoryEntry(ctx, &dup), models.ErrOpenEntryExists)

		closed, err := tx.CloseHistoryEntry(ctx, tk.ID, sp.ID, models.ExitCompleted, time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, closed)

		history, err := tx.TicketHistory(ctx, tk.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, models.ExitCompleted, history[0].ExitStatus)
		return nil
	}))
}

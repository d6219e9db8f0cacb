package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akyairhashvil/sprintledger/internal/database"
	"github.com/akyairhashvil/sprintledger/internal/events"
	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *database.Database
	ctrl     *Controller
	notifier *recordingNotifier
	caller   Caller
	columns  map[string]int64
}

// newFixture opens a fresh database with one project whose board has the
// columns To Do, In Progress and Done.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{t: t, ctx: ctx, db: db, notifier: &recordingNotifier{}, columns: map[string]int64{}}
	f.caller = Caller{UserID: 42, ProjectID: f.project("Board", "To Do", "In Progress", "Done")}
	f.ctrl = New(db, append([]Option{WithNotifier(f.notifier)}, opts...)...)
	return f
}

func (f *fixture) tx(fn func(tx storage.Tx) error) {
	f.t.Helper()
	require.NoError(f.t, f.db.RunInTransaction(f.ctx, fn))
}

func (f *fixture) project(name string, columns ...string) int64 {
	f.t.Helper()
	var id int64
	f.tx(func(tx storage.Tx) error {
		var err error
		if id, err = tx.CreateProject(f.ctx, name); err != nil {
			return err
		}
		for _, col := range columns {
			colID, err := tx.CreateColumn(f.ctx, id, col)
			if err != nil {
				return err
			}
			f.columns[col] = colID
		}
		return nil
	})
	return id
}

func (f *fixture) sprint(name string) models.Sprint {
	f.t.Helper()
	s, err := f.ctrl.Create(f.ctx, f.caller, CreateRequest{Name: name})
	require.NoError(f.t, err)
	return s
}

func (f *fixture) activeSprint(name string) models.Sprint {
	f.t.Helper()
	s := f.sprint(name)
	s, err := f.ctrl.Start(f.ctx, f.caller, s.ID, nil, nil)
	require.NoError(f.t, err)
	return s
}

// ticket creates a ticket in sprintID (0 for backlog) and column.
func (f *fixture) ticket(sprintID int64, column string, points *float64) int64 {
	f.t.Helper()
	colID, ok := f.columns[column]
	require.True(f.t, ok, "unknown column %q", column)
	tk := &models.Ticket{ProjectID: f.caller.ProjectID, ColumnID: colID, Title: fmt.Sprintf("%s ticket", column), StoryPoints: points}
	if sprintID != 0 {
		tk.SprintID = &sprintID
	}
	f.tx(func(tx storage.Tx) error { return tx.CreateTicket(f.ctx, tk) })
	return tk.ID
}

func (f *fixture) getTicket(id int64) models.Ticket {
	f.t.Helper()
	var tk models.Ticket
	f.tx(func(tx storage.Tx) error {
		var err error
		tk, err = tx.GetTicket(f.ctx, id)
		return err
	})
	return tk
}

func (f *fixture) getSprint(id int64) models.Sprint {
	f.t.Helper()
	var s models.Sprint
	f.tx(func(tx storage.Tx) error {
		var err error
		s, err = tx.GetSprint(f.ctx, id)
		return err
	})
	return s
}

// entries returns the ledger rows for one (ticket, sprint) pair.
func (f *fixture) entries(ticketID, sprintID int64) []models.HistoryEntry {
	f.t.Helper()
	var out []models.HistoryEntry
	f.tx(func(tx storage.Tx) error {
		all, err := tx.TicketHistory(f.ctx, ticketID)
		for _, e := range all {
			if e.SprintID == sprintID {
				out = append(out, e)
			}
		}
		return err
	})
	return out
}

func pts(v float64) *float64 { return &v }

func id64(v int64) *int64 { return &v }

// faultyStore fails CompleteSprint inside an otherwise real transaction.
type faultyStore struct {
	storage.Store
	err error
}

func (s faultyStore) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.Store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return fn(faultyTx{Tx: tx, err: s.err})
	})
}

type faultyTx struct {
	storage.Tx
	err error
}

func (t faultyTx) CompleteSprint(context.Context, int64, models.CompletionSnapshot) error {
	return t.err
}

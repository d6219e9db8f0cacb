// Package pgstore is the PostgreSQL implementation of storage.Store.
// Transactions run at SERIALIZABLE isolation and are retried on
// serialization failures; partial unique indexes back the one-active-sprint
// and one-open-entry rules.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"

	retryMaxElapsed = 15 * time.Second
)

// PgStore is a PostgreSQL-backed sprint ledger.
type PgStore struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*PgStore)(nil)

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*PgStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PgStore{pool: pool}
	if err := s.EnsureTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPgStore wraps an existing pool. The caller owns the pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS columns (
		id         BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id),
		name       TEXT NOT NULL,
		position   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS sprints (
		id                      BIGSERIAL PRIMARY KEY,
		project_id              BIGINT NOT NULL REFERENCES projects(id),
		name                    TEXT NOT NULL,
		status                  TEXT NOT NULL DEFAULT 'planning' CHECK (status IN ('planning', 'active', 'completed')),
		goal                    TEXT,
		start_date              TIMESTAMPTZ,
		end_date                TIMESTAMPTZ,
		budget                  DOUBLE PRECISION,
		created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at            TIMESTAMPTZ,
		completed_by_id         BIGINT,
		completed_ticket_count  INTEGER,
		incomplete_ticket_count INTEGER,
		completed_story_points  DOUBLE PRECISION,
		incomplete_story_points DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id                     BIGSERIAL PRIMARY KEY,
		project_id             BIGINT NOT NULL REFERENCES projects(id),
		sprint_id              BIGINT REFERENCES sprints(id),
		column_id              BIGINT NOT NULL REFERENCES columns(id),
		title                  TEXT NOT NULL,
		story_points           DOUBLE PRECISION,
		is_carried_over        BOOLEAN NOT NULL DEFAULT FALSE,
		carried_from_sprint_id BIGINT REFERENCES sprints(id),
		carried_over_count     INTEGER NOT NULL DEFAULT 0,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_sprint_history (
		id                     BIGSERIAL PRIMARY KEY,
		ticket_id              BIGINT NOT NULL REFERENCES tickets(id),
		sprint_id              BIGINT NOT NULL REFERENCES sprints(id),
		entry_type             TEXT NOT NULL CHECK (entry_type IN ('added', 'carried_over')),
		carried_from_sprint_id BIGINT REFERENCES sprints(id),
		added_at               TIMESTAMPTZ NOT NULL,
		removed_at             TIMESTAMPTZ,
		exit_status            TEXT CHECK (exit_status IS NULL OR exit_status IN ('completed', 'carried_over', 'removed'))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sprints_one_active ON sprints(project_id) WHERE status = 'active'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_history_one_open ON ticket_sprint_history(ticket_id, sprint_id) WHERE exit_status IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_sprint ON tickets(sprint_id)`,
	`CREATE INDEX IF NOT EXISTS idx_history_sprint ON ticket_sprint_history(sprint_id)`,
}

// EnsureTables creates the schema if it doesn't exist.
func (s *PgStore) EnsureTables(ctx context.Context) error {
	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// RunInTransaction implements storage.Store.
func (s *PgStore) RunInTransaction(ctx context.Context, fn func(tx storage.Tx) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxElapsedTime = retryMaxElapsed
	return backoff.Retry(func() error {
		err := s.runTx(ctx, fn)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

func (s *PgStore) runTx(ctx context.Context, fn func(tx storage.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				slog.Warn("rollback failed", "err", rbErr, "cause", err)
			}
		}
	}()
	if err = fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

func uniqueViolationOn(err error, index string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == index
}

// pgTx implements storage.Tx on one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

var _ storage.Tx = (*pgTx)(nil)

const sprintColumns = `id, project_id, name, status, goal, start_date, end_date, budget, created_at,
	completed_at, completed_by_id, completed_ticket_count, incomplete_ticket_count, completed_story_points, incomplete_story_points`

func scanSprint(row pgx.Row) (models.Sprint, error) {
	var sp models.Sprint
	var status string
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &status, &sp.Goal, &sp.StartDate, &sp.EndDate, &sp.Budget, &sp.CreatedAt,
		&sp.CompletedAt, &sp.CompletedByID, &sp.CompletedTicketCount, &sp.IncompleteTicketCount, &sp.CompletedStoryPoints, &sp.IncompleteStoryPoints)
	sp.Status = models.SprintStatus(status)
	return sp, err
}

func notFound(what string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("get %s %d: %w", what, id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s %d: %w", what, id, err)
	}
	return nil
}

func (t *pgTx) GetSprint(ctx context.Context, id int64) (models.Sprint, error) {
	sp, err := scanSprint(t.tx.QueryRow(ctx, "SELECT "+sprintColumns+" FROM sprints WHERE id = $1", id))
	if err != nil {
		return models.Sprint{}, notFound("sprint", id, err)
	}
	return sp, nil
}

func (t *pgTx) ActiveSprint(ctx context.Context, projectID int64) (*models.Sprint, error) {
	sp, err := scanSprint(t.tx.QueryRow(ctx,
		"SELECT "+sprintColumns+" FROM sprints WHERE project_id = $1 AND status = 'active' ORDER BY id LIMIT 1", projectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active sprint: %w", err)
	}
	return &sp, nil
}

func (t *pgTx) ListSprints(ctx context.Context, projectID int64) ([]models.Sprint, error) {
	rows, err := t.tx.Query(ctx, "SELECT "+sprintColumns+" FROM sprints WHERE project_id = $1 ORDER BY id", projectID)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()
	var out []models.Sprint
	for rows.Next() {
		sp, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("list sprints: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (t *pgTx) CreateSprint(ctx context.Context, sp *models.Sprint) error {
	if sp.Status == "" {
		sp.Status = models.StatusPlanning
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sprints (project_id, name, status, goal, start_date, end_date, budget, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		sp.ProjectID, sp.Name, string(sp.Status), sp.Goal, sp.StartDate, sp.EndDate, sp.Budget, sp.CreatedAt).Scan(&sp.ID)
	if uniqueViolationOn(err, "idx_sprints_one_active") {
		return fmt.Errorf("create sprint: %w", models.ErrActiveSprintExists)
	}
	if err != nil {
		return fmt.Errorf("create sprint: %w", err)
	}
	return nil
}

func (t *pgTx) ActivateSprint(ctx context.Context, id int64, start time.Time, end *time.Time) error {
	return t.updateSprint(ctx, "start", id,
		"UPDATE sprints SET status = 'active', start_date = $1, end_date = $2 WHERE id = $3", start, end, id)
}

func (t *pgTx) CompleteSprint(ctx context.Context, id int64, snap models.CompletionSnapshot) error {
	var by *int64
	if snap.CompletedByID > 0 {
		by = &snap.CompletedByID
	}
	return t.updateSprint(ctx, "complete", id, `
		UPDATE sprints
		SET status = 'completed', completed_at = $1, completed_by_id = $2,
		    completed_ticket_count = $3, incomplete_ticket_count = $4,
		    completed_story_points = $5, incomplete_story_points = $6
		WHERE id = $7`,
		snap.CompletedAt, by, snap.CompletedTicketCount, snap.IncompleteTicketCount,
		snap.CompletedStoryPoints, snap.IncompleteStoryPoints, id)
}

func (t *pgTx) ReopenSprint(ctx context.Context, id int64) error {
	return t.updateSprint(ctx, "reopen", id, `
		UPDATE sprints
		SET status = 'active', completed_at = NULL, completed_by_id = NULL,
		    completed_ticket_count = NULL, incomplete_ticket_count = NULL,
		    completed_story_points = NULL, incomplete_story_points = NULL
		WHERE id = $1`, id)
}

func (t *pgTx) SetSprintEndDate(ctx context.Context, id int64, end time.Time) error {
	return t.updateSprint(ctx, "extend", id, "UPDATE sprints SET end_date = $1 WHERE id = $2", end, id)
}

func (t *pgTx) updateSprint(ctx context.Context, op string, id int64, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if uniqueViolationOn(err, "idx_sprints_one_active") {
		return fmt.Errorf("%s sprint %d: %w", op, id, models.ErrActiveSprintExists)
	}
	if err != nil {
		return fmt.Errorf("%s sprint %d: %w", op, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s sprint %d: %w", op, id, models.ErrNotFound)
	}
	return nil
}

const ticketColumns = `id, project_id, sprint_id, column_id, title, story_points, is_carried_over, carried_from_sprint_id, carried_over_count, created_at`

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var tk models.Ticket
	err := row.Scan(&tk.ID, &tk.ProjectID, &tk.SprintID, &tk.ColumnID, &tk.Title, &tk.StoryPoints,
		&tk.IsCarriedOver, &tk.CarriedFromSprintID, &tk.CarriedOverCount, &tk.CreatedAt)
	return tk, err
}

func (t *pgTx) queryTickets(ctx context.Context, where string, arg int64) ([]models.Ticket, error) {
	rows, err := t.tx.Query(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE "+where+" ORDER BY id", arg)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()
	var out []models.Ticket
	for rows.Next() {
		tk, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("list tickets: %w", err)
		}
		out = append(out, tk)
	}
	return out, rows.Err()
}

func (t *pgTx) GetTicket(ctx context.Context, id int64) (models.Ticket, error) {
	tk, err := scanTicket(t.tx.QueryRow(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = $1", id))
	if err != nil {
		return models.Ticket{}, notFound("ticket", id, err)
	}
	return tk, nil
}

func (t *pgTx) TicketsInSprint(ctx context.Context, sprintID int64) ([]models.Ticket, error) {
	return t.queryTickets(ctx, "sprint_id = $1", sprintID)
}

func (t *pgTx) BacklogTickets(ctx context.Context, projectID int64) ([]models.Ticket, error) {
	return t.queryTickets(ctx, "project_id = $1 AND sprint_id IS NULL", projectID)
}

func (t *pgTx) AssignTicket(ctx context.Context, ticketID int64, sprintID *int64) error {
	return t.updateTicket(ctx, "assign", ticketID, "UPDATE tickets SET sprint_id = $1 WHERE id = $2", sprintID, ticketID)
}

func (t *pgTx) CarryOverTicket(ctx context.Context, ticketID, fromSprintID, toSprintID int64) error {
	return t.updateTicket(ctx, "carry over", ticketID, `
		UPDATE tickets
		SET sprint_id = $1, is_carried_over = TRUE, carried_from_sprint_id = $2,
		    carried_over_count = carried_over_count + 1
		WHERE id = $3`, toSprintID, fromSprintID, ticketID)
}

func (t *pgTx) SetTicketColumn(ctx context.Context, ticketID, columnID int64) error {
	return t.updateTicket(ctx, "set column", ticketID, "UPDATE tickets SET column_id = $1 WHERE id = $2", columnID, ticketID)
}

func (t *pgTx) updateTicket(ctx context.Context, op string, id int64, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s ticket %d: %w", op, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s ticket %d: %w", op, id, models.ErrNotFound)
	}
	return nil
}

func (t *pgTx) CreateTicket(ctx context.Context, tk *models.Ticket) error {
	if tk.CreatedAt.IsZero() {
		tk.CreatedAt = time.Now().UTC()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO tickets (project_id, sprint_id, column_id, title, story_points, is_carried_over, carried_from_sprint_id, carried_over_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		tk.ProjectID, tk.SprintID, tk.ColumnID, tk.Title, tk.StoryPoints, tk.IsCarriedOver,
		tk.CarriedFromSprintID, tk.CarriedOverCount, tk.CreatedAt).Scan(&tk.ID)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

const historyColumns = `id, ticket_id, sprint_id, entry_type, carried_from_sprint_id, added_at, removed_at, exit_status`

func scanEntry(row pgx.Row) (models.HistoryEntry, error) {
	var e models.HistoryEntry
	var typ string
	var exit *string
	if err := row.Scan(&e.ID, &e.TicketID, &e.SprintID, &typ, &e.CarriedFromSprintID, &e.AddedAt, &e.RemovedAt, &exit); err != nil {
		return models.HistoryEntry{}, err
	}
	e.EntryType = models.EntryType(typ)
	if exit != nil {
		e.ExitStatus = models.ExitStatus(*exit)
	}
	return e, nil
}

func (t *pgTx) HasHistoryEntry(ctx context.Context, ticketID, sprintID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM ticket_sprint_history WHERE ticket_id = $1 AND sprint_id = $2)",
		ticketID, sprintID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup history: %w", err)
	}
	return exists, nil
}

// InsertHistoryEntry skips the insert instead of raising a unique violation,
// so the surrounding transaction stays usable.
func (t *pgTx) InsertHistoryEntry(ctx context.Context, e *models.HistoryEntry) error {
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now().UTC()
	}
	var exit *string
	if e.ExitStatus != models.ExitOpen {
		s := string(e.ExitStatus)
		exit = &s
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO ticket_sprint_history (ticket_id, sprint_id, entry_type, carried_from_sprint_id, added_at, removed_at, exit_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticket_id, sprint_id) WHERE exit_status IS NULL DO NOTHING
		RETURNING id`,
		e.TicketID, e.SprintID, string(e.EntryType), e.CarriedFromSprintID, e.AddedAt, e.RemovedAt, exit).Scan(&e.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("insert history for ticket %d: %w", e.TicketID, models.ErrOpenEntryExists)
	}
	if err != nil {
		return fmt.Errorf("insert history for ticket %d: %w", e.TicketID, err)
	}
	return nil
}

func (t *pgTx) CloseHistoryEntry(ctx context.Context, ticketID, sprintID int64, exit models.ExitStatus, at time.Time) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE ticket_sprint_history
		SET exit_status = $1, removed_at = $2
		WHERE ticket_id = $3 AND sprint_id = $4 AND exit_status IS NULL`,
		string(exit), at, ticketID, sprintID)
	if err != nil {
		return false, fmt.Errorf("close history for ticket %d: %w", ticketID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) queryHistory(ctx context.Context, where string, arg int64) ([]models.HistoryEntry, error) {
	rows, err := t.tx.Query(ctx, "SELECT "+historyColumns+" FROM ticket_sprint_history WHERE "+where+" ORDER BY added_at, id", arg)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	var out []models.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) TicketHistory(ctx context.Context, ticketID int64) ([]models.HistoryEntry, error) {
	return t.queryHistory(ctx, "ticket_id = $1", ticketID)
}

func (t *pgTx) SprintHistory(ctx context.Context, sprintID int64) ([]models.HistoryEntry, error) {
	return t.queryHistory(ctx, "sprint_id = $1", sprintID)
}

func (t *pgTx) GetProject(ctx context.Context, id int64) (models.Project, error) {
	var p models.Project
	err := t.tx.QueryRow(ctx, "SELECT id, name, created_at FROM projects WHERE id = $1", id).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		return models.Project{}, notFound("project", id, err)
	}
	return p, nil
}

func (t *pgTx) CreateProject(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, "INSERT INTO projects (name) VALUES ($1) RETURNING id", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("create project: %w", err)
	}
	return id, nil
}

func (t *pgTx) Columns(ctx context.Context, projectID int64) ([]models.Column, error) {
	rows, err := t.tx.Query(ctx, "SELECT id, project_id, name, position FROM columns WHERE project_id = $1 ORDER BY position, id", projectID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()
	var out []models.Column
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Position); err != nil {
			return nil, fmt.Errorf("list columns: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) CreateColumn(ctx context.Context, projectID int64, name string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO columns (project_id, name, position)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM columns WHERE project_id = $1))
		RETURNING id`, projectID, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create column: %w", err)
	}
	return id, nil
}

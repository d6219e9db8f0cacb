// Package lifecycle implements the sprint state machine (planning, active,
// completed, with reopen) and the disposition of tickets when a sprint
// closes. Every operation validates before it writes and commits its writes
// as one transaction; events go out only after the commit.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/akyairhashvil/sprintledger/internal/events"
	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
	"github.com/akyairhashvil/sprintledger/internal/telemetry"
)

const scopeName = "github.com/akyairhashvil/sprintledger/lifecycle"

// Caller identifies who runs an operation and in which project.
type Caller struct {
	UserID    int64
	ProjectID int64
}

// Controller exposes the sprint lifecycle operations.
type Controller struct {
	store             storage.Store
	authz             Authorizer
	notifier          Notifier
	isDone            DonePredicate
	extendDays        int
	opTimeout         time.Duration
	completionTimeout time.Duration
	now               func() time.Time
	logger            *slog.Logger

	tracer      trace.Tracer
	transitions metric.Int64Counter
	disposed    metric.Int64Counter
}

// New builds a Controller over store.
func New(store storage.Store, opts ...Option) *Controller {
	c := defaults()
	c.store = store
	for _, opt := range opts {
		opt(c)
	}
	m := telemetry.Meter(scopeName)
	c.transitions, _ = m.Int64Counter("sprintledger.sprint.transitions",
		metric.WithDescription("Successful sprint lifecycle operations"),
	)
	c.disposed, _ = m.Int64Counter("sprintledger.tickets.disposed",
		metric.WithDescription("Tickets routed at sprint completion"),
	)
	c.tracer = telemetry.Tracer(scopeName)
	return c
}

// CreateRequest describes a new planning sprint. An empty Name is generated.
type CreateRequest struct {
	Name      string
	Goal      *string
	StartDate *time.Time
	EndDate   *time.Time
	Budget    *float64
}

// Create adds a sprint in planning status.
func (c *Controller) Create(ctx context.Context, caller Caller, req CreateRequest) (models.Sprint, error) {
	var sprint models.Sprint
	err := c.execute(ctx, "create", caller, 0, c.opTimeout, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetProject(ctx, caller.ProjectID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("project %d: %w", caller.ProjectID, models.ErrNotFound)
			}
			return err
		}
		name := req.Name
		if name == "" {
			existing, err := sprintNames(ctx, tx, caller.ProjectID)
			if err != nil {
				return err
			}
			name = NextSprintName("", existing)
		}
		sprint = models.Sprint{
			ProjectID: caller.ProjectID,
			Name:      name,
			Status:    models.StatusPlanning,
			Goal:      req.Goal,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Budget:    req.Budget,
			CreatedAt: c.now(),
		}
		return tx.CreateSprint(ctx, &sprint)
	})
	if err != nil {
		return models.Sprint{}, err
	}
	c.emit(ctx, events.SprintCreated, caller, sprint.ID)
	return sprint, nil
}

// Start moves a planning sprint to active and seeds the ledger with every
// ticket already assigned to it.
func (c *Controller) Start(ctx context.Context, caller Caller, sprintID int64, startDate, endDate *time.Time) (models.Sprint, error) {
	var sprint models.Sprint
	err := c.execute(ctx, "start", caller, sprintID, c.opTimeout, func(ctx context.Context, tx storage.Tx) error {
		s, err := loadSprint(ctx, tx, caller, sprintID)
		if err != nil {
			return err
		}
		if s.Status != models.StatusPlanning {
			return &TransitionError{Op: "start", SprintID: s.ID, Status: s.Status}
		}
		if err := ensureNoActive(ctx, tx, s); err != nil {
			return err
		}

		now := c.now()
		start := now
		switch {
		case startDate != nil:
			start = *startDate
		case s.StartDate != nil:
			start = *s.StartDate
		}
		end := s.EndDate
		if endDate != nil {
			end = endDate
		}
		if err := tx.ActivateSprint(ctx, s.ID, start, end); err != nil {
			return err
		}
		if _, err := seedSprintHistory(ctx, tx, s.ID, now); err != nil {
			return err
		}
		sprint, err = tx.GetSprint(ctx, s.ID)
		return err
	})
	if err != nil {
		return models.Sprint{}, err
	}
	c.emit(ctx, events.SprintStarted, caller, sprint.ID)
	return sprint, nil
}

// Reopen moves a completed sprint back to active and clears its snapshot.
func (c *Controller) Reopen(ctx context.Context, caller Caller, sprintID int64) (models.Sprint, error) {
	var sprint models.Sprint
	err := c.execute(ctx, "reopen", caller, sprintID, c.opTimeout, func(ctx context.Context, tx storage.Tx) error {
		s, err := loadSprint(ctx, tx, caller, sprintID)
		if err != nil {
			return err
		}
		if s.Status != models.StatusCompleted {
			return &TransitionError{Op: "reopen", SprintID: s.ID, Status: s.Status}
		}
		if err := ensureNoActive(ctx, tx, s); err != nil {
			return err
		}
		if err := tx.ReopenSprint(ctx, s.ID); err != nil {
			return err
		}
		sprint, err = tx.GetSprint(ctx, s.ID)
		return err
	})
	if err != nil {
		return models.Sprint{}, err
	}
	c.emit(ctx, events.SprintReopened, caller, sprint.ID)
	return sprint, nil
}

// Extend pushes out the end date of an active sprint. newEndDate wins over
// days; with neither, the configured default number of days is used.
func (c *Controller) Extend(ctx context.Context, caller Caller, sprintID int64, days *int, newEndDate *time.Time) (models.Sprint, error) {
	var sprint models.Sprint
	err := c.execute(ctx, "extend", caller, sprintID, c.opTimeout, func(ctx context.Context, tx storage.Tx) error {
		s, err := loadSprint(ctx, tx, caller, sprintID)
		if err != nil {
			return err
		}
		if s.Status != models.StatusActive {
			return &TransitionError{Op: "extend", SprintID: s.ID, Status: s.Status}
		}

		now := c.now()
		var end time.Time
		if newEndDate != nil {
			end = *newEndDate
		} else {
			n := c.extendDays
			if days != nil {
				n = *days
			}
			base := now
			if s.EndDate != nil {
				base = *s.EndDate
			}
			end = base.AddDate(0, 0, n)
		}
		if !end.After(now) {
			return &EndDateError{SprintID: s.ID, EndDate: end}
		}
		if err := tx.SetSprintEndDate(ctx, s.ID, end); err != nil {
			return err
		}
		sprint, err = tx.GetSprint(ctx, s.ID)
		return err
	})
	if err != nil {
		return models.Sprint{}, err
	}
	c.emit(ctx, events.SprintUpdated, caller, sprint.ID)
	return sprint, nil
}

// Sprint returns one sprint of the caller's project.
func (c *Controller) Sprint(ctx context.Context, caller Caller, sprintID int64) (models.Sprint, error) {
	var sprint models.Sprint
	err := c.execute(ctx, "get", caller, sprintID, c.opTimeout, func(ctx context.Context, tx storage.Tx) error {
		var err error
		sprint, err = loadSprint(ctx, tx, caller, sprintID)
		return err
	})
	return sprint, err
}

// Sprints lists the caller's project sprints in creation order.
func (c *Controller) Sprints(ctx context.Context, caller Caller) ([]models.Sprint, error) {
	var sprints []models.Sprint
	err := c.execute(ctx, "list", caller, 0, c.opTimeout, func(ctx context.Context, tx storage.Tx) error {
		var err error
		sprints, err = tx.ListSprints(ctx, caller.ProjectID)
		return err
	})
	return sprints, err
}

// execute authorizes the caller and runs fn in one transaction under a span.
func (c *Controller) execute(ctx context.Context, op string, caller Caller, sprintID int64, timeout time.Duration, fn func(ctx context.Context, tx storage.Tx) error) (err error) {
	ctx, span := c.tracer.Start(ctx, "lifecycle."+op, trace.WithAttributes(
		attribute.Int64("sprintledger.project_id", caller.ProjectID),
		attribute.Int64("sprintledger.sprint_id", sprintID),
		attribute.Int64("sprintledger.user_id", caller.UserID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := c.logger.With("op", op, "project_id", caller.ProjectID, "sprint_id", sprintID, "user_id", caller.UserID)
	defer func() {
		switch {
		case err == nil:
			log.Info("sprint operation")
		case IsBusinessError(err):
			log.Warn("sprint operation rejected", "err", err)
		default:
			log.Error("sprint operation failed", "err", err)
		}
	}()

	if err := c.authorize(ctx, caller); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err = c.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		return fn(ctx, tx)
	})
	if err != nil && errors.Is(err, models.ErrActiveSprintExists) && !errors.Is(err, ErrConflictingActiveSprint) {
		// Lost a race to the storage guard; report who won.
		err = c.describeConflict(ctx, caller.ProjectID, sprintID)
	}
	if err == nil {
		c.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
	return err
}

func (c *Controller) authorize(ctx context.Context, caller Caller) error {
	if c.authz == nil {
		return nil
	}
	ok, err := c.authz.HasCapability(ctx, caller.UserID, caller.ProjectID, CapManageSprints)
	if err != nil {
		return fmt.Errorf("check capability: %w", err)
	}
	if !ok {
		return fmt.Errorf("user %d in project %d: %w", caller.UserID, caller.ProjectID, ErrForbidden)
	}
	return nil
}

func (c *Controller) describeConflict(ctx context.Context, projectID, sprintID int64) error {
	conflict := &ConflictError{SprintID: sprintID}
	_ = c.store.RunInTransaction(ctx, func(tx storage.Tx) error {
		active, err := tx.ActiveSprint(ctx, projectID)
		if err == nil && active != nil {
			conflict.ActiveID = active.ID
			conflict.ActiveName = active.Name
		}
		return err
	})
	return conflict
}

func (c *Controller) emit(ctx context.Context, typ string, caller Caller, sprintID int64) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, events.Event{
		Type:      typ,
		ProjectID: caller.ProjectID,
		SprintID:  sprintID,
		UserID:    caller.UserID,
		Timestamp: c.now(),
	})
}

// loadSprint reads a sprint and hides sprints of other projects.
func loadSprint(ctx context.Context, tx storage.SprintTx, caller Caller, id int64) (models.Sprint, error) {
	s, err := tx.GetSprint(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return models.Sprint{}, fmt.Errorf("sprint %d: %w", id, ErrSprintNotFound)
	}
	if err != nil {
		return models.Sprint{}, err
	}
	if s.ProjectID != caller.ProjectID {
		return models.Sprint{}, fmt.Errorf("sprint %d: %w", id, ErrSprintNotFound)
	}
	return s, nil
}

func ensureNoActive(ctx context.Context, tx storage.SprintTx, s models.Sprint) error {
	active, err := tx.ActiveSprint(ctx, s.ProjectID)
	if err != nil {
		return err
	}
	if active != nil && active.ID != s.ID {
		return &ConflictError{SprintID: s.ID, ActiveID: active.ID, ActiveName: active.Name}
	}
	return nil
}

func sprintNames(ctx context.Context, tx storage.SprintTx, projectID int64) ([]string, error) {
	sprints, err := tx.ListSprints(ctx, projectID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(sprints))
	for _, s := range sprints {
		names = append(names, s.Name)
	}
	return names, nil
}

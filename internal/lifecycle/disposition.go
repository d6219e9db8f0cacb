package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/akyairhashvil/sprintledger/internal/events"
	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/storage"
)

// Action selects where incomplete tickets go when a sprint completes.
type Action string

const (
	CloseToNext    Action = "close_to_next"
	CloseToBacklog Action = "close_to_backlog"
	CloseKeep      Action = "close_keep"
)

// ParseAction validates a user-supplied action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case CloseToNext, CloseToBacklog, CloseKeep:
		return a, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidAction)
}

// CompleteRequest describes one completion.
type CompleteRequest struct {
	SprintID         int64
	Action           Action
	TargetSprintID   *int64
	CreateNextSprint bool
	// DoneColumnIDs overrides the done-column predicate when non-empty.
	DoneColumnIDs []int64
}

// Disposition lists where each ticket of the completed sprint went. The
// lists are disjoint; tickets kept by CloseKeep appear in none of them.
type Disposition struct {
	Completed      []int64 `json:"completed"`
	MovedToBacklog []int64 `json:"moved_to_backlog"`
	CarriedOver    []int64 `json:"carried_over"`
}

// CompletionResult is returned by Complete.
type CompletionResult struct {
	Sprint      models.Sprint  `json:"sprint"`
	Disposition Disposition    `json:"disposition"`
	NextSprint  *models.Sprint `json:"next_sprint,omitempty"`
	// NextSprintCreated is set when NextSprint was created by this call.
	NextSprintCreated bool `json:"next_sprint_created"`
}

type targetKind int

const (
	noTarget targetKind = iota
	newTarget
	existingTarget
)

// carryTarget is resolved before any write so the apply phase never has to
// decide between creating and reusing a sprint.
type carryTarget struct {
	kind   targetKind
	sprint models.Sprint
}

type completionPlan struct {
	source models.Sprint
	action Action
	class  Classification
	target carryTarget
}

// Complete closes an active sprint and routes its tickets.
func (c *Controller) Complete(ctx context.Context, caller Caller, req CompleteRequest) (*CompletionResult, error) {
	if _, err := ParseAction(string(req.Action)); err != nil {
		return nil, err
	}
	var result *CompletionResult
	err := c.execute(ctx, "complete", caller, req.SprintID, c.completionTimeout, func(ctx context.Context, tx storage.Tx) error {
		plan, err := c.planCompletion(ctx, tx, caller, req)
		if err != nil {
			return err
		}
		result, err = c.applyCompletion(ctx, tx, caller, plan)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.recordDisposition(ctx, result.Disposition)
	c.emit(ctx, events.SprintCompleted, caller, result.Sprint.ID)
	if result.NextSprintCreated {
		c.emit(ctx, events.SprintCreated, caller, result.NextSprint.ID)
	}
	return result, nil
}

// Preview classifies an active sprint's tickets without changing anything.
func (c *Controller) Preview(ctx context.Context, caller Caller, sprintID int64, doneColumnIDs []int64) (Classification, error) {
	var class Classification
	err := c.execute(ctx, "preview", caller, sprintID, c.opTimeout, func(ctx context.Context, tx storage.Tx) error {
		s, err := loadSprint(ctx, tx, caller, sprintID)
		if err != nil {
			return err
		}
		if s.Status != models.StatusActive {
			return &TransitionError{Op: "preview", SprintID: s.ID, Status: s.Status}
		}
		class, err = c.classify(ctx, tx, s, doneColumnIDs)
		return err
	})
	return class, err
}

func (c *Controller) classify(ctx context.Context, tx storage.Tx, s models.Sprint, doneColumnIDs []int64) (Classification, error) {
	tickets, err := tx.TicketsInSprint(ctx, s.ID)
	if err != nil {
		return Classification{}, err
	}
	cols, err := tx.Columns(ctx, s.ProjectID)
	if err != nil {
		return Classification{}, err
	}
	return Classify(tickets, DoneColumns(cols, doneColumnIDs, c.isDone)), nil
}

// planCompletion performs every read and check. It never writes.
func (c *Controller) planCompletion(ctx context.Context, tx storage.Tx, caller Caller, req CompleteRequest) (completionPlan, error) {
	source, err := loadSprint(ctx, tx, caller, req.SprintID)
	if err != nil {
		return completionPlan{}, err
	}
	if source.Status != models.StatusActive {
		return completionPlan{}, &TransitionError{Op: "complete", SprintID: source.ID, Status: source.Status}
	}

	class, err := c.classify(ctx, tx, source, req.DoneColumnIDs)
	if err != nil {
		return completionPlan{}, err
	}
	plan := completionPlan{source: source, action: req.Action, class: class}

	if req.Action != CloseToNext || len(class.Incomplete) == 0 {
		return plan, nil
	}
	if req.CreateNextSprint || req.TargetSprintID == nil {
		plan.target = carryTarget{kind: newTarget}
		return plan, nil
	}

	targetID := *req.TargetSprintID
	target, err := tx.GetSprint(ctx, targetID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return completionPlan{}, &TargetError{TargetID: targetID, Reason: "not found"}
	case err != nil:
		return completionPlan{}, err
	case target.ProjectID != source.ProjectID:
		return completionPlan{}, &TargetError{TargetID: targetID, Reason: "belongs to another project"}
	case target.Status != models.StatusPlanning:
		return completionPlan{}, &TargetError{TargetID: targetID, Reason: fmt.Sprintf("status is %s", target.Status)}
	}
	plan.target = carryTarget{kind: existingTarget, sprint: target}
	return plan, nil
}

// applyCompletion writes the plan. Any error aborts the whole transaction.
func (c *Controller) applyCompletion(ctx context.Context, tx storage.Tx, caller Caller, plan completionPlan) (*CompletionResult, error) {
	now := c.now()
	result := &CompletionResult{
		Disposition: Disposition{
			Completed:      make([]int64, 0, len(plan.class.Completed)),
			MovedToBacklog: []int64{},
			CarriedOver:    []int64{},
		},
	}

	var target *models.Sprint
	switch plan.target.kind {
	case newTarget:
		names, err := sprintNames(ctx, tx, plan.source.ProjectID)
		if err != nil {
			return nil, err
		}
		next := models.Sprint{
			ProjectID: plan.source.ProjectID,
			Name:      NextSprintName(plan.source.Name, names),
			Status:    models.StatusPlanning,
			CreatedAt: now,
		}
		if err := tx.CreateSprint(ctx, &next); err != nil {
			return nil, err
		}
		target = &next
		result.NextSprintCreated = true
	case existingTarget:
		t := plan.target.sprint
		target = &t
	}

	sourceID := plan.source.ID
	for _, tk := range plan.class.Incomplete {
		switch plan.action {
		case CloseToNext:
			if err := tx.CarryOverTicket(ctx, tk.ID, sourceID, target.ID); err != nil {
				return nil, err
			}
			if err := closeEntry(ctx, tx, tk.ID, sourceID, models.ExitCarriedOver, now); err != nil {
				return nil, err
			}
			from := sourceID
			if _, err := openEntry(ctx, tx, tk.ID, target.ID, models.EntryCarriedOver, &from, now); err != nil {
				return nil, err
			}
			result.Disposition.CarriedOver = append(result.Disposition.CarriedOver, tk.ID)
		case CloseToBacklog:
			if err := tx.AssignTicket(ctx, tk.ID, nil); err != nil {
				return nil, err
			}
			if err := closeEntry(ctx, tx, tk.ID, sourceID, models.ExitRemoved, now); err != nil {
				return nil, err
			}
			result.Disposition.MovedToBacklog = append(result.Disposition.MovedToBacklog, tk.ID)
		case CloseKeep:
			// Kept tickets stay assigned and their ledger entries stay open.
		}
	}

	for _, tk := range plan.class.Completed {
		if err := closeEntry(ctx, tx, tk.ID, sourceID, models.ExitCompleted, now); err != nil {
			return nil, err
		}
		result.Disposition.Completed = append(result.Disposition.Completed, tk.ID)
	}

	snap := plan.class.Snapshot()
	snap.CompletedAt = now
	snap.CompletedByID = caller.UserID
	if err := tx.CompleteSprint(ctx, sourceID, snap); err != nil {
		return nil, err
	}

	var err error
	if result.Sprint, err = tx.GetSprint(ctx, sourceID); err != nil {
		return nil, err
	}
	if target != nil {
		next, err := tx.GetSprint(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		result.NextSprint = &next
	}
	return result, nil
}

func (c *Controller) recordDisposition(ctx context.Context, d Disposition) {
	for kind, n := range map[string]int{
		"completed":        len(d.Completed),
		"moved_to_backlog": len(d.MovedToBacklog),
		"carried_over":     len(d.CarriedOver),
	} {
		if n > 0 {
			c.disposed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
		}
	}
}

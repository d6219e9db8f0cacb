package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

// Business-rule errors. None of them are transient; callers should surface
// them instead of retrying.
var (
	ErrInvalidTransition       = errors.New("invalid sprint transition")
	ErrConflictingActiveSprint = errors.New("another sprint is already active")
	ErrInvalidTarget           = errors.New("invalid target sprint")
	ErrInvalidEndDate          = errors.New("end date must be in the future")
	ErrInvalidAction           = errors.New("unknown completion action")
	ErrSprintNotFound          = errors.New("sprint not found")
	ErrTicketNotFound          = errors.New("ticket not found")
	ErrForbidden               = errors.New("missing capability")
)

// TransitionError reports an operation attempted from the wrong status.
type TransitionError struct {
	Op       string
	SprintID int64
	Status   models.SprintStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s sprint %d: status is %s", e.Op, e.SprintID, e.Status)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ConflictError names the sprint that blocks activation.
type ConflictError struct {
	SprintID   int64
	ActiveID   int64
	ActiveName string
}

func (e *ConflictError) Error() string {
	if e.ActiveName == "" {
		return fmt.Sprintf("sprint %d: %v", e.SprintID, ErrConflictingActiveSprint)
	}
	return fmt.Sprintf("sprint %d: %v: complete %q first", e.SprintID, ErrConflictingActiveSprint, e.ActiveName)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflictingActiveSprint }

// TargetError reports a carry-over or move target that cannot receive tickets.
type TargetError struct {
	TargetID int64
	Reason   string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%v %d: %s", ErrInvalidTarget, e.TargetID, e.Reason)
}

func (e *TargetError) Is(target error) bool { return target == ErrInvalidTarget }

// EndDateError carries the rejected end date.
type EndDateError struct {
	SprintID int64
	EndDate  time.Time
}

func (e *EndDateError) Error() string {
	return fmt.Sprintf("sprint %d: %v (got %s)", e.SprintID, ErrInvalidEndDate, e.EndDate.Format(time.RFC3339))
}

func (e *EndDateError) Is(target error) bool { return target == ErrInvalidEndDate }

// IsBusinessError reports whether err is one of the engine's caller-facing
// rejections rather than a storage failure.
func IsBusinessError(err error) bool {
	for _, target := range []error{
		ErrInvalidTransition, ErrConflictingActiveSprint, ErrInvalidTarget, ErrInvalidEndDate,
		ErrInvalidAction, ErrSprintNotFound, ErrTicketNotFound, ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

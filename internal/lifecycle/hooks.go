package lifecycle

//go:generate mockgen -source=hooks.go -destination=mock_hooks_test.go -package=lifecycle

import (
	"context"

	"github.com/akyairhashvil/sprintledger/internal/events"
)

// Capability is an opaque permission token checked before every operation.
type Capability string

// CapManageSprints gates every lifecycle operation.
const CapManageSprints Capability = "manage_sprints"

// Authorizer answers capability checks for a user in a project.
type Authorizer interface {
	HasCapability(ctx context.Context, userID, projectID int64, capability Capability) (bool, error)
}

// Notifier receives events after their transaction commits. Implementations
// must not block.
type Notifier interface {
	Notify(ctx context.Context, ev events.Event)
}

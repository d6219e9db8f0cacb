package lifecycle

import (
	"log/slog"
	"time"

	"github.com/akyairhashvil/sprintledger/internal/config"
)

// Option configures a Controller.
type Option func(*Controller)

// WithAuthorizer enables capability checks before every operation.
func WithAuthorizer(a Authorizer) Option {
	return func(c *Controller) { c.authz = a }
}

// WithNotifier sets the sink for post-commit events.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithDonePredicate replaces the column-name heuristic used when a completion
// request names no done columns.
func WithDonePredicate(p DonePredicate) Option {
	return func(c *Controller) {
		if p != nil {
			c.isDone = p
		}
	}
}

// WithExtendDays sets how far extend moves the end date when the caller gives
// neither days nor a date.
func WithExtendDays(days int) Option {
	return func(c *Controller) {
		if days > 0 {
			c.extendDays = days
		}
	}
}

// WithTimeouts bounds regular operations and completion separately.
func WithTimeouts(operation, completion time.Duration) Option {
	return func(c *Controller) {
		if operation > 0 {
			c.opTimeout = operation
		}
		if completion > 0 {
			c.completionTimeout = completion
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func defaults() *Controller {
	return &Controller{
		isDone:            KeywordPredicate(config.DefaultDoneKeywords...),
		extendDays:        config.DefaultExtendDays,
		opTimeout:         config.DefaultOperationTimeout,
		completionTimeout: config.DefaultCompletionTimeout,
		now:               func() time.Time { return time.Now().UTC() },
		logger:            slog.Default(),
	}
}

// Package events carries sprint lifecycle notifications to in-process
// subscribers. Delivery is fire-and-forget: a slow subscriber loses events
// rather than blocking the operation that produced them.
package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the lifecycle engine.
const (
	SprintCreated   = "sprint.created"
	SprintStarted   = "sprint.started"
	SprintCompleted = "sprint.completed"
	SprintReopened  = "sprint.reopened"
	SprintUpdated   = "sprint.updated"
)

// Event is one notification. ID is assigned by the Bus when empty.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ProjectID int64     `json:"project_id"`
	SprintID  int64     `json:"sprint_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

const subscriberBuffer = 64

// Bus fans events out to subscriber channels.
type Bus struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	dropped atomic.Uint64
	logger  *slog.Logger
}

// NewBus creates an empty bus. A nil logger falls back to slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{subs: make(map[chan Event]struct{}), logger: logger}
}

// Notify stamps the event and delivers it to every subscriber without waiting.
func (b *Bus) Notify(_ context.Context, ev Event) {
	if ev.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			id = uuid.New()
		}
		ev.ID = id.String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
			b.logger.Warn("event dropped", "type", ev.Type, "sprint_id", ev.SprintID)
		}
	}
}

// Subscribe returns a buffered channel receiving all future events.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

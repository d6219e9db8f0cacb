package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Notify(context.Background(), Event{Type: SprintStarted, ProjectID: 1, SprintID: 2, UserID: 3})

	for _, ch := range []chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, SprintStarted, ev.Type)
		assert.Equal(t, int64(2), ev.SprintID)
		assert.False(t, ev.Timestamp.IsZero())
		id, err := uuid.Parse(ev.ID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
	}
}

func TestNotifyKeepsCallerID(t *testing.T) {
	bus := NewBus(nil)
	ch := bus.Subscribe()
	bus.Notify(context.Background(), Event{ID: "fixed", Type: SprintCreated})
	ev := <-ch
	assert.Equal(t, "fixed", ev.ID)
}

func TestNotifyDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus(nil)
	ch := bus.Subscribe()
	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Notify(context.Background(), Event{Type: SprintUpdated})
	}
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, uint64(5), bus.Dropped())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(nil)
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)

	// Second unsubscribe is a no-op and notify no longer reaches it.
	bus.Unsubscribe(ch)
	bus.Notify(context.Background(), Event{Type: SprintReopened})
}

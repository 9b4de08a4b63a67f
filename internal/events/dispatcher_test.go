package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string

	d.Subscribe(EventTicketTriaged, func(_ context.Context, e Event) error {
		seen = append(seen, "first")
		return errors.New("handler failed")
	})
	d.Subscribe(EventTicketTriaged, func(_ context.Context, e Event) error {
		seen = append(seen, "second")
		assert.Equal(t, int64(7), e.TicketID)
		return nil
	})
	d.Subscribe(EventSuggestionsDeliveryFailed, func(context.Context, Event) error {
		seen = append(seen, "other")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventTicketTriaged, 7, "run-1", TicketTriagedPayload{Status: "ASSIGNED"}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler failed")
	assert.Equal(t, []string{"first", "second"}, seen)
}

func TestNewEventStampsIdentity(t *testing.T) {
	e := NewEvent(EventSuggestionsDeliveryFailed, 3, "run-9", nil)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "run-9", e.RunID)
	assert.False(t, e.Timestamp.IsZero())
	assert.NoError(t, NewInMemoryDispatcher().Publish(context.Background(), e))
}

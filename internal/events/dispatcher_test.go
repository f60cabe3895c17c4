package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessgate/access-gate/internal/domain"
)

func TestInMemoryDispatcher_DeliversToSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	d.Subscribe(EventAccessRequestDecided, func(_ context.Context, e Event) error {
		got = append(got, e.RequestID)
		return nil
	})
	d.Subscribe(EventAccessRequestSubmitted, func(_ context.Context, e Event) error {
		t.Fatalf("unexpected delivery of %s", e.Type)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventAccessRequestDecided, RequestID: "r1"}))
	assert.Equal(t, []string{"r1"}, got)
}

func TestInMemoryDispatcher_UnsubscribeStopsDelivery(t *testing.T) {
	d := NewInMemoryDispatcher()
	calls := 0
	sub := d.Subscribe(EventAccessRequestDecided, func(context.Context, Event) error {
		calls++
		return nil
	})
	other := d.Subscribe(EventAccessRequestDecided, func(context.Context, Event) error { return nil })
	assert.Equal(t, 2, ListenerCount(d, EventAccessRequestDecided))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 1, ListenerCount(d, EventAccessRequestDecided))

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventAccessRequestDecided}))
	assert.Zero(t, calls)

	other.Unsubscribe()
	assert.Zero(t, ListenerCount(d, EventAccessRequestDecided))
}

func TestInMemoryDispatcher_HandlerErrorsDoNotStopOthers(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	reached := false
	d.Subscribe(EventAccessRequestSubmitted, func(context.Context, Event) error { return boom })
	d.Subscribe(EventAccessRequestSubmitted, func(context.Context, Event) error {
		reached = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventAccessRequestSubmitted})
	assert.ErrorIs(t, err, boom)
	assert.True(t, reached)
}

func TestInMemoryDispatcher_UnsubscribeFromHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var sub Subscription
	sub = d.Subscribe(EventAccessRequestDecided, func(context.Context, Event) error {
		sub.Unsubscribe()
		return nil
	})
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventAccessRequestDecided}))
	assert.Zero(t, ListenerCount(d, EventAccessRequestDecided))
}

func TestEvent_UnmarshalRestoresTypedPayload(t *testing.T) {
	in := Event{
		ID:        "e1",
		Type:      EventAccessRequestDecided,
		RequestID: "r1",
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Payload: AccessRequestDecidedPayload{
			OldStatus: domain.RequestStatusPending,
			NewStatus: domain.RequestStatusApproved,
		},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Event
	require.NoError(t, json.Unmarshal(data, &out))
	payload, ok := out.Payload.(AccessRequestDecidedPayload)
	require.True(t, ok, "payload type %T", out.Payload)
	assert.Equal(t, domain.RequestStatusApproved, payload.NewStatus)
	assert.Equal(t, "r1", out.RequestID)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
}

package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessgate/access-gate/internal/config"
	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/events"
)

func TestNotificationService_PostsWebhook(t *testing.T) {
	received := make(chan events.Event, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e events.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err == nil {
			received <- e
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, nil, config.NotificationConfig{WebhookURL: srv.URL})
	n.RegisterHandlers()
	defer n.Close()

	store := newFlakyStore()
	id := seedPending(t, store, "ana", "beridze")
	_, err := NewApprovalService(ApprovalDependencies{Requests: store, Dispatcher: dispatcher}).
		Decide(context.Background(), id, domain.DecisionApprove, "alice")
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, events.EventAccessRequestDecided, e.Type)
		assert.Equal(t, id, e.RequestID)
		payload, ok := e.Payload.(events.AccessRequestDecidedPayload)
		require.True(t, ok)
		assert.Equal(t, domain.RequestStatusApproved, payload.NewStatus)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
}

func TestNotificationService_CloseReleasesSubscriptions(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	n := NewNotificationService(dispatcher, nil, config.NotificationConfig{})
	n.RegisterHandlers()
	assert.Equal(t, 1, events.ListenerCount(dispatcher, events.EventAccessRequestSubmitted))
	assert.Equal(t, 1, events.ListenerCount(dispatcher, events.EventAccessRequestDecided))

	n.Close()
	assert.Equal(t, 0, events.ListenerCount(dispatcher, events.EventAccessRequestSubmitted))
	assert.Equal(t, 0, events.ListenerCount(dispatcher, events.EventAccessRequestDecided))
}

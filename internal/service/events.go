package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/events"
)

// publishEvent fills in id and timestamp and publishes. The state change has
// already committed, so a failed publish is logged and not returned.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("publish event failed",
			zap.String("event_type", string(event.Type)),
			zap.String("request_id", event.RequestID),
			zap.Error(err))
	}
}

func operatorActor(username *string) events.Actor {
	if username == nil {
		return events.Actor{}
	}
	return events.Actor{
		Type: domain.SubjectTypeOperator,
		ID:   username,
	}
}

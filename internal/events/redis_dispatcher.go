package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisDispatcher fans events out to every service instance through a Redis
// pub/sub channel. Handlers stay local: Run relays channel messages into the
// wrapped in-memory dispatcher.
type RedisDispatcher struct {
	client  *redis.Client
	channel string
	local   Dispatcher
	logger  *zap.Logger

	// relaying is set while Run holds a confirmed subscription.
	relaying atomic.Bool
}

// NewRedisDispatcher creates a dispatcher publishing on channel.
func NewRedisDispatcher(client *redis.Client, channel string, logger *zap.Logger) *RedisDispatcher {
	return &RedisDispatcher{
		client:  client,
		channel: channel,
		local:   NewInMemoryDispatcher(),
		logger:  logger,
	}
}

// Publish sends the event to Redis. The event is also delivered to local
// handlers directly when this process would not see it come back: Redis
// refused it, nobody received it, or the relay is not subscribed. A relay
// that subscribes while Publish runs may cause one duplicate delivery.
func (d *RedisDispatcher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	relaying := d.relaying.Load()

	receivers, err := d.client.Publish(ctx, d.channel, data).Result()
	switch {
	case err != nil:
		d.logger.Warn("redis publish failed; delivering locally",
			zap.String("event_type", string(event.Type)),
			zap.String("request_id", event.RequestID),
			zap.Error(err))
	case receivers == 0 || !relaying:
		d.logger.Debug("relay not subscribed; delivering locally",
			zap.String("event_type", string(event.Type)),
			zap.String("request_id", event.RequestID),
			zap.Int64("receivers", receivers))
	default:
		return nil
	}
	return d.local.Publish(ctx, event)
}

// Relaying reports whether Run currently holds a subscription.
func (d *RedisDispatcher) Relaying() bool {
	return d.relaying.Load()
}

// Subscribe registers a local handler.
func (d *RedisDispatcher) Subscribe(eventType EventType, handler EventHandler) Subscription {
	return d.local.Subscribe(eventType, handler)
}

// Run relays channel messages to local handlers until ctx is cancelled.
func (d *RedisDispatcher) Run(ctx context.Context) error {
	pubsub := d.client.Subscribe(ctx, d.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", d.channel, err)
	}
	d.relaying.Store(true)
	defer d.relaying.Store(false)
	d.logger.Info("redis event relay started", zap.String("channel", d.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				d.logger.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			if err := d.local.Publish(ctx, event); err != nil {
				d.logger.Warn("event handler failed",
					zap.String("event_type", string(event.Type)),
					zap.Error(err))
			}
		}
	}
}

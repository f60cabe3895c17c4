package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Relay is a long-running event source such as events.RedisDispatcher.
type Relay interface {
	Run(ctx context.Context) error
}

// EventRelayWorker keeps a relay running, restarting it after failures until
// Stop is called.
type EventRelayWorker struct {
	relay   Relay
	logger  *zap.Logger
	backoff time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEventRelayWorker builds a worker; backoff <= 0 uses one second.
func NewEventRelayWorker(relay Relay, logger *zap.Logger, backoff time.Duration) *EventRelayWorker {
	if backoff <= 0 {
		backoff = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRelayWorker{relay: relay, logger: logger, backoff: backoff}
}

// Start launches the relay loop.
func (w *EventRelayWorker) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		for {
			err := w.relay.Run(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				w.logger.Warn("event relay stopped; restarting", zap.Error(err), zap.Duration("backoff", w.backoff))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff):
			}
		}
	}()
}

// Stop cancels the relay and waits for it to exit.
func (w *EventRelayWorker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/accessgate/access-gate/internal/domain"
	"github.com/accessgate/access-gate/internal/events"
	"github.com/accessgate/access-gate/internal/repository"
)

const (
	defaultPollInterval = 2 * time.Second
	// pushRecheckFactor scales the poll interval into the push-mode backstop.
	pushRecheckFactor = 5
)

// WatchMode selects how a caller waits for a decision.
type WatchMode string

const (
	WatchModePoll WatchMode = "poll"
	WatchModePush WatchMode = "push"
)

// ParseWatchMode accepts "poll" or "push"; empty means poll.
func ParseWatchMode(raw string) (WatchMode, error) {
	switch WatchMode(raw) {
	case "", WatchModePoll:
		return WatchModePoll, nil
	case WatchModePush:
		return WatchModePush, nil
	default:
		return "", fmt.Errorf("unknown watch mode %q", raw)
	}
}

// StatusNotifier reports the status of a request and lets callers wait for
// it to leave pending.
type StatusNotifier struct {
	requests     repository.AccessRequestRepository
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	pollInterval time.Duration
}

// NotifierDependencies bundles collaborators for the notifier.
type NotifierDependencies struct {
	Requests     repository.AccessRequestRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	PollInterval time.Duration
}

// NewStatusNotifier constructs the notifier.
func NewStatusNotifier(deps NotifierDependencies) *StatusNotifier {
	n := &StatusNotifier{
		requests:     deps.Requests,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		pollInterval: deps.PollInterval,
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	if n.pollInterval <= 0 {
		n.pollInterval = defaultPollInterval
	}
	return n
}

// CheckStatus reads the current status of a request.
func (n *StatusNotifier) CheckStatus(ctx context.Context, id string) (domain.RequestStatus, error) {
	req, err := n.requests.GetByID(ctx, id)
	if err != nil {
		return "", lookupError(err)
	}
	return req.Status, nil
}

// CheckStatusByCode returns the most recently submitted request carrying code.
func (n *StatusNotifier) CheckStatusByCode(ctx context.Context, code string) (*domain.AccessRequest, error) {
	req, err := n.requests.GetByCode(ctx, code)
	if err != nil {
		return nil, lookupError(err)
	}
	return req, nil
}

// Poll reads the status immediately and then once per interval until it is
// terminal. Failed reads are logged and retried on the next tick. An unknown
// id ends the loop since it can never become terminal.
func (n *StatusNotifier) Poll(ctx context.Context, id string) (domain.RequestStatus, error) {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		status, err := n.CheckStatus(ctx, id)
		switch {
		case err == nil && status.IsTerminal():
			return status, nil
		case errors.Is(err, ErrRequestNotFound):
			return "", err
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			n.logger.Warn("status poll failed",
				zap.String("request_id", id),
				zap.Error(fmt.Errorf("%w: %w", ErrTransientQueryFailure, err)))
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// Await subscribes to decision events for id and returns when one arrives.
// The subscription is taken before the current status is read so a decision
// that commits in between is still observed. The status is also re-read on a
// slow backstop tick so a dropped event cannot strand the caller.
func (n *StatusNotifier) Await(ctx context.Context, id string) (domain.RequestStatus, error) {
	if n.dispatcher == nil {
		return "", errors.New("push mode requires an event dispatcher")
	}

	decided := make(chan domain.RequestStatus, 1)
	sub := n.dispatcher.Subscribe(events.EventAccessRequestDecided, func(_ context.Context, event events.Event) error {
		if event.RequestID != id {
			return nil
		}
		payload, ok := event.Payload.(events.AccessRequestDecidedPayload)
		if !ok {
			return nil
		}
		select {
		case decided <- payload.NewStatus:
		default:
		}
		return nil
	})
	defer sub.Unsubscribe()

	status, err := n.CheckStatus(ctx, id)
	if err != nil {
		return "", err
	}
	if status.IsTerminal() {
		return status, nil
	}

	recheck := time.NewTicker(n.pollInterval * pushRecheckFactor)
	defer recheck.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case status := <-decided:
			return status, nil
		case <-recheck.C:
			status, err := n.CheckStatus(ctx, id)
			switch {
			case err == nil && status.IsTerminal():
				return status, nil
			case errors.Is(err, ErrRequestNotFound):
				return "", err
			case err != nil && ctx.Err() == nil:
				n.logger.Warn("push recheck failed",
					zap.String("request_id", id),
					zap.Error(fmt.Errorf("%w: %w", ErrTransientQueryFailure, err)))
			}
		}
	}
}

// Watch waits for a terminal status using the given mode.
func (n *StatusNotifier) Watch(ctx context.Context, id string, mode WatchMode) (domain.RequestStatus, error) {
	switch mode {
	case WatchModePush:
		return n.Await(ctx, id)
	case WatchModePoll, "":
		return n.Poll(ctx, id)
	default:
		return "", fmt.Errorf("unknown watch mode %q", mode)
	}
}

func lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrRequestNotFound, err)
	}
	return storageFailure(err)
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/accessgate/access-gate/internal/config"
	"github.com/accessgate/access-gate/internal/events"
)

// NotificationService fans access request events out to the log and an
// optional webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	client     *http.Client
	subs       []events.Subscription
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.subs = append(n.subs,
		n.dispatcher.Subscribe(events.EventAccessRequestSubmitted, n.handleSubmitted),
		n.dispatcher.Subscribe(events.EventAccessRequestDecided, n.handleDecided),
	)
}

// Close releases the dispatcher subscriptions.
func (n *NotificationService) Close() {
	for _, sub := range n.subs {
		sub.Unsubscribe()
	}
	n.subs = nil
}

func (n *NotificationService) handleSubmitted(ctx context.Context, event events.Event) error {
	n.logger.Info("AccessRequestSubmitted", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendWebhook(ctx, event)
	return nil
}

func (n *NotificationService) handleDecided(ctx context.Context, event events.Event) error {
	n.logger.Info("AccessRequestDecided", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	n.sendWebhook(ctx, event)
	return nil
}

// sendWebhook posts the event in the background; dispatcher handlers must
// not block the publisher.
func (n *NotificationService) sendWebhook(_ context.Context, event events.Event) {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("encode webhook body", zap.Error(err))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := n.post(ctx, url, body); err != nil {
			n.logger.Warn("webhook delivery failed",
				zap.String("url", url),
				zap.String("request_id", event.RequestID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			return
		}
		n.logger.Debug("webhook delivered",
			zap.String("request_id", event.RequestID),
			zap.String("event_type", string(event.Type)))
	}()
}

func (n *NotificationService) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

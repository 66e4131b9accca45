package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vertice360/leadqual/internal/config"
	"github.com/vertice360/leadqual/internal/events"
)

// NotificationService forwards emitted events to an external webhook.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	client     *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout()},
	}
}

// RegisterHandlers subscribes to events. Without a configured webhook URL the
// service stays idle.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || strings.TrimSpace(n.cfg.EventWebhookURL) == "" {
		return
	}
	n.dispatcher.SubscribeAll(n.handleEvent)
}

func (n *NotificationService) handleEvent(_ context.Context, event events.Event) error {
	// The dispatcher is synchronous; delivery must not block the engine turn.
	go n.deliver(event)
	return nil
}

func (n *NotificationService) deliver(event events.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("event webhook marshal failed", zap.Error(err))
		return
	}
	req, err := http.NewRequest(http.MethodPost, n.cfg.EventWebhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("event webhook request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("event webhook delivery failed",
			zap.String("event", string(event.Name)),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.logger.Warn("event webhook rejected",
			zap.String("event", string(event.Name)),
			zap.Int("status", resp.StatusCode))
	}
}

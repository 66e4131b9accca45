package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertice360/leadqual/internal/config"
	"github.com/vertice360/leadqual/pkg/util"
)

// WebhookSender delivers engine replies to the messaging provider bridge via
// HTTP POST. The bridge answers with an optional provider message id.
type WebhookSender struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookSender builds a sender for the configured outbound URL.
func NewWebhookSender(cfg config.NotificationConfig, logger *zap.Logger) *WebhookSender {
	return &WebhookSender{
		url:    cfg.OutboundWebhookURL,
		client: &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

type outboundPayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type outboundAck struct {
	MessageID string `json:"messageId"`
}

// Send posts the reply and returns the provider message id, falling back to
// a local id when the bridge does not return one.
func (s *WebhookSender) Send(ctx context.Context, to, text string) (string, error) {
	body, err := json.Marshal(outboundPayload{To: to, Text: text})
	if err != nil {
		return "", util.NewUpstreamSendError("webhook", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", util.NewUpstreamSendError("webhook", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", util.NewUpstreamSendError("webhook", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", util.NewUpstreamSendError("webhook", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var ack outboundAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err == nil && strings.TrimSpace(ack.MessageID) != "" {
		return ack.MessageID, nil
	}
	return "wamid.local-" + uuid.NewString(), nil
}

// LogSender acknowledges replies locally. It is the default when no outbound
// webhook is configured, keeping the engine runnable without a provider.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds the local sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the reply and returns a synthetic message id.
func (s *LogSender) Send(_ context.Context, to, text string) (string, error) {
	id := "wamid.local-" + uuid.NewString()
	s.logger.Info("outbound message",
		zap.String("to", to),
		zap.String("text", text),
		zap.String("message_id", id),
	)
	return id, nil
}

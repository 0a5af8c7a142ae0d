package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/spec-kit/trustmesh/internal/config"
	"github.com/spec-kit/trustmesh/internal/events"
)

// CodeDelivery is one code to hand to the delivery provider.
type CodeDelivery struct {
	Email string
	Name  string
	Code  string
	TTL   time.Duration
}

// CodeSender delivers a one-time code. The returned state id is the
// provider's correlator, empty when it has none.
type CodeSender interface {
	SendCode(ctx context.Context, delivery CodeDelivery) (string, error)
}

// NewCodeSender picks the webhook sender when a URL is configured and the
// logging sender otherwise.
func NewCodeSender(cfg config.ChallengeConfig, logger *zap.Logger) CodeSender {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return &LogCodeSender{logger: logger, from: cfg.EmailFrom}
	}
	return NewWebhookCodeSender(cfg.WebhookURL, cfg.EmailFrom, cfg.SenderTimeout, nil)
}

// LogCodeSender records deliveries in the log instead of sending them.
// It never logs the code itself.
type LogCodeSender struct {
	logger *zap.Logger
	from   string
}

func (s *LogCodeSender) SendCode(_ context.Context, d CodeDelivery) (string, error) {
	s.logger.Debug("code delivery skipped",
		zap.String("from", s.from),
		zap.String("to", d.Email),
		zap.Duration("ttl", d.TTL))
	return "", nil
}

// WebhookCodeSender posts deliveries to an HTTP notification provider.
type WebhookCodeSender struct {
	url    string
	from   string
	client *http.Client
}

// NewWebhookCodeSender builds a sender. A nil client gets a traced client.
func NewWebhookCodeSender(url, from string, timeout time.Duration, client *http.Client) *WebhookCodeSender {
	if client == nil {
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &WebhookCodeSender{url: url, from: from, client: client}
}

type webhookRequest struct {
	From             string `json:"from"`
	To               string `json:"to"`
	Name             string `json:"name"`
	Code             string `json:"code"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

type webhookResponse struct {
	StateID string `json:"state_id"`
}

func (s *WebhookCodeSender) SendCode(ctx context.Context, d CodeDelivery) (string, error) {
	body, err := json.Marshal(webhookRequest{
		From:             s.from,
		To:               d.Email,
		Name:             d.Name,
		Code:             d.Code,
		ExpiresInSeconds: int64(d.TTL / time.Second),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send code: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err != nil {
		return "", fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("send code: provider returned %d", resp.StatusCode)
	}

	var out webhookResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", fmt.Errorf("decode provider response: %w", err)
		}
	}
	return out.StateID, nil
}

// NotificationService logs identity lifecycle events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventIdentityRegistered, n.handleIdentityEvent)
	n.dispatcher.Subscribe(events.EventIdentityVerified, n.handleIdentityEvent)
	n.dispatcher.Subscribe(events.EventMediaDeletionRequested, n.handleMediaDeletionRequested)
}

func (n *NotificationService) handleIdentityEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type), zap.String("event_id", event.ID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleMediaDeletionRequested(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("subject", event.Subject),
		zap.Any("payload", event.Payload))
	return nil
}

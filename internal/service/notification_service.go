package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/opsguardian/ticket-triage/internal/config"
	"github.com/opsguardian/ticket-triage/internal/events"
)

// NotificationService handles emitting notifications for triage events.
// Urgent triage results and failed suggestion deliveries are posted to the
// configured webhook as the event JSON.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	client     *http.Client
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
		client:     &http.Client{Timeout: cfg.WebhookTimeout()},
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketTriaged, n.handleTicketTriaged)
	n.dispatcher.Subscribe(events.EventSuggestionsDeliveryFailed, n.handleDeliveryFailed)
}

func (n *NotificationService) handleTicketTriaged(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.TicketTriagedPayload)
	n.logger.Info("TicketTriaged",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("run_id", event.RunID),
		zap.Any("payload", event.Payload))
	if payload.Priority.IsUrgent() {
		n.notifyWebhook(ctx, event)
	}
	return nil
}

func (n *NotificationService) handleDeliveryFailed(ctx context.Context, event events.Event) error {
	n.logger.Warn("SuggestionsDeliveryFailed",
		zap.Int64("ticket_id", event.TicketID),
		zap.String("run_id", event.RunID),
		zap.Any("payload", event.Payload))
	n.notifyWebhook(ctx, event)
	return nil
}

// notifyWebhook is best effort: failures are logged and never reach the
// triage run that published the event.
func (n *NotificationService) notifyWebhook(ctx context.Context, event events.Event) {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return
	}
	logger := n.logger.With(
		zap.Int64("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
	if err := n.postWebhook(ctx, url, event); err != nil {
		logger.Warn("webhook notification failed", zap.Error(err))
		return
	}
	logger.Debug("webhook notification sent")
}

func (n *NotificationService) postWebhook(ctx context.Context, url string, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.WebhookTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

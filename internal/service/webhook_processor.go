package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/metrics"
	"github.com/josh-kwaku/psp-connector/internal/notification"
)

const (
	webhookBatchSize   = 10
	maxWebhookAttempts = 5
	staleProcessing    = 5 * time.Minute
)

type webhookRepo interface {
	ClaimPending(ctx context.Context, limit int) ([]domain.WebhookEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus, lastErr *string) error
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type notificationProcessor interface {
	ProcessNotification(ctx context.Context, event *notification.Event) (*domain.Payment, error)
}

// WebhookProcessor applies stored PSP notifications to payments in the
// background. The HTTP handler only verifies and stores them.
type WebhookProcessor struct {
	webhooks webhookRepo
	payments notificationProcessor
	metrics  *metrics.Metrics
	logger   *slog.Logger
	interval time.Duration
}

func NewWebhookProcessor(
	webhooks webhookRepo,
	payments notificationProcessor,
	m *metrics.Metrics,
	logger *slog.Logger,
	interval time.Duration,
) *WebhookProcessor {
	return &WebhookProcessor{
		webhooks: webhooks,
		payments: payments,
		metrics:  m,
		logger:   logger,
		interval: interval,
	}
}

func (p *WebhookProcessor) Start(ctx context.Context) {
	p.logger.Info("webhook processor started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("webhook processor stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *WebhookProcessor) poll(ctx context.Context) {
	if n, err := p.webhooks.RequeueStale(ctx, staleProcessing); err != nil {
		p.logger.Error("failed to requeue stale webhook events", "error", err)
	} else if n > 0 {
		p.logger.Warn("requeued stale webhook events", "count", n)
	}

	events, err := p.webhooks.ClaimPending(ctx, webhookBatchSize)
	if err != nil {
		p.logger.Error("failed to claim pending webhook events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Error("failed to process webhook event",
				"webhook_event_id", event.ID,
				"error", err,
			)
		}
	}
}

func (p *WebhookProcessor) processEvent(ctx context.Context, event domain.WebhookEvent) error {
	log := p.logger.With("webhook_event_id", event.ID, "event_type", event.EventType)
	ctx = logging.WithLogger(ctx, log)

	parsed, err := notification.Parse(event.Payload)
	if err != nil {
		log.Error("malformed webhook payload", "error", err)
		return p.finish(ctx, event, domain.WebhookEventStatusFailed, err)
	}

	_, err = p.payments.ProcessNotification(ctx, parsed)
	switch {
	case err == nil:
		return p.finish(ctx, event, domain.WebhookEventStatusApplied, nil)
	case isPermanent(err):
		log.Warn("webhook event rejected", "error", err)
		return p.finish(ctx, event, domain.WebhookEventStatusFailed, err)
	case event.Attempts >= maxWebhookAttempts:
		log.Error("webhook event gave up", "attempts", event.Attempts, "error", err)
		return p.finish(ctx, event, domain.WebhookEventStatusFailed, err)
	default:
		log.Warn("webhook event will be retried", "attempts", event.Attempts, "error", err)
		if ferr := p.finish(ctx, event, domain.WebhookEventStatusPending, err); ferr != nil {
			return ferr
		}
		return fmt.Errorf("processEvent: %w", err)
	}
}

func (p *WebhookProcessor) finish(ctx context.Context, event domain.WebhookEvent, status domain.WebhookEventStatus, cause error) error {
	var lastErr *string
	if cause != nil {
		msg := cause.Error()
		lastErr = &msg
	}
	if err := p.webhooks.UpdateStatus(ctx, event.ID, status, lastErr); err != nil {
		return fmt.Errorf("finish: %w", err)
	}
	p.metrics.IncWebhookEvent(string(status))
	return nil
}

// isPermanent reports whether retrying the event can never succeed.
func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrUnsupportedEventType) ||
		errors.Is(err, domain.ErrInvalidRequest) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrCurrencyMismatch) ||
		errors.Is(err, domain.ErrInvalidAmountFormat)
}

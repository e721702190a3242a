package payment

import (
	"context"
	"fmt"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/notification"
)

// ProcessNotification applies a PSP event to the payment named by its
// invoice id. Redelivered and out of order events are absorbed by the
// ledger's {type, interactionId} identity, so applying one twice is safe.
func (s *Service) ProcessNotification(ctx context.Context, event *notification.Event) (*domain.Payment, error) {
	log := logging.FromContext(ctx)

	if !notification.IsSupported(event.EventType) {
		s.metrics.IncNotification(event.EventType, "unsupported")
		return nil, fmt.Errorf("ProcessNotification: %q: %w", event.EventType, domain.ErrUnsupportedEventType)
	}

	paymentID, err := event.PaymentID()
	if err != nil {
		s.metrics.IncNotification(event.EventType, "invalid")
		return nil, fmt.Errorf("ProcessNotification: %w", err)
	}

	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		s.metrics.IncNotification(event.EventType, "unknown_payment")
		return nil, fmt.Errorf("ProcessNotification: %w", err)
	}

	update, err := notification.Convert(event, p.AmountPlanned.FractionDigits)
	if err != nil {
		s.metrics.IncNotification(event.EventType, "invalid")
		return nil, fmt.Errorf("ProcessNotification: %w", err)
	}
	if !update.Transaction.Amount.SameCurrency(p.AmountPlanned) {
		s.metrics.IncNotification(event.EventType, "invalid")
		return nil, fmt.Errorf("ProcessNotification: event %s: %w", event.ID, domain.ErrCurrencyMismatch)
	}

	updated, action, err := s.payments.Update(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("ProcessNotification: %w", err)
	}

	s.metrics.IncNotification(event.EventType, action.String())
	log.Info("notification applied",
		"payment_id", p.ID,
		"event_id", event.ID,
		"event_type", event.EventType,
		"interaction_id", update.Transaction.InteractionID,
		"result", action.String(),
	)
	return updated, nil
}

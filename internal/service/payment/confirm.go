package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/psp"
)

type ConfirmPaymentRequest struct {
	PaymentReference uuid.UUID
	PSPReference     string
}

// ConfirmPayment captures the order the payer approved. The PSP reference
// must be the order recorded on the payment; anything else is rejected
// before the PSP is contacted.
func (s *Service) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*ModificationResult, error) {
	p, err := s.payments.GetByID(ctx, req.PaymentReference)
	if err != nil {
		return nil, fmt.Errorf("ConfirmPayment: %w", err)
	}

	if p.InterfaceID == nil || *p.InterfaceID != req.PSPReference {
		logging.FromContext(ctx).Warn("interface id mismatch",
			"payment_id", p.ID,
			"psp_reference", req.PSPReference,
		)
		return nil, fmt.Errorf("ConfirmPayment: payment %s, psp reference %q: %w", p.ID, req.PSPReference, domain.ErrInterfaceIDMismatch)
	}

	res, err := s.capture(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("ConfirmPayment: %w", err)
	}
	return res, nil
}

// capture charges the full planned amount against the payment's order. A
// payment that already holds a successful charge is reported as approved
// without contacting the PSP again.
func (s *Service) capture(ctx context.Context, p *domain.Payment) (*ModificationResult, error) {
	log := logging.FromContext(ctx)

	if charge := p.LatestSuccessfulCharge(); charge != nil {
		log.Info("payment already captured", "payment_id", p.ID)
		return &ModificationResult{
			Outcome:          OutcomeApproved,
			PaymentReference: p.ID,
			PSPReference:     deref(charge.InteractionID),
		}, nil
	}
	if p.InterfaceID == nil {
		return nil, fmt.Errorf("capture: payment %s has no psp order: %w", p.ID, domain.ErrInvalidRequest)
	}

	txID, err := s.openTransaction(ctx, p.ID, domain.TransactionTypeCharge, p.AmountPlanned)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	c, err := s.psp.CaptureOrder(ctx, *p.InterfaceID)
	if err != nil {
		logPSPError(ctx, "psp capture failed", p.ID, err)
		s.metrics.IncPaymentOperation("capture", string(OutcomeRejected))
		return nil, fmt.Errorf("capture: %w", s.failTransaction(ctx, p.ID, txID, domain.TransactionTypeCharge, p.AmountPlanned, err))
	}

	state, outcome := stateFor(c.Completed())
	// A pending capture settles by notification; leaving the capture id off
	// lets that notification record the charge instead of being swallowed.
	interactionID := c.CaptureID
	if c.CaptureStatus == psp.CaptureStatusPending {
		interactionID = ""
	}

	if _, err := s.closeTransaction(ctx, p.ID, txID, domain.TransactionTypeCharge, state, p.AmountPlanned, interactionID); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	s.metrics.IncPaymentOperation("capture", string(outcome))
	log.Info("payment captured",
		"payment_id", p.ID,
		"psp_reference", c.CaptureID,
		"capture_status", c.CaptureStatus,
		"outcome", outcome,
	)

	return &ModificationResult{
		Outcome:          outcome,
		PaymentReference: p.ID,
		PSPReference:     c.CaptureID,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

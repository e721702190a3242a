package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/psp"
)

const (
	ActionCapturePayment = "capturePayment"
	ActionCancelPayment  = "cancelPayment"
	ActionRefundPayment  = "refundPayment"
	ActionReversePayment = "reversePayment"
)

// Action is one requested modification. The set is closed: CaptureAction,
// CancelAction, RefundAction and ReverseAction.
type Action interface {
	Name() string
	action()
}

// CaptureAction charges the payment. Amount, when set, must equal the
// planned amount; partial captures are not offered by this PSP model.
type CaptureAction struct {
	Amount *domain.Money
}

type CancelAction struct{}

type RefundAction struct {
	Amount domain.Money
}

// ReverseAction refunds the full planned amount.
type ReverseAction struct{}

func (CaptureAction) Name() string { return ActionCapturePayment }
func (CancelAction) Name() string  { return ActionCancelPayment }
func (RefundAction) Name() string  { return ActionRefundPayment }
func (ReverseAction) Name() string { return ActionReversePayment }

func (CaptureAction) action() {}
func (CancelAction) action()  {}
func (RefundAction) action()  {}
func (ReverseAction) action() {}

// ParseAction builds an Action from its wire name.
func ParseAction(name string, amt *domain.Money) (Action, error) {
	switch name {
	case ActionCapturePayment:
		return CaptureAction{Amount: amt}, nil
	case ActionCancelPayment:
		return CancelAction{}, nil
	case ActionRefundPayment:
		if amt == nil {
			return nil, fmt.Errorf("ParseAction: refund amount is required: %w", domain.ErrInvalidRequest)
		}
		return RefundAction{Amount: *amt}, nil
	case ActionReversePayment:
		return ReverseAction{}, nil
	default:
		return nil, fmt.Errorf("ParseAction: %q: %w", name, domain.ErrUnsupportedOperation)
	}
}

func (s *Service) ModifyPayment(ctx context.Context, paymentID uuid.UUID, a Action) (*ModificationResult, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("ModifyPayment: %w", err)
	}

	var res *ModificationResult
	switch a := a.(type) {
	case CaptureAction:
		res, err = s.capturePayment(ctx, p, a)
	case CancelAction:
		err = fmt.Errorf("cancel: %w", domain.ErrUnsupportedOperation)
	case RefundAction:
		res, err = s.refundPayment(ctx, p, a.Amount)
	case ReverseAction:
		res, err = s.refundPayment(ctx, p, p.AmountPlanned)
	default:
		err = domain.ErrUnsupportedOperation
	}
	if err != nil {
		return nil, fmt.Errorf("ModifyPayment: %w", err)
	}
	return res, nil
}

func (s *Service) capturePayment(ctx context.Context, p *domain.Payment, a CaptureAction) (*ModificationResult, error) {
	if a.Amount != nil {
		if !a.Amount.SameCurrency(p.AmountPlanned) {
			return nil, fmt.Errorf("capturePayment: %w", domain.ErrCurrencyMismatch)
		}
		if a.Amount.CentAmount != p.AmountPlanned.CentAmount {
			return nil, fmt.Errorf("capturePayment: partial capture: %w", domain.ErrUnsupportedOperation)
		}
	}
	return s.capture(ctx, p)
}

// refundPayment refunds amt against the most recent successful charge. The
// refund is partial when amt is below the planned amount, full otherwise.
func (s *Service) refundPayment(ctx context.Context, p *domain.Payment, amt domain.Money) (*ModificationResult, error) {
	log := logging.FromContext(ctx)

	if amt.CentAmount <= 0 {
		return nil, fmt.Errorf("refundPayment: %w", domain.ErrInvalidAmount)
	}
	if !amt.SameCurrency(p.AmountPlanned) {
		return nil, fmt.Errorf("refundPayment: %s/%d against %s/%d: %w",
			amt.CurrencyCode, amt.FractionDigits, p.AmountPlanned.CurrencyCode, p.AmountPlanned.FractionDigits, domain.ErrCurrencyMismatch)
	}

	charge := p.LatestSuccessfulCharge()
	if charge == nil || charge.InteractionID == nil {
		return nil, fmt.Errorf("refundPayment: payment %s: %w", p.ID, domain.ErrNoCaptureToRefund)
	}
	captureID := *charge.InteractionID

	partial := isPartialRefund(p, amt)
	if !partial {
		// A full refund returns whatever is left on the capture.
		amt = p.AmountPlanned
		amt.CentAmount -= p.RefundedAmount()
		if amt.CentAmount <= 0 {
			return nil, fmt.Errorf("refundPayment: payment %s is fully refunded: %w", p.ID, domain.ErrNoCaptureToRefund)
		}
	}

	txID, err := s.openTransaction(ctx, p.ID, domain.TransactionTypeRefund, amt)
	if err != nil {
		return nil, fmt.Errorf("refundPayment: %w", err)
	}

	var refund *psp.Refund
	if partial {
		refund, err = s.psp.RefundPartial(ctx, captureID, amt)
	} else {
		refund, err = s.psp.RefundFull(ctx, captureID)
	}
	if err != nil {
		logPSPError(ctx, "psp refund failed", p.ID, err)
		s.metrics.IncPaymentOperation("refund", string(OutcomeRejected))
		return nil, fmt.Errorf("refundPayment: %w", s.failTransaction(ctx, p.ID, txID, domain.TransactionTypeRefund, amt, err))
	}

	amt = refundedAmount(ctx, refund, amt)
	state, outcome := stateFor(refund.Accepted())
	if _, err := s.closeTransaction(ctx, p.ID, txID, domain.TransactionTypeRefund, state, amt, refund.ID); err != nil {
		return nil, fmt.Errorf("refundPayment: %w", err)
	}

	s.metrics.IncPaymentOperation("refund", string(outcome))
	log.Info("payment refunded",
		"payment_id", p.ID,
		"capture_id", captureID,
		"psp_reference", refund.ID,
		"refund_status", refund.Status,
		"partial", partial,
		"cent_amount", amt.CentAmount,
		"outcome", outcome,
	)

	return &ModificationResult{
		Outcome:          outcome,
		PaymentReference: p.ID,
		PSPReference:     refund.ID,
	}, nil
}

func isPartialRefund(p *domain.Payment, requested domain.Money) bool {
	return requested.CentAmount < p.AmountPlanned.CentAmount
}

// refundedAmount prefers the amount the PSP reports having refunded over the
// requested one. An amount that cannot be decoded exactly in the payment's
// currency is logged and the requested amount is kept.
func refundedAmount(ctx context.Context, refund *psp.Refund, requested domain.Money) domain.Money {
	if refund.Amount == nil {
		return requested
	}
	got, err := refund.Amount.ToDomain(requested.FractionDigits)
	if err == nil && got.SameCurrency(requested) && got.CentAmount > 0 {
		return got
	}
	logging.FromContext(ctx).Warn("psp refund amount not usable",
		"psp_reference", refund.ID,
		"currency_code", refund.Amount.CurrencyCode,
		"value", refund.Amount.Value,
		"error", err,
	)
	return requested
}

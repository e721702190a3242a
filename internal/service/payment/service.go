// Package payment orchestrates payment creation, confirmation, modification
// and notification handling between the local ledger and the PSP.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/metrics"
	"github.com/josh-kwaku/psp-connector/internal/psp"
)

type cartRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Cart, error)
	PaymentAmount(ctx context.Context, ref domain.CartRef) (domain.Money, error)
	AddPayment(ctx context.Context, ref domain.CartRef, paymentID uuid.UUID) (domain.CartRef, error)
}

type paymentRepo interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	Update(ctx context.Context, u domain.PaymentUpdate) (*domain.Payment, domain.PlanAction, error)
}

type pspClient interface {
	CreateOrder(ctx context.Context, req psp.CreateOrderRequest) (*psp.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*psp.Capture, error)
	RefundPartial(ctx context.Context, captureID string, amt domain.Money) (*psp.Refund, error)
	RefundFull(ctx context.Context, captureID string) (*psp.Refund, error)
}

type Outcome string

const (
	OutcomeAuthorized Outcome = "Authorized"
	OutcomeApproved   Outcome = "Approved"
	OutcomeRejected   Outcome = "Rejected"
)

// Settings is what the browser-side SDK needs to render the PSP button.
type Settings struct {
	ClientID    string
	Environment psp.Environment
}

type ModificationResult struct {
	Outcome          Outcome
	PaymentReference uuid.UUID
	PSPReference     string
}

type Service struct {
	carts    cartRepo
	payments paymentRepo
	psp      pspClient
	metrics  *metrics.Metrics
	settings Settings
}

func NewService(carts cartRepo, payments paymentRepo, client pspClient, m *metrics.Metrics, settings Settings) *Service {
	return &Service{
		carts:    carts,
		payments: payments,
		psp:      client,
		metrics:  m,
		settings: settings,
	}
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetPayment: %w", err)
	}
	return p, nil
}

func (s *Service) Config() Settings {
	return s.settings
}

type Component struct {
	Type string `json:"type"`
}

func (s *Service) SupportedComponents() []Component {
	return []Component{{Type: domain.PaymentInterfacePayPal}}
}

// openTransaction records an Initial placeholder under a fresh id and
// returns that id.
func (s *Service) openTransaction(ctx context.Context, paymentID uuid.UUID, typ domain.TransactionType, amt domain.Money) (uuid.UUID, error) {
	id := uuid.New()
	_, _, err := s.payments.Update(ctx, domain.PaymentUpdate{
		PaymentID: paymentID,
		Transaction: &domain.TransactionDraft{
			ID:     &id,
			Type:   typ,
			State:  domain.TransactionStateInitial,
			Amount: amt,
		},
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// closeTransaction moves the placeholder txID to its terminal state. Once the
// PSP has been called the outcome must be recorded, so the write ignores ctx
// cancellation and the ledger never keeps an Initial transaction because the
// request timed out or the client went away.
func (s *Service) closeTransaction(ctx context.Context, paymentID, txID uuid.UUID, typ domain.TransactionType, state domain.TransactionState, amt domain.Money, interactionID string) (*domain.Payment, error) {
	p, _, err := s.payments.Update(context.WithoutCancel(ctx), domain.PaymentUpdate{
		PaymentID: paymentID,
		Transaction: &domain.TransactionDraft{
			ID:            &txID,
			Type:          typ,
			State:         state,
			Amount:        amt,
			InteractionID: interactionID,
		},
	})
	return p, err
}

// failTransaction forces the placeholder into Failure after a PSP error and
// hands cause back to the caller.
func (s *Service) failTransaction(ctx context.Context, paymentID, txID uuid.UUID, typ domain.TransactionType, amt domain.Money, cause error) error {
	_, err := s.closeTransaction(ctx, paymentID, txID, typ, domain.TransactionStateFailure, amt, "")
	if err != nil {
		logging.FromContext(ctx).Error("failed to record transaction failure",
			"payment_id", paymentID,
			"transaction_id", txID,
			"error", err,
		)
		return errors.Join(cause, err)
	}
	return cause
}

func stateFor(approved bool) (domain.TransactionState, Outcome) {
	if approved {
		return domain.TransactionStateSuccess, OutcomeApproved
	}
	return domain.TransactionStateFailure, OutcomeRejected
}

func logPSPError(ctx context.Context, msg string, paymentID uuid.UUID, err error) {
	attrs := []any{"payment_id", paymentID, "error", err}
	var apiErr *psp.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs, "psp_status", apiErr.HTTPStatus, "correlation_id", apiErr.CorrelationID)
	}
	logging.FromContext(ctx).Error(msg, attrs...)
}

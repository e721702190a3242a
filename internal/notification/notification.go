// Package notification turns PSP webhook events into payment updates.
package notification

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/amount"
	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/psp"
)

const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDeclined  = "PAYMENT.CAPTURE.DECLINED"
	EventCaptureRefunded  = "PAYMENT.CAPTURE.REFUNDED"
	EventCaptureReversed  = "PAYMENT.CAPTURE.REVERSED"
)

type outcome struct {
	txType  domain.TransactionType
	txState domain.TransactionState
}

var outcomes = map[string]outcome{
	EventCaptureCompleted: {domain.TransactionTypeCharge, domain.TransactionStateSuccess},
	EventCaptureDeclined:  {domain.TransactionTypeCharge, domain.TransactionStateFailure},
	EventCaptureRefunded:  {domain.TransactionTypeRefund, domain.TransactionStateSuccess},
	EventCaptureReversed:  {domain.TransactionTypeRefund, domain.TransactionStateSuccess},
}

type Event struct {
	ID           string   `json:"id"`
	EventType    string   `json:"event_type"`
	ResourceType string   `json:"resource_type,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	CreateTime   string   `json:"create_time,omitempty"`
	Resource     Resource `json:"resource"`
}

type Resource struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	Status    string    `json:"status,omitempty"`
	Amount    psp.Money `json:"amount"`
}

func Parse(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("Parse: %w: %w", domain.ErrInvalidRequest, err)
	}
	if e.ID == "" || e.EventType == "" {
		return nil, fmt.Errorf("Parse: id and event_type are required: %w", domain.ErrInvalidRequest)
	}
	return &e, nil
}

func IsSupported(eventType string) bool {
	_, ok := outcomes[eventType]
	return ok
}

// PaymentID is the join key back to the local payment: the invoice id the
// order was created with.
func (e *Event) PaymentID() (uuid.UUID, error) {
	id, err := uuid.Parse(e.Resource.InvoiceID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("PaymentID: invoice_id %q: %w", e.Resource.InvoiceID, domain.ErrInvalidRequest)
	}
	return id, nil
}

// Convert maps an event to the transaction update it implies. fractionDigits
// is the precision of the payment's currency.
func Convert(e *Event, fractionDigits int) (domain.PaymentUpdate, error) {
	out, ok := outcomes[e.EventType]
	if !ok {
		return domain.PaymentUpdate{}, fmt.Errorf("Convert: %q: %w", e.EventType, domain.ErrUnsupportedEventType)
	}

	paymentID, err := e.PaymentID()
	if err != nil {
		return domain.PaymentUpdate{}, fmt.Errorf("Convert: %w", err)
	}
	if e.Resource.ID == "" {
		return domain.PaymentUpdate{}, fmt.Errorf("Convert: resource id missing: %w", domain.ErrInvalidRequest)
	}

	minor, err := amount.ToMinorUnits(e.Resource.Amount.Value, fractionDigits)
	if err != nil {
		return domain.PaymentUpdate{}, fmt.Errorf("Convert: %w", err)
	}

	return domain.PaymentUpdate{
		PaymentID: paymentID,
		Transaction: &domain.TransactionDraft{
			Type:  out.txType,
			State: out.txState,
			Amount: domain.Money{
				CentAmount:     minor,
				CurrencyCode:   e.Resource.Amount.CurrencyCode,
				FractionDigits: fractionDigits,
			},
			InteractionID: e.Resource.ID,
		},
	}, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

const PaymentInterfacePayPal = "paypal"

type Payment struct {
	ID               uuid.UUID
	CartID           uuid.UUID
	CustomerID       *string
	AmountPlanned    Money
	PaymentInterface string
	PaymentMethod    *string
	// InterfaceID is the PSP order id once the order exists.
	InterfaceID  *string
	Version      int64
	Transactions []Transaction
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LatestSuccessfulCharge returns the most recent Charge in state Success,
// or nil when the payment was never captured.
func (p *Payment) LatestSuccessfulCharge() *Transaction {
	for i := len(p.Transactions) - 1; i >= 0; i-- {
		t := &p.Transactions[i]
		if t.Type == TransactionTypeCharge && t.State == TransactionStateSuccess {
			return t
		}
	}
	return nil
}

// RefundedAmount sums the successful refunds. Pending refunds are recorded
// as Success, so they count too.
func (p *Payment) RefundedAmount() int64 {
	var total int64
	for _, t := range p.Transactions {
		if t.Type == TransactionTypeRefund && t.State == TransactionStateSuccess {
			total += t.Amount.CentAmount
		}
	}
	return total
}

func (p *Payment) Transaction(id uuid.UUID) *Transaction {
	for i := range p.Transactions {
		if p.Transactions[i].ID == id {
			return &p.Transactions[i]
		}
	}
	return nil
}

// PaymentUpdate is the single update instruction applied to a payment. Any
// nil field is left untouched.
type PaymentUpdate struct {
	PaymentID     uuid.UUID
	InterfaceID   *string
	PaymentMethod *string
	Transaction   *TransactionDraft
}

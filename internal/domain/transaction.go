package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeAuthorization TransactionType = "Authorization"
	TransactionTypeCharge        TransactionType = "Charge"
	TransactionTypeRefund        TransactionType = "Refund"
)

type TransactionState string

const (
	TransactionStateInitial TransactionState = "Initial"
	TransactionStateSuccess TransactionState = "Success"
	TransactionStateFailure TransactionState = "Failure"
)

func (s TransactionState) IsTerminal() bool {
	return s == TransactionStateSuccess || s == TransactionStateFailure
}

type Transaction struct {
	ID            uuid.UUID
	PaymentID     uuid.UUID
	Type          TransactionType
	State         TransactionState
	Amount        Money
	InteractionID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TransactionDraft describes a transaction to record. ID is set when the
// draft finalizes a transaction the caller created earlier.
type TransactionDraft struct {
	ID            *uuid.UUID
	Type          TransactionType
	State         TransactionState
	Amount        Money
	InteractionID string
}

func (d TransactionDraft) NewTransaction(paymentID uuid.UUID, now time.Time) Transaction {
	id := uuid.New()
	if d.ID != nil {
		id = *d.ID
	}
	t := Transaction{
		ID:        id,
		PaymentID: paymentID,
		Type:      d.Type,
		State:     d.State,
		Amount:    d.Amount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.InteractionID != "" {
		iid := d.InteractionID
		t.InteractionID = &iid
	}
	return t
}

type PlanAction int

const (
	PlanInsert PlanAction = iota
	// PlanFinalize moves Target out of Initial.
	PlanFinalize
	// PlanMerge closes the placeholder Target as Failure because Existing
	// already records the same {type, interactionId}. Rows are never
	// deleted.
	PlanMerge
	PlanNoop
)

func (a PlanAction) String() string {
	switch a {
	case PlanInsert:
		return "insert"
	case PlanFinalize:
		return "finalize"
	case PlanMerge:
		return "merge"
	case PlanNoop:
		return "noop"
	default:
		return "unknown"
	}
}

type TransactionPlan struct {
	Action   PlanAction
	Target   *Transaction
	Existing *Transaction
}

// PlanTransaction decides how a draft lands in a payment's ledger. A
// transaction is identified by {type, interactionId}; applying the same
// draft twice yields PlanNoop the second time, and a terminal transaction
// is never changed.
func PlanTransaction(existing []Transaction, d TransactionDraft) (TransactionPlan, error) {
	var keyed *Transaction
	if d.InteractionID != "" {
		keyed = findByKey(existing, d.Type, d.InteractionID)
	}

	if d.ID != nil {
		target := findByID(existing, *d.ID)
		if target == nil {
			// An Initial draft with a fresh id opens a placeholder the
			// caller finalizes later by that id.
			if d.State == TransactionStateInitial {
				return TransactionPlan{Action: PlanInsert}, nil
			}
			return TransactionPlan{}, fmt.Errorf("PlanTransaction: transaction %s: %w", *d.ID, ErrNotFound)
		}
		if target.Type != d.Type {
			return TransactionPlan{}, fmt.Errorf("PlanTransaction: type %s does not match %s: %w", d.Type, target.Type, ErrInvalidRequest)
		}
		if target.State.IsTerminal() || d.State == TransactionStateInitial {
			return TransactionPlan{Action: PlanNoop, Target: target}, nil
		}
		if keyed != nil && keyed.ID != target.ID {
			return TransactionPlan{Action: PlanMerge, Target: target, Existing: keyed}, nil
		}
		return TransactionPlan{Action: PlanFinalize, Target: target}, nil
	}

	if keyed != nil {
		if keyed.State.IsTerminal() {
			return TransactionPlan{Action: PlanNoop, Target: keyed}, nil
		}
		return TransactionPlan{Action: PlanFinalize, Target: keyed}, nil
	}

	// A notification can overtake the synchronous call that created the
	// placeholder; adopt it instead of recording the movement twice.
	if d.InteractionID != "" && d.State.IsTerminal() {
		if p := findPlaceholder(existing, d.Type, d.Amount); p != nil {
			return TransactionPlan{Action: PlanFinalize, Target: p}, nil
		}
	}

	return TransactionPlan{Action: PlanInsert}, nil
}

func findByID(txs []Transaction, id uuid.UUID) *Transaction {
	for i := range txs {
		if txs[i].ID == id {
			return &txs[i]
		}
	}
	return nil
}

func findByKey(txs []Transaction, typ TransactionType, interactionID string) *Transaction {
	for i := range txs {
		t := &txs[i]
		if t.Type == typ && t.InteractionID != nil && *t.InteractionID == interactionID {
			return t
		}
	}
	return nil
}

func findPlaceholder(txs []Transaction, typ TransactionType, amount Money) *Transaction {
	for i := range txs {
		t := &txs[i]
		if t.Type == typ && t.State == TransactionStateInitial && t.InteractionID == nil &&
			t.Amount.CentAmount == amount.CentAmount && t.Amount.SameCurrency(amount) {
			return t
		}
	}
	return nil
}

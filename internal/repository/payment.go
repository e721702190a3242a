package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
)

const paymentColumns = `id, cart_id, customer_id, currency, fraction_digits, cent_amount,
	payment_interface, payment_method, interface_id, version, created_at, updated_at`

const transactionColumns = `id, payment_id, type, state, currency, fraction_digits,
	cent_amount, interaction_id, created_at, updated_at`

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO payments (
				id, cart_id, customer_id, currency, fraction_digits, cent_amount,
				payment_interface, payment_method, interface_id, version, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			payment.ID, payment.CartID, payment.CustomerID,
			payment.AmountPlanned.CurrencyCode, payment.AmountPlanned.FractionDigits, payment.AmountPlanned.CentAmount,
			payment.PaymentInterface, payment.PaymentMethod, payment.InterfaceID,
			payment.Version, payment.CreatedAt, payment.UpdatedAt,
		)
		if err != nil {
			return err
		}
		for i := range payment.Transactions {
			if err := insertTransaction(ctx, tx, &payment.Transactions[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := getPayment(ctx, r.db, id, false)
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

// Update applies u atomically. The payment row is locked for the duration,
// so concurrent updates of one payment are serialized and each sees the
// ledger the previous one left behind. The returned action tells how the
// transaction draft landed; PlanNoop when u carried none.
func (r *PaymentRepository) Update(ctx context.Context, u domain.PaymentUpdate) (*domain.Payment, domain.PlanAction, error) {
	var (
		updated *domain.Payment
		action  = domain.PlanNoop
	)

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		p, err := getPayment(ctx, tx, u.PaymentID, true)
		if err != nil {
			return err
		}

		changed := false
		if u.InterfaceID != nil && !equalPtr(p.InterfaceID, u.InterfaceID) {
			p.InterfaceID = u.InterfaceID
			changed = true
		}
		if u.PaymentMethod != nil && !equalPtr(p.PaymentMethod, u.PaymentMethod) {
			p.PaymentMethod = u.PaymentMethod
			changed = true
		}

		now := time.Now().UTC()

		if u.Transaction != nil {
			plan, err := domain.PlanTransaction(p.Transactions, *u.Transaction)
			if err != nil {
				return err
			}
			action = plan.Action
			if err := applyPlan(ctx, tx, p.ID, plan, *u.Transaction, now); err != nil {
				return err
			}
			if plan.Action != domain.PlanNoop {
				changed = true
			}
		}

		if changed {
			_, err := tx.ExecContext(ctx,
				`UPDATE payments SET interface_id = $1, payment_method = $2, version = version + 1, updated_at = $3
				WHERE id = $4`,
				p.InterfaceID, p.PaymentMethod, now, p.ID,
			)
			if err != nil {
				return fmt.Errorf("update payment: %w", err)
			}
		}

		updated, err = getPayment(ctx, tx, p.ID, false)
		return err
	})
	if err != nil {
		return nil, domain.PlanNoop, fmt.Errorf("Update: %w", err)
	}
	return updated, action, nil
}

func applyPlan(ctx context.Context, tx *sql.Tx, paymentID uuid.UUID, plan domain.TransactionPlan, d domain.TransactionDraft, now time.Time) error {
	switch plan.Action {
	case domain.PlanInsert:
		t := d.NewTransaction(paymentID, now)
		return insertTransaction(ctx, tx, &t)

	case domain.PlanFinalize:
		var interactionID *string
		if d.InteractionID != "" {
			interactionID = &d.InteractionID
		}
		// The amount moves too: a full refund only learns what it returned
		// once the PSP answers.
		res, err := tx.ExecContext(ctx,
			`UPDATE transactions SET state = $1, interaction_id = COALESCE($2, interaction_id),
				cent_amount = COALESCE(NULLIF($3::bigint, 0), cent_amount), updated_at = $4
			WHERE id = $5 AND state = $6`,
			d.State, interactionID, d.Amount.CentAmount, now, plan.Target.ID, domain.TransactionStateInitial,
		)
		if err != nil {
			return fmt.Errorf("finalize transaction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("finalize transaction: rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("finalize transaction %s: %w", plan.Target.ID, domain.ErrTransactionTerminal)
		}
		return nil

	case domain.PlanMerge:
		_, err := tx.ExecContext(ctx,
			`UPDATE transactions SET state = $1, updated_at = $2 WHERE id = $3 AND state = $4`,
			domain.TransactionStateFailure, now, plan.Target.ID, domain.TransactionStateInitial,
		)
		if err != nil {
			return fmt.Errorf("merge transaction: %w", err)
		}
		if plan.Existing.State == domain.TransactionStateInitial && d.State.IsTerminal() {
			_, err = tx.ExecContext(ctx,
				`UPDATE transactions SET state = $1, updated_at = $2 WHERE id = $3 AND state = $4`,
				d.State, now, plan.Existing.ID, domain.TransactionStateInitial,
			)
			if err != nil {
				return fmt.Errorf("merge transaction: finalize: %w", err)
			}
		}
		return nil
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getPayment(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	p, err := scanPayment(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE payment_id = $1 ORDER BY created_at, id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		p.Transactions = append(p.Transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transactions: rows: %w", err)
	}
	return p, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, payment_id, type, state, currency, fraction_digits,
			cent_amount, interaction_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.PaymentID, t.Type, t.State, t.Amount.CurrencyCode, t.Amount.FractionDigits,
		t.Amount.CentAmount, t.InteractionID, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	err := s.Scan(
		&p.ID, &p.CartID, &p.CustomerID,
		&p.AmountPlanned.CurrencyCode, &p.AmountPlanned.FractionDigits, &p.AmountPlanned.CentAmount,
		&p.PaymentInterface, &p.PaymentMethod, &p.InterfaceID,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	err := s.Scan(
		&t.ID, &t.PaymentID, &t.Type, &t.State,
		&t.Amount.CurrencyCode, &t.Amount.FractionDigits, &t.Amount.CentAmount,
		&t.InteractionID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

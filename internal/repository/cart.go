package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
)

const cartColumns = `id, version, customer_id, currency, fraction_digits,
	total_cent_amount, shipping_address, created_at, updated_at`

type addressRecord struct {
	FirstName            string `json:"firstName,omitempty"`
	LastName             string `json:"lastName,omitempty"`
	StreetName           string `json:"streetName,omitempty"`
	StreetNumber         string `json:"streetNumber,omitempty"`
	AdditionalStreetInfo string `json:"additionalStreetInfo,omitempty"`
	PostalCode           string `json:"postalCode,omitempty"`
	City                 string `json:"city,omitempty"`
	Region               string `json:"region,omitempty"`
	State                string `json:"state,omitempty"`
	Country              string `json:"country"`
}

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	var address any
	if cart.ShippingAddress != nil {
		b, err := json.Marshal(addressRecord(*cart.ShippingAddress))
		if err != nil {
			return fmt.Errorf("Create: marshal address: %w", err)
		}
		address = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO carts (
			id, version, customer_id, currency, fraction_digits,
			total_cent_amount, shipping_address, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		cart.ID, cart.Version, cart.CustomerID, cart.TotalPrice.CurrencyCode, cart.TotalPrice.FractionDigits,
		cart.TotalPrice.CentAmount, address, cart.CreatedAt, cart.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *CartRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE id = $1`, id,
	)
	c, err := scanCart(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT payment_id FROM cart_payments WHERE cart_id = $1 ORDER BY created_at, payment_id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByID: payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pid uuid.UUID
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("GetByID: scan payment id: %w", err)
		}
		c.PaymentIDs = append(c.PaymentIDs, pid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByID: rows: %w", err)
	}
	return c, nil
}

// PaymentAmount returns the amount a new payment must cover, read at the
// cart version the caller holds.
func (r *CartRepository) PaymentAmount(ctx context.Context, ref domain.CartRef) (domain.Money, error) {
	var m domain.Money
	var version int64
	err := r.db.QueryRowContext(ctx,
		`SELECT total_cent_amount, currency, fraction_digits, version FROM carts WHERE id = $1`, ref.ID,
	).Scan(&m.CentAmount, &m.CurrencyCode, &m.FractionDigits, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Money{}, fmt.Errorf("PaymentAmount: %w", domain.ErrNotFound)
		}
		return domain.Money{}, fmt.Errorf("PaymentAmount: %w", err)
	}
	if version != ref.Version {
		return domain.Money{}, fmt.Errorf("PaymentAmount: %w", domain.ErrVersionConflict)
	}
	if m.CentAmount <= 0 {
		return domain.Money{}, fmt.Errorf("PaymentAmount: %w", domain.ErrInvalidAmount)
	}
	return m, nil
}

// AddPayment attaches a payment to the cart and bumps its version. The
// write is rejected when the cart moved past ref.Version.
func (r *CartRepository) AddPayment(ctx context.Context, ref domain.CartRef, paymentID uuid.UUID) (domain.CartRef, error) {
	next := domain.CartRef{ID: ref.ID, Version: ref.Version + 1}

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE carts SET version = $1, updated_at = now() WHERE id = $2 AND version = $3`,
			next.Version, ref.ID, ref.Version,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM carts WHERE id = $1)`, ref.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrNotFound
			}
			return domain.ErrVersionConflict
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO cart_payments (cart_id, payment_id) VALUES ($1, $2)`,
			ref.ID, paymentID,
		)
		return err
	})
	if err != nil {
		return domain.CartRef{}, fmt.Errorf("AddPayment: %w", err)
	}
	return next, nil
}

func scanCart(s scanner) (*domain.Cart, error) {
	var c domain.Cart
	var address []byte
	err := s.Scan(
		&c.ID, &c.Version, &c.CustomerID, &c.TotalPrice.CurrencyCode, &c.TotalPrice.FractionDigits,
		&c.TotalPrice.CentAmount, &address, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(address) > 0 {
		var rec addressRecord
		if err := json.Unmarshal(address, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal address: %w", err)
		}
		a := domain.Address(rec)
		c.ShippingAddress = &a
	}
	return &c, nil
}

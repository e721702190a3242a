package testutil

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/psp-connector/internal/domain"
)

const OperatorKey = "ops-test-key"

// CartOption tweaks a seeded cart.
type CartOption func(*domain.Cart)

func WithCustomer(id string) CartOption {
	return func(c *domain.Cart) { c.CustomerID = &id }
}

func WithoutShipping() CartOption {
	return func(c *domain.Cart) { c.ShippingAddress = nil }
}

func WithTotal(m domain.Money) CartOption {
	return func(c *domain.Cart) { c.TotalPrice = m }
}

// NewCart builds an unsaved EUR cart with a German shipping address.
func NewCart(centAmount int64, opts ...CartOption) *domain.Cart {
	now := time.Now().UTC().Truncate(time.Microsecond)
	c := &domain.Cart{
		ID:      uuid.New(),
		Version: 1,
		ShippingAddress: &domain.Address{
			FirstName:    "Erika",
			LastName:     "Mustermann",
			StreetName:   "Heidestrasse",
			StreetNumber: "17",
			PostalCode:   "51147",
			City:         "Koeln",
			State:        "NRW",
			Country:      "DE",
		},
		TotalPrice: domain.Money{CentAmount: centAmount, CurrencyCode: "EUR", FractionDigits: 2},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func SeedCart(t *testing.T, db *sql.DB, centAmount int64, opts ...CartOption) *domain.Cart {
	t.Helper()

	c := NewCart(centAmount, opts...)

	var address any
	if c.ShippingAddress != nil {
		b, err := json.Marshal(map[string]string{
			"firstName":    c.ShippingAddress.FirstName,
			"lastName":     c.ShippingAddress.LastName,
			"streetName":   c.ShippingAddress.StreetName,
			"streetNumber": c.ShippingAddress.StreetNumber,
			"postalCode":   c.ShippingAddress.PostalCode,
			"city":         c.ShippingAddress.City,
			"state":        c.ShippingAddress.State,
			"country":      c.ShippingAddress.Country,
		})
		if err != nil {
			t.Fatalf("marshal address: %v", err)
		}
		address = string(b)
	}

	_, err := db.Exec(
		`INSERT INTO carts (id, version, customer_id, currency, fraction_digits, total_cent_amount, shipping_address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Version, c.CustomerID, c.TotalPrice.CurrencyCode, c.TotalPrice.FractionDigits,
		c.TotalPrice.CentAmount, address, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	return c
}

// SeedPayment stores a payment for cart with the given transactions and
// interface id, bypassing the orchestrator.
func SeedPayment(t *testing.T, db *sql.DB, cart *domain.Cart, interfaceID string, txs ...domain.Transaction) *domain.Payment {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	p := &domain.Payment{
		ID:               uuid.New(),
		CartID:           cart.ID,
		AmountPlanned:    cart.TotalPrice,
		PaymentInterface: domain.PaymentInterfacePayPal,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if interfaceID != "" {
		p.InterfaceID = &interfaceID
	}

	_, err := db.Exec(
		`INSERT INTO payments (id, cart_id, currency, fraction_digits, cent_amount, payment_interface, interface_id, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.CartID, p.AmountPlanned.CurrencyCode, p.AmountPlanned.FractionDigits, p.AmountPlanned.CentAmount,
		p.PaymentInterface, p.InterfaceID, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	for i, tx := range txs {
		tx.PaymentID = p.ID
		if tx.ID == uuid.Nil {
			tx.ID = uuid.New()
		}
		tx.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		tx.UpdatedAt = tx.CreatedAt
		_, err := db.Exec(
			`INSERT INTO transactions (id, payment_id, type, state, currency, fraction_digits, cent_amount, interaction_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			tx.ID, tx.PaymentID, tx.Type, tx.State, tx.Amount.CurrencyCode, tx.Amount.FractionDigits,
			tx.Amount.CentAmount, tx.InteractionID, tx.CreatedAt, tx.UpdatedAt,
		)
		if err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
		p.Transactions = append(p.Transactions, tx)
	}
	return p
}

func CountTransactions(t *testing.T, db *sql.DB, paymentID uuid.UUID, state domain.TransactionState) int {
	t.Helper()

	var count int
	err := db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM transactions WHERE payment_id = $1 AND state = $2`, paymentID, state,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for payment %s: %v", paymentID, err)
	}
	return count
}

func GetWebhookEventStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.WebhookEventStatus {
	t.Helper()

	var status domain.WebhookEventStatus
	if err := db.QueryRow(`SELECT status FROM webhook_events WHERE id = $1`, id).Scan(&status); err != nil {
		t.Fatalf("get webhook event status %s: %v", id, err)
	}
	return status
}

// OperatorKeyHash returns a bcrypt hash of OperatorKey at minimum cost.
func OperatorKeyHash(t *testing.T) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(OperatorKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash operator key: %v", err)
	}
	return string(hash)
}

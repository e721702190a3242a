package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/psp-connector/internal/auth"
	"github.com/josh-kwaku/psp-connector/internal/domain"
)

const testJWTSecret = "test-session-secret"

type fakeCartStore struct {
	carts map[uuid.UUID]*domain.Cart
}

func (f *fakeCartStore) Create(_ context.Context, cart *domain.Cart) error {
	f.carts[cart.ID] = cart
	return nil
}

func (f *fakeCartStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Cart, error) {
	c, ok := f.carts[id]
	if !ok {
		return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
	}
	return c, nil
}

func TestSessionHandler_CreateCart(t *testing.T) {
	store := &fakeCartStore{carts: map[uuid.UUID]*domain.Cart{}}
	h := NewSessionHandler(store, testJWTSecret, 30*time.Minute)

	body := `{
		"customer_id": "customer-1",
		"total_price": {"cent_amount": 3000, "currency_code": "EUR", "fraction_digits": 2},
		"shipping_address": {"first_name": "Ada", "street_name": "Hauptstr.", "street_number": "1", "postal_code": "10115", "city": "Berlin", "country": "DE"}
	}`
	rr := httptest.NewRecorder()
	h.CreateCart(rr, httptest.NewRequest(http.MethodPost, "/operations/carts", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rr.Code)
	data := dataMap(t, decodeResponse(t, rr.Body.Bytes()))
	id, err := uuid.Parse(data["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, []any{}, data["payment_ids"])

	cart, ok := store.carts[id]
	require.True(t, ok)
	assert.Equal(t, int64(1), cart.Version)
	assert.Equal(t, domain.Money{CentAmount: 3000, CurrencyCode: "EUR", FractionDigits: 2}, cart.TotalPrice)
	require.NotNil(t, cart.ShippingAddress)
	assert.Equal(t, "DE", cart.ShippingAddress.Country)
	assert.Equal(t, "Berlin", cart.ShippingAddress.City)
}

func TestSessionHandler_CreateCartValidation(t *testing.T) {
	store := &fakeCartStore{carts: map[uuid.UUID]*domain.Cart{}}
	h := NewSessionHandler(store, testJWTSecret, 30*time.Minute)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "invalid json", body: `{`, code: "INVALID_REQUEST"},
		{name: "zero total", body: `{"total_price":{"cent_amount":0,"currency_code":"EUR","fraction_digits":2}}`, code: "VALIDATION_FAILED"},
		{name: "bad country", body: `{"total_price":{"cent_amount":100,"currency_code":"EUR","fraction_digits":2},"shipping_address":{"country":"DEU"}}`, code: "VALIDATION_FAILED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.CreateCart(rr, httptest.NewRequest(http.MethodPost, "/operations/carts", strings.NewReader(tc.body)))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			resp := decodeResponse(t, rr.Body.Bytes())
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
	assert.Empty(t, store.carts)
}

func TestSessionHandler_CreateSession(t *testing.T) {
	customer := "customer-1"
	cart := &domain.Cart{
		ID:         uuid.New(),
		Version:    1,
		CustomerID: &customer,
		TotalPrice: domain.Money{CentAmount: 3000, CurrencyCode: "EUR", FractionDigits: 2},
	}
	store := &fakeCartStore{carts: map[uuid.UUID]*domain.Cart{cart.ID: cart}}
	h := NewSessionHandler(store, testJWTSecret, 30*time.Minute)

	rr := httptest.NewRecorder()
	body := fmt.Sprintf(`{"cart_id":%q}`, cart.ID)
	h.CreateSession(rr, httptest.NewRequest(http.MethodPost, "/operations/sessions", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rr.Code)
	data := dataMap(t, decodeResponse(t, rr.Body.Bytes()))
	assert.Equal(t, cart.ID.String(), data["cart_id"])

	claims, err := auth.ValidateToken(data["token"].(string), testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, claims.CartID)
	assert.Equal(t, customer, claims.CustomerID)
}

func TestSessionHandler_CreateSessionErrors(t *testing.T) {
	store := &fakeCartStore{carts: map[uuid.UUID]*domain.Cart{}}
	h := NewSessionHandler(store, testJWTSecret, 30*time.Minute)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "bad cart id", body: `{"cart_id":"cart-1"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "unknown cart", body: fmt.Sprintf(`{"cart_id":%q}`, uuid.New()), wantStatus: http.StatusNotFound, wantCode: "RESOURCE_NOT_FOUND"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.CreateSession(rr, httptest.NewRequest(http.MethodPost, "/operations/sessions", strings.NewReader(tc.body)))

			assert.Equal(t, tc.wantStatus, rr.Code)
			resp := decodeResponse(t, rr.Body.Bytes())
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
		})
	}
}

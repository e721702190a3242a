package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/auth"
	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
)

type cartStore interface {
	Create(ctx context.Context, cart *domain.Cart) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Cart, error)
}

// SessionHandler lets the commerce backend register carts and open
// checkout sessions for them.
type SessionHandler struct {
	carts      cartStore
	jwtSecret  string
	sessionTTL time.Duration
}

func NewSessionHandler(carts cartStore, jwtSecret string, sessionTTL time.Duration) *SessionHandler {
	return &SessionHandler{
		carts:      carts,
		jwtSecret:  jwtSecret,
		sessionTTL: sessionTTL,
	}
}

type addressDTO struct {
	FirstName            string `json:"first_name,omitempty"`
	LastName             string `json:"last_name,omitempty"`
	StreetName           string `json:"street_name,omitempty"`
	StreetNumber         string `json:"street_number,omitempty"`
	AdditionalStreetInfo string `json:"additional_street_info,omitempty"`
	PostalCode           string `json:"postal_code,omitempty"`
	City                 string `json:"city,omitempty"`
	Region               string `json:"region,omitempty"`
	State                string `json:"state,omitempty"`
	Country              string `json:"country"`
}

type createCartRequest struct {
	CustomerID      *string     `json:"customer_id,omitempty"`
	TotalPrice      moneyDTO    `json:"total_price"`
	ShippingAddress *addressDTO `json:"shipping_address,omitempty"`
}

func (r createCartRequest) Validate() []FieldError {
	errs := r.TotalPrice.validate("total_price")
	if r.ShippingAddress != nil && len(r.ShippingAddress.Country) != 2 {
		errs = append(errs, FieldError{Field: "shipping_address.country", Message: "must be a 2-letter ISO 3166 code"})
	}
	return errs
}

type cartDTO struct {
	ID         uuid.UUID   `json:"id"`
	Version    int64       `json:"version"`
	CustomerID *string     `json:"customer_id,omitempty"`
	TotalPrice moneyDTO    `json:"total_price"`
	PaymentIDs []uuid.UUID `json:"payment_ids"`
	CreatedAt  time.Time   `json:"created_at"`
}

func toCartDTO(c *domain.Cart) cartDTO {
	ids := c.PaymentIDs
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return cartDTO{
		ID:         c.ID,
		Version:    c.Version,
		CustomerID: c.CustomerID,
		TotalPrice: toMoneyDTO(c.TotalPrice),
		PaymentIDs: ids,
		CreatedAt:  c.CreatedAt,
	}
}

type createSessionRequest struct {
	CartID string `json:"cart_id"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	CartID    uuid.UUID `json:"cart_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *SessionHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var req createCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	now := time.Now().UTC()
	cart := &domain.Cart{
		ID:         uuid.New(),
		Version:    1,
		CustomerID: req.CustomerID,
		TotalPrice: req.TotalPrice.toDomain(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if a := req.ShippingAddress; a != nil {
		cart.ShippingAddress = &domain.Address{
			FirstName:            a.FirstName,
			LastName:             a.LastName,
			StreetName:           a.StreetName,
			StreetNumber:         a.StreetNumber,
			AdditionalStreetInfo: a.AdditionalStreetInfo,
			PostalCode:           a.PostalCode,
			City:                 a.City,
			Region:               a.Region,
			State:                a.State,
			Country:              a.Country,
		}
	}

	if err := h.carts.Create(r.Context(), cart); err != nil {
		logging.FromContext(r.Context()).Error("cart creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toCartDTO(cart))
}

// CreateSession issues a checkout session token scoped to one cart.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	cartID, err := uuid.Parse(req.CartID)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "cart_id", Message: "must be a valid UUID"}})
		return
	}

	cart, err := h.carts.GetByID(r.Context(), cartID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	customerID := ""
	if cart.CustomerID != nil {
		customerID = *cart.CustomerID
	}

	expiresAt := time.Now().UTC().Add(h.sessionTTL)
	token, err := auth.GenerateToken(cart.ID, customerID, h.jwtSecret, h.sessionTTL)
	if err != nil {
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	RespondSuccess(w, http.StatusCreated, sessionResponse{
		Token:     token,
		CartID:    cart.ID,
		ExpiresAt: expiresAt,
	})
}

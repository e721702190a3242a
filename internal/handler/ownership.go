package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/auth"
	"github.com/josh-kwaku/psp-connector/internal/domain"
)

type paymentReader interface {
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

// sessionPayment loads a payment on behalf of the checkout session. A
// payment of another cart is reported as not found.
func sessionPayment(r *http.Request, payments paymentReader, paymentID uuid.UUID) (*domain.Payment, *AppError, error) {
	cartID, ok := auth.CartIDFromContext(r.Context())
	if !ok {
		return nil, ErrMissingToken, nil
	}

	p, err := payments.GetPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrResourceNotFound, nil
		}
		return nil, nil, err
	}

	if p.CartID != cartID {
		return nil, ErrResourceNotFound, nil
	}
	return p, nil, nil
}

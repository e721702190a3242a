package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/psp"
)

const (
	paymentMethodPreference = "IMMEDIATE_PAYMENT_REQUIRED"
	userActionPayNow        = "PAY_NOW"
	shippingTypeShipping    = "SHIPPING"
)

type CreatePaymentRequest struct {
	CartID        uuid.UUID
	PaymentMethod string
}

type CreatePaymentResult struct {
	Outcome          Outcome
	PaymentReference uuid.UUID
	PSPReference     string
	ApproveURL       string
}

// CreatePayment opens a payment for the cart and the matching PSP order. The
// order's invoice id is the payment id, which is how confirm calls and
// notifications find their way back.
func (s *Service) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	log := logging.FromContext(ctx)

	if req.PaymentMethod != domain.PaymentInterfacePayPal {
		return nil, fmt.Errorf("CreatePayment: payment method %q: %w", req.PaymentMethod, domain.ErrInvalidRequest)
	}

	cart, err := s.carts.GetByID(ctx, req.CartID)
	if err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}

	amountPlanned, err := s.carts.PaymentAmount(ctx, cart.Ref())
	if err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}

	now := time.Now().UTC()
	p := &domain.Payment{
		ID:               uuid.New(),
		CartID:           cart.ID,
		CustomerID:       cart.CustomerID,
		AmountPlanned:    amountPlanned,
		PaymentInterface: domain.PaymentInterfacePayPal,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	orderReq, err := newOrderRequest(cart, p)
	if err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}

	if _, err := s.carts.AddPayment(ctx, cart.Ref(), p.ID); err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}

	method := req.PaymentMethod
	order, err := s.psp.CreateOrder(ctx, orderReq)
	if err != nil {
		logPSPError(ctx, "psp order creation failed", p.ID, err)
		_, _, updErr := s.payments.Update(context.WithoutCancel(ctx), domain.PaymentUpdate{
			PaymentID:     p.ID,
			PaymentMethod: &method,
			Transaction: &domain.TransactionDraft{
				Type:   domain.TransactionTypeAuthorization,
				State:  domain.TransactionStateFailure,
				Amount: p.AmountPlanned,
			},
		})
		if updErr != nil {
			log.Error("failed to record authorization failure", "payment_id", p.ID, "error", updErr)
		}
		s.metrics.IncPaymentOperation("create", string(OutcomeRejected))
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}

	outcome := OutcomeRejected
	state := domain.TransactionStateFailure
	if orderUsable(order.Status) {
		outcome = OutcomeAuthorized
		state = domain.TransactionStateSuccess
	}

	orderID := order.ID
	if _, _, err := s.payments.Update(ctx, domain.PaymentUpdate{
		PaymentID:     p.ID,
		InterfaceID:   &orderID,
		PaymentMethod: &method,
		Transaction: &domain.TransactionDraft{
			Type:          domain.TransactionTypeAuthorization,
			State:         state,
			Amount:        p.AmountPlanned,
			InteractionID: orderID,
		},
	}); err != nil {
		return nil, fmt.Errorf("CreatePayment: %w", err)
	}

	s.metrics.IncPaymentOperation("create", string(outcome))
	log.Info("payment created",
		"payment_id", p.ID,
		"cart_id", cart.ID,
		"psp_reference", orderID,
		"order_status", order.Status,
		"outcome", outcome,
	)

	return &CreatePaymentResult{
		Outcome:          outcome,
		PaymentReference: p.ID,
		PSPReference:     orderID,
		ApproveURL:       order.ApproveURL(),
	}, nil
}

func orderUsable(status string) bool {
	switch status {
	case psp.OrderStatusCreated, psp.OrderStatusSaved, psp.OrderStatusApproved,
		psp.OrderStatusPayerActionRequired, psp.OrderStatusCompleted:
		return true
	}
	return false
}

func newOrderRequest(cart *domain.Cart, p *domain.Payment) (psp.CreateOrderRequest, error) {
	amt, err := psp.MoneyFrom(p.AmountPlanned)
	if err != nil {
		return psp.CreateOrderRequest{}, fmt.Errorf("newOrderRequest: %w", err)
	}
	return psp.CreateOrderRequest{
		Intent: psp.IntentCapture,
		PurchaseUnits: []psp.PurchaseUnit{{
			ReferenceID: cart.ID.String(),
			InvoiceID:   p.ID.String(),
			Amount:      &amt,
			Shipping:    newShipping(cart.ShippingAddress),
		}},
		PaymentSource: &psp.PaymentSource{
			PayPal: &psp.PayPalSource{
				ExperienceContext: psp.ExperienceContext{
					PaymentMethodPreference: paymentMethodPreference,
					UserAction:              userActionPayNow,
				},
			},
		},
	}, nil
}

func newShipping(a *domain.Address) *psp.Shipping {
	if a == nil || a.Country == "" {
		return nil
	}

	adminArea1 := a.State
	if adminArea1 == "" {
		adminArea1 = a.Region
	}

	return &psp.Shipping{
		Type: shippingTypeShipping,
		Name: &psp.ShippingName{FullName: joinNonEmpty(a.FirstName, a.LastName)},
		Address: &psp.ShippingAddress{
			AddressLine1: joinNonEmpty(a.StreetName, a.StreetNumber),
			AddressLine2: a.AdditionalStreetInfo,
			AdminArea1:   adminArea1,
			AdminArea2:   a.City,
			PostalCode:   a.PostalCode,
			CountryCode:  a.Country,
		},
	}
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

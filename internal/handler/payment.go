package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/auth"
	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/service/payment"
)

type paymentService interface {
	CreatePayment(ctx context.Context, req payment.CreatePaymentRequest) (*payment.CreatePaymentResult, error)
	ConfirmPayment(ctx context.Context, req payment.ConfirmPaymentRequest) (*payment.ModificationResult, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
}

// PaymentHandler serves the checkout session endpoints.
type PaymentHandler struct {
	payments paymentService
}

func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (r createPaymentRequest) Validate() []FieldError {
	var errs []FieldError
	if r.PaymentMethod == "" {
		errs = append(errs, FieldError{Field: "payment_method", Message: "required"})
	} else if r.PaymentMethod != domain.PaymentInterfacePayPal {
		errs = append(errs, FieldError{Field: "payment_method", Message: "must be paypal"})
	}
	return errs
}

type createPaymentResponse struct {
	Outcome          string    `json:"outcome"`
	PaymentReference uuid.UUID `json:"payment_reference"`
	PSPReference     string    `json:"psp_reference"`
	ApproveURL       string    `json:"approve_url,omitempty"`
}

type confirmPaymentRequest struct {
	PaymentReference string `json:"payment_reference"`
	PSPReference     string `json:"psp_reference"`
}

func (r confirmPaymentRequest) Validate() []FieldError {
	var errs []FieldError
	if r.PaymentReference == "" {
		errs = append(errs, FieldError{Field: "payment_reference", Message: "required"})
	} else if _, err := uuid.Parse(r.PaymentReference); err != nil {
		errs = append(errs, FieldError{Field: "payment_reference", Message: "must be a valid UUID"})
	}
	if r.PSPReference == "" {
		errs = append(errs, FieldError{Field: "psp_reference", Message: "required"})
	}
	return errs
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	cartID, ok := auth.CartIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	res, err := h.payments.CreatePayment(r.Context(), payment.CreatePaymentRequest{
		CartID:        cartID,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		log.Warn("payment creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/operations/payments/%s", res.PaymentReference))
	RespondSuccess(w, http.StatusCreated, createPaymentResponse{
		Outcome:          string(res.Outcome),
		PaymentReference: res.PaymentReference,
		PSPReference:     res.PSPReference,
		ApproveURL:       res.ApproveURL,
	})
}

func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req confirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}
	paymentID := uuid.MustParse(req.PaymentReference)

	if _, appErr, err := sessionPayment(r, h.payments, paymentID); err != nil {
		RespondDomainError(w, err)
		return
	} else if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	res, err := h.payments.ConfirmPayment(r.Context(), payment.ConfirmPaymentRequest{
		PaymentReference: paymentID,
		PSPReference:     req.PSPReference,
	})
	if err != nil {
		log.Warn("payment confirmation failed", "error", err, "payment_id", paymentID)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, modificationDTO{
		Outcome:          string(res.Outcome),
		PaymentReference: res.PaymentReference,
		PSPReference:     res.PSPReference,
	})
}

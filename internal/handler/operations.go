package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/service/payment"
)

type operationsService interface {
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ModifyPayment(ctx context.Context, paymentID uuid.UUID, a payment.Action) (*payment.ModificationResult, error)
	Config() payment.Settings
	SupportedComponents() []payment.Component
}

// OperationsHandler serves the operator endpoints: connector configuration
// and payment modifications.
type OperationsHandler struct {
	payments operationsService
}

func NewOperationsHandler(payments operationsService) *OperationsHandler {
	return &OperationsHandler{payments: payments}
}

type configResponse struct {
	ClientID    string `json:"client_id"`
	Environment string `json:"environment"`
}

type componentsResponse struct {
	Components []payment.Component `json:"components"`
}

type modifyPaymentRequest struct {
	Actions []actionRequest `json:"actions"`
}

type actionRequest struct {
	Action string    `json:"action"`
	Amount *moneyDTO `json:"amount,omitempty"`
}

// Validate accepts exactly one action per request.
func (r modifyPaymentRequest) Validate() []FieldError {
	var errs []FieldError
	if len(r.Actions) != 1 {
		return append(errs, FieldError{Field: "actions", Message: "exactly one action is required"})
	}
	a := r.Actions[0]
	if a.Action == "" {
		errs = append(errs, FieldError{Field: "actions[0].action", Message: "required"})
	}
	if a.Amount != nil {
		errs = append(errs, a.Amount.validate("actions[0].amount")...)
	}
	return errs
}

func (h *OperationsHandler) Config(w http.ResponseWriter, r *http.Request) {
	s := h.payments.Config()
	RespondSuccess(w, http.StatusOK, configResponse{
		ClientID:    s.ClientID,
		Environment: string(s.Environment),
	})
}

func (h *OperationsHandler) Components(w http.ResponseWriter, r *http.Request) {
	RespondSuccess(w, http.StatusOK, componentsResponse{Components: h.payments.SupportedComponents()})
}

func (h *OperationsHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	p, err := h.payments.GetPayment(r.Context(), paymentID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("payment lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toPaymentDTO(p))
}

func (h *OperationsHandler) ModifyPayment(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		RespondAppError(w, ErrResourceNotFound, nil)
		return
	}

	var req modifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	var amt *domain.Money
	if a := req.Actions[0].Amount; a != nil {
		m := a.toDomain()
		amt = &m
	}

	action, err := payment.ParseAction(req.Actions[0].Action, amt)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	res, err := h.payments.ModifyPayment(r.Context(), paymentID, action)
	if err != nil {
		log.Warn("payment modification failed",
			"error", err,
			"payment_id", paymentID,
			"action", action.Name(),
		)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, modificationDTO{
		Outcome:          string(res.Outcome),
		PaymentReference: res.PaymentReference,
		PSPReference:     res.PSPReference,
	})
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/psp"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// pspErrorDetails is what callers may learn about a PSP failure. The PSP's
// response body is never forwarded.
type pspErrorDetails struct {
	PSPStatus     int    `json:"psp_status"`
	PSPErrorName  string `json:"psp_error_name,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var appErr *AppError
	var details any

	switch {
	case errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrCurrencyMismatch):
		appErr = ErrCurrencyMismatch
	case errors.Is(err, domain.ErrVersionConflict):
		appErr = ErrVersionConflict
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidAmountFormat):
		appErr = ErrInvalidAmountFormat
	case errors.Is(err, domain.ErrInterfaceIDMismatch):
		appErr = ErrInterfaceIDMismatch
	case errors.Is(err, domain.ErrUnsupportedOperation):
		appErr = ErrUnsupportedOperation
	case errors.Is(err, domain.ErrNoCaptureToRefund):
		appErr = ErrNoCaptureToRefund
	case errors.Is(err, domain.ErrTransactionTerminal):
		appErr = ErrTransactionTerminal
	case errors.Is(err, domain.ErrAuthenticationFailed):
		appErr = ErrPSPAuthFailed
		details = pspDetails(err)
	case errors.Is(err, domain.ErrPSPRequestFailed):
		appErr = ErrPSPRequestFailed
		details = pspDetails(err)
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, domain.ErrMalformedPSPResponse):
		appErr = ErrPSPUnavailable
	case errors.Is(err, domain.ErrInvalidRequest):
		appErr = ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, details)
}

func pspDetails(err error) any {
	var apiErr *psp.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	return pspErrorDetails{
		PSPStatus:     apiErr.HTTPStatus,
		PSPErrorName:  apiErr.Name,
		CorrelationID: apiErr.CorrelationID,
	}
}

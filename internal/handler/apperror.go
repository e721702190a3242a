package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidAPIKey    = &AppError{http.StatusUnauthorized, "INVALID_API_KEY", "Operations API key is invalid"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrCurrencyMismatch      = &AppError{http.StatusUnprocessableEntity, "CURRENCY_MISMATCH", "Currency mismatch"}
	ErrVersionConflict       = &AppError{http.StatusConflict, "VERSION_CONFLICT", "Resource was modified concurrently, please retry"}
	ErrMissingIdempotencyKey = &AppError{http.StatusBadRequest, "MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required"}
	ErrIdempotencyConflict   = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrInvalidAmount         = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidAmountFormat   = &AppError{http.StatusBadRequest, "INVALID_AMOUNT_FORMAT", "Amount cannot be represented in the currency"}

	ErrInterfaceIDMismatch  = &AppError{http.StatusBadRequest, "INTERFACE_ID_MISMATCH", "PSP reference does not match the payment"}
	ErrUnsupportedOperation = &AppError{http.StatusBadRequest, "UNSUPPORTED_OPERATION", "Operation is not supported for this payment"}
	ErrNoCaptureToRefund    = &AppError{http.StatusUnprocessableEntity, "NO_CAPTURE_TO_REFUND", "Payment has no successful charge to refund"}
	ErrTransactionTerminal  = &AppError{http.StatusConflict, "TRANSACTION_TERMINAL", "Transaction is already final"}
	ErrPSPRequestFailed     = &AppError{http.StatusBadGateway, "PSP_REQUEST_FAILED", "The payment provider rejected the request"}
	ErrPSPAuthFailed        = &AppError{http.StatusBadGateway, "PSP_AUTHENTICATION_FAILED", "Could not authenticate with the payment provider"}
	ErrPSPUnavailable       = &AppError{http.StatusServiceUnavailable, "PSP_UNAVAILABLE", "The payment provider is unavailable"}
	ErrInvalidSignature     = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}
)

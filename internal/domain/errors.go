package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrVersionConflict  = errors.New("optimistic lock conflict")

	ErrInvalidAmountFormat  = errors.New("invalid amount format")
	ErrAuthenticationFailed = errors.New("psp authentication failed")
	ErrMalformedPSPResponse = errors.New("malformed psp response")
	ErrPSPRequestFailed     = errors.New("psp request failed")
	ErrUpstreamUnavailable  = errors.New("psp unavailable")
	ErrInterfaceIDMismatch  = errors.New("interface id mismatch")
	ErrUnsupportedOperation = errors.New("operation not supported")
	ErrNoCaptureToRefund    = errors.New("no successful charge to refund")
	ErrUnsupportedEventType = errors.New("unsupported event type")
	ErrTransactionTerminal  = errors.New("transaction already in terminal state")
)

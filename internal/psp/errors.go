package psp

import (
	"fmt"

	"github.com/josh-kwaku/psp-connector/internal/domain"
)

// APIError is a non-2xx answer from the PSP. Message is the PSP's short
// summary; the raw body is never kept. CorrelationID is safe to show to
// callers.
type APIError struct {
	Operation     string
	HTTPStatus    int
	Name          string
	Message       string
	CorrelationID string

	kind error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("psp %s: status %d: %s: %s (correlation id %q)",
		e.Operation, e.HTTPStatus, e.Name, e.Message, e.CorrelationID)
}

// Unwrap returns domain.ErrAuthenticationFailed for token failures and
// domain.ErrPSPRequestFailed otherwise.
func (e *APIError) Unwrap() error {
	if e.kind == nil {
		return domain.ErrPSPRequestFailed
	}
	return e.kind
}

type errorBody struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	DebugID          string `json:"debug_id"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

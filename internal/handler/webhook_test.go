package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/psp"
)

const testWebhookID = "WH-TEST-1"

type mockWebhookRepo struct {
	created *domain.WebhookEvent
	err     error
}

func (m *mockWebhookRepo) Create(_ context.Context, event *domain.WebhookEvent) error {
	m.created = event
	return m.err
}

type mockVerifier struct {
	ok  bool
	err error
	req *psp.VerifyWebhookSignatureRequest
}

func (m *mockVerifier) VerifyWebhookSignature(_ context.Context, req psp.VerifyWebhookSignatureRequest) (bool, error) {
	m.req = &req
	return m.ok, m.err
}

func validWebhookBody() string {
	b, _ := json.Marshal(map[string]any{
		"id":            "WH-" + uuid.NewString(),
		"event_type":    "PAYMENT.CAPTURE.COMPLETED",
		"resource_type": "capture",
		"resource": map[string]any{
			"id":         "CAP-1",
			"invoice_id": uuid.NewString(),
			"status":     "COMPLETED",
			"amount":     map[string]string{"currency_code": "EUR", "value": "30.00"},
		},
	})
	return string(b)
}

func setTransmissionHeaders(req *http.Request) {
	req.Header.Set("Paypal-Auth-Algo", "SHA256withRSA")
	req.Header.Set("Paypal-Cert-Url", "https://api.sandbox.paypal.com/v1/notifications/certs/CERT-1")
	req.Header.Set("Paypal-Transmission-Id", "TX-1")
	req.Header.Set("Paypal-Transmission-Sig", "signature")
	req.Header.Set("Paypal-Transmission-Time", "2026-02-20T00:00:00Z")
}

func TestReceivePSPWebhook(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		withHeaders bool
		verifier    *mockVerifier
		repoErr     error
		wantStatus  int
		wantCode    string
		wantData    string
	}{
		{
			name:        "valid signed webhook",
			body:        validWebhookBody(),
			withHeaders: true,
			verifier:    &mockVerifier{ok: true},
			wantStatus:  http.StatusOK,
			wantData:    "received",
		},
		{
			name:        "missing transmission headers",
			body:        validWebhookBody(),
			withHeaders: false,
			verifier:    &mockVerifier{ok: true},
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "INVALID_SIGNATURE",
		},
		{
			name:        "signature rejected by psp",
			body:        validWebhookBody(),
			withHeaders: true,
			verifier:    &mockVerifier{ok: false},
			wantStatus:  http.StatusUnauthorized,
			wantCode:    "INVALID_SIGNATURE",
		},
		{
			name:        "psp unreachable during verification",
			body:        validWebhookBody(),
			withHeaders: true,
			verifier:    &mockVerifier{err: fmt.Errorf("VerifyWebhookSignature: %w", domain.ErrUpstreamUnavailable)},
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    "PSP_UNAVAILABLE",
		},
		{
			name:        "empty body",
			body:        "",
			withHeaders: true,
			verifier:    &mockVerifier{ok: true},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_REQUEST",
		},
		{
			name:        "invalid JSON body",
			body:        "not-json",
			withHeaders: true,
			verifier:    &mockVerifier{ok: true},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_REQUEST",
		},
		{
			name:        "missing event id",
			body:        `{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{}}`,
			withHeaders: true,
			verifier:    &mockVerifier{ok: true},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_FAILED",
		},
		{
			name:        "duplicate webhook returns OK",
			body:        validWebhookBody(),
			withHeaders: true,
			verifier:    &mockVerifier{ok: true},
			repoErr:     &pq.Error{Code: "23505"},
			wantStatus:  http.StatusOK,
			wantData:    "already_received",
		},
		{
			name:        "repository error returns 500",
			body:        validWebhookBody(),
			withHeaders: true,
			verifier:    &mockVerifier{ok: true},
			repoErr:     fmt.Errorf("connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "INTERNAL_ERROR",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockWebhookRepo{err: tc.repoErr}
			h := NewWebhookHandler(repo, tc.verifier, testWebhookID)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/psp", strings.NewReader(tc.body))
			if tc.withHeaders {
				setTransmissionHeaders(req)
			}
			rr := httptest.NewRecorder()

			h.ReceivePSPWebhook(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)

			var resp APIResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

			if tc.wantCode == "" {
				assert.True(t, resp.Success)
				assert.Equal(t, map[string]any{"status": tc.wantData}, resp.Data)
			} else {
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestReceivePSPWebhook_StoresVerifiedEvent(t *testing.T) {
	repo := &mockWebhookRepo{}
	verifier := &mockVerifier{ok: true}
	h := NewWebhookHandler(repo, verifier, testWebhookID)

	body := validWebhookBody()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/psp", strings.NewReader(body))
	setTransmissionHeaders(req)
	rr := httptest.NewRecorder()

	h.ReceivePSPWebhook(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	require.NotNil(t, verifier.req)
	assert.Equal(t, testWebhookID, verifier.req.WebhookID)
	assert.Equal(t, "TX-1", verifier.req.TransmissionID)
	assert.Equal(t, "SHA256withRSA", verifier.req.AuthAlgo)
	assert.JSONEq(t, body, string(verifier.req.WebhookEvent))

	var sent struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &sent))

	require.NotNil(t, repo.created)
	assert.Equal(t, domain.WebhookEventStatusPending, repo.created.Status)
	assert.Equal(t, "PAYMENT.CAPTURE.COMPLETED", repo.created.EventType)
	assert.Equal(t, sent.ID, repo.created.PSPEventID)
	assert.NotEqual(t, uuid.Nil, repo.created.ID)
	assert.Equal(t, json.RawMessage(body), repo.created.Payload)
}

package psp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/psp"
	"github.com/josh-kwaku/psp-connector/internal/psp/psptest"
)

const (
	testClientID     = "client-id"
	testClientSecret = "client-secret"
)

func newTestClient(t *testing.T) (*psp.Client, *psptest.Server) {
	t.Helper()
	srv, baseURL := psptest.NewTestServer(t, testClientID, testClientSecret)
	client := psp.NewClient(psp.Config{
		BaseURL:      baseURL,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Timeout:      5 * time.Second,
	})
	return client, srv
}

func orderRequest(invoiceID, value string) psp.CreateOrderRequest {
	return psp.CreateOrderRequest{
		Intent: psp.IntentCapture,
		PurchaseUnits: []psp.PurchaseUnit{{
			InvoiceID: invoiceID,
			Amount:    &psp.Money{CurrencyCode: "EUR", Value: value},
		}},
	}
}

func createAndCapture(t *testing.T, client *psp.Client, value string) *psp.Capture {
	t.Helper()
	ctx := context.Background()
	order, err := client.CreateOrder(ctx, orderRequest("inv-1", value))
	require.NoError(t, err)
	capture, err := client.CaptureOrder(ctx, order.ID)
	require.NoError(t, err)
	return capture
}

func TestBaseURLFor(t *testing.T) {
	tests := []struct {
		env     psp.Environment
		want    string
		wantErr bool
	}{
		{env: psp.EnvironmentSandbox, want: psp.SandboxBaseURL},
		{env: psp.EnvironmentLive, want: psp.LiveBaseURL},
		{env: "staging", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(string(tc.env), func(t *testing.T) {
			got, err := psp.BaseURLFor(tc.env)
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	client, _ := newTestClient(t)

	tok, err := client.Authenticate(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
}

func TestAuthenticate_InvalidCredentials(t *testing.T) {
	_, baseURL := psptest.NewTestServer(t, testClientID, testClientSecret)
	client := psp.NewClient(psp.Config{BaseURL: baseURL, ClientID: testClientID, ClientSecret: "wrong"})

	_, err := client.Authenticate(context.Background())
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.False(t, errors.Is(err, domain.ErrPSPRequestFailed))

	var apiErr *psp.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)
	assert.Equal(t, "invalid_client", apiErr.Name)
	assert.Equal(t, "Client Authentication failed", apiErr.Message)
	assert.NotEmpty(t, apiErr.CorrelationID)
}

func TestCreateOrder_Headers(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	first, err := client.CreateOrder(ctx, orderRequest("inv-1", "10.99"))
	require.NoError(t, err)
	second, err := client.CreateOrder(ctx, orderRequest("inv-2", "10.99"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, psp.OrderStatusCreated, first.Status)

	reqs := srv.RequestsFor("create_order")
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")
		assert.Equal(t, psp.DefaultPartnerAttributionID, r.Header.Get("PayPal-Partner-Attribution-Id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("PayPal-Request-Id"))
	}
	assert.NotEqual(t, reqs[0].Header.Get("PayPal-Request-Id"), reqs[1].Header.Get("PayPal-Request-Id"))

	var body psp.CreateOrderRequest
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, "inv-1", body.PurchaseUnits[0].InvoiceID)
	assert.Equal(t, "10.99", body.PurchaseUnits[0].Amount.Value)

	// one token per call, no caching
	assert.Len(t, srv.RequestsFor("authenticate"), 2)
}

func TestCreateOrder_ReusedRequestIDReturnsStaleOrder(t *testing.T) {
	srv, baseURL := psptest.NewTestServer(t, testClientID, testClientSecret)
	client := psp.NewClient(psp.Config{BaseURL: baseURL, ClientID: testClientID, ClientSecret: testClientSecret},
		psp.WithRequestIDFunc(func() string { return "fixed-key" }))
	ctx := context.Background()

	first, err := client.CreateOrder(ctx, orderRequest("inv-1", "10.00"))
	require.NoError(t, err)
	second, err := client.CreateOrder(ctx, orderRequest("inv-2", "99.00"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, srv.RequestsFor("create_order"), 2)
}

func TestGetOrder(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	created, err := client.CreateOrder(ctx, orderRequest("inv-1", "25.00"))
	require.NoError(t, err)

	got, err := client.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	require.Len(t, got.PurchaseUnits, 1)
	assert.Equal(t, "inv-1", got.PurchaseUnits[0].InvoiceID)

	// reads do not carry an idempotency key
	reqs := srv.RequestsFor("get_order")
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Header.Get("PayPal-Request-Id"))

	_, err = client.GetOrder(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrPSPRequestFailed)
}

func TestCaptureOrder(t *testing.T) {
	client, srv := newTestClient(t)

	capture := createAndCapture(t, client, "300.35")
	assert.NotEmpty(t, capture.CaptureID)
	assert.Equal(t, psp.CaptureStatusCompleted, capture.CaptureStatus)
	assert.Equal(t, psp.OrderStatusCompleted, capture.OrderStatus)
	assert.True(t, capture.Completed())
	require.NotNil(t, capture.Amount)
	assert.Equal(t, "300.35", capture.Amount.Value)
	assert.Equal(t, psp.OrderStatusCompleted, srv.OrderStatus(capture.OrderID))
}

func TestCaptureOrder_MissingCaptureArray(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	order, err := client.CreateOrder(ctx, orderRequest("inv-1", "10.00"))
	require.NoError(t, err)

	srv.OmitNextCaptureDetails()
	capture, err := client.CaptureOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrMalformedPSPResponse)
	assert.Nil(t, capture)
}

func TestCaptureOrder_PSPError(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	order, err := client.CreateOrder(ctx, orderRequest("inv-1", "10.00"))
	require.NoError(t, err)

	srv.FailNext("capture_order", http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "INSTRUMENT_DECLINED")
	_, err = client.CaptureOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrPSPRequestFailed)

	var apiErr *psp.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatus)
	assert.Equal(t, "UNPROCESSABLE_ENTITY", apiErr.Name)
	assert.Equal(t, "capture_order", apiErr.Operation)
	assert.NotEmpty(t, apiErr.CorrelationID)
}

func TestCaptureOrder_EmptyID(t *testing.T) {
	client, srv := newTestClient(t)

	_, err := client.CaptureOrder(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Empty(t, srv.Requests())
}

func TestRefundPartial(t *testing.T) {
	client, srv := newTestClient(t)
	capture := createAndCapture(t, client, "30.00")

	refund, err := client.RefundPartial(context.Background(), capture.CaptureID,
		domain.Money{CentAmount: 1000, CurrencyCode: "EUR", FractionDigits: 2})
	require.NoError(t, err)
	assert.Equal(t, psp.RefundStatusCompleted, refund.Status)
	require.NotNil(t, refund.Amount)
	assert.Equal(t, "10.00", refund.Amount.Value)
	assert.True(t, refund.Accepted())

	created := srv.RequestsFor("refund_capture")
	require.Len(t, created, 1)
	var body psp.RefundRequest
	require.NoError(t, json.Unmarshal(created[0].Body, &body))
	require.NotNil(t, body.Amount)
	assert.Equal(t, "10.00", body.Amount.Value)
	assert.NotEmpty(t, created[0].Header.Get("PayPal-Request-Id"))

	// creation is followed by a read of the refund
	assert.Len(t, srv.RequestsFor("get_refund"), 1)
	assert.Equal(t, "10.00", srv.RefundedTotal(capture.CaptureID))
}

func TestRefundFull(t *testing.T) {
	client, srv := newTestClient(t)
	capture := createAndCapture(t, client, "30.00")

	refund, err := client.RefundFull(context.Background(), capture.CaptureID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", refund.Amount.Value)
	assert.Equal(t, "30.00", srv.RefundedTotal(capture.CaptureID))

	created := srv.RequestsFor("refund_capture")
	require.Len(t, created, 1)
	assert.JSONEq(t, `{}`, string(created[0].Body))
}

func TestRefund_Errors(t *testing.T) {
	client, srv := newTestClient(t)
	capture := createAndCapture(t, client, "30.00")
	ctx := context.Background()

	_, err := client.RefundPartial(ctx, capture.CaptureID, domain.Money{CentAmount: 5000, CurrencyCode: "EUR", FractionDigits: 2})
	require.ErrorIs(t, err, domain.ErrPSPRequestFailed)

	_, err = client.RefundPartial(ctx, capture.CaptureID, domain.Money{CentAmount: 0, CurrencyCode: "EUR", FractionDigits: 2})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = client.RefundFull(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	srv.FailNext("get_refund", http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred.")
	_, err = client.RefundFull(ctx, capture.CaptureID)
	require.ErrorIs(t, err, domain.ErrPSPRequestFailed)
}

func TestVerifyWebhookSignature(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	req := psp.VerifyWebhookSignatureRequest{
		AuthAlgo:         "SHA256withRSA",
		CertURL:          "https://api.sandbox.paypal.com/v1/notifications/certs/CERT",
		TransmissionID:   "tx-1",
		TransmissionSig:  "sig",
		TransmissionTime: "2026-03-01T12:00:00Z",
		WebhookID:        "WH-1",
		WebhookEvent:     json.RawMessage(`{"id":"WH-EVT-1"}`),
	}

	ok, err := client.VerifyWebhookSignature(ctx, req)
	require.NoError(t, err)
	assert.True(t, ok)

	srv.SetVerificationStatus("FAILURE")
	ok, err = client.VerifyWebhookSignature(ctx, req)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHealthCheck(t *testing.T) {
	client, srv := newTestClient(t)
	require.NoError(t, client.HealthCheck(context.Background()))

	srv.FailNext("health_check", http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service unavailable.")
	require.ErrorIs(t, client.HealthCheck(context.Background()), domain.ErrPSPRequestFailed)
}

func TestTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	baseURL := ts.URL
	ts.Close()

	client := psp.NewClient(psp.Config{BaseURL: baseURL, ClientID: testClientID, ClientSecret: testClientSecret})
	_, err := client.CreateOrder(context.Background(), orderRequest("inv-1", "1.00"))
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestUndecodableResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer"}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	client := psp.NewClient(psp.Config{BaseURL: ts.URL, ClientID: testClientID, ClientSecret: testClientSecret})
	_, err := client.CreateOrder(context.Background(), orderRequest("inv-1", "1.00"))
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestErrorCorrelationIDFromHeader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer"}`))
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Paypal-Debug-Id", "hdr-debug-1")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`not json`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	client := psp.NewClient(psp.Config{BaseURL: ts.URL, ClientID: testClientID, ClientSecret: testClientSecret})
	_, err := client.CreateOrder(context.Background(), orderRequest("inv-1", "1.00"))

	var apiErr *psp.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
	assert.Equal(t, "hdr-debug-1", apiErr.CorrelationID)
	assert.NotContains(t, apiErr.Error(), "not json")
}

// Package psptest is an in-memory stand-in for the PSP REST API. It backs
// the client and service tests and the mock-psp binary.
package psptest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/psp-connector/internal/psp"
)

type RecordedRequest struct {
	Op     string
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

type failure struct {
	status  int
	name    string
	message string
}

type order struct {
	id        string
	status    string
	invoiceID string
	amount    psp.Money
	captureID string
}

type capture struct {
	id        string
	orderID   string
	invoiceID string
	status    string
	currency  string
	amount    decimal.Decimal
	places    int32
	refunded  decimal.Decimal
}

type refund struct {
	id        string
	captureID string
	invoiceID string
	status    string
	amount    psp.Money
}

// Server is safe for concurrent use.
type Server struct {
	ClientID     string
	ClientSecret string
	// WebhookURL, when set, receives a notification after every capture
	// and refund.
	WebhookURL string

	mu            sync.Mutex
	seq           int
	tokens        map[string]bool
	orders        map[string]*order
	captures      map[string]*capture
	refunds       map[string]*refund
	replays       map[string][]byte
	failures      map[string][]failure
	requests      []RecordedRequest
	captureStatus string
	refundStatus  string
	verifyStatus  string
	omitCaptures  bool
}

func New(clientID, clientSecret string) *Server {
	return &Server{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		tokens:        make(map[string]bool),
		orders:        make(map[string]*order),
		captures:      make(map[string]*capture),
		refunds:       make(map[string]*refund),
		replays:       make(map[string][]byte),
		failures:      make(map[string][]failure),
		captureStatus: psp.CaptureStatusCompleted,
		refundStatus:  psp.RefundStatusCompleted,
		verifyStatus:  psp.VerificationStatusSuccess,
	}
}

type cleaner interface {
	Cleanup(func())
}

// NewTestServer starts the fake on a loopback listener and returns it with
// its base URL.
func NewTestServer(t cleaner, clientID, clientSecret string) (*Server, string) {
	s := New(clientID, clientSecret)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts.URL
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", s.handleToken)
	mux.HandleFunc("POST /v2/checkout/orders", s.authed("create_order", s.handleCreateOrder))
	mux.HandleFunc("GET /v2/checkout/orders/{id}", s.authed("get_order", s.handleGetOrder))
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", s.authed("capture_order", s.handleCapture))
	mux.HandleFunc("POST /v2/payments/captures/{id}/refund", s.authed("refund_capture", s.handleRefund))
	mux.HandleFunc("GET /v2/payments/refunds/{id}", s.authed("get_refund", s.handleGetRefund))
	mux.HandleFunc("POST /v1/notifications/verify-webhook-signature", s.authed("verify_webhook_signature", s.handleVerify))
	mux.HandleFunc("GET /v1/notifications/webhooks-event-types", s.authed("health_check", s.handleEventTypes))
	return mux
}

// FailNext makes the next call of op answer with the given PSP error.
func (s *Server) FailNext(op string, status int, name, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], failure{status: status, name: name, message: message})
}

func (s *Server) SetCaptureStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureStatus = status
}

func (s *Server) SetRefundStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refundStatus = status
}

func (s *Server) SetVerificationStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifyStatus = status
}

// OmitNextCaptureDetails strips payments.captures from the next capture
// response.
func (s *Server) OmitNextCaptureDetails() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitCaptures = true
}

func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) RequestsFor(op string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range s.Requests() {
		if r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

// RefundedTotal reports how much of a capture has been refunded, as a
// decimal string.
func (s *Server) RefundedTotal(captureID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.captures[captureID]
	if !ok {
		return ""
	}
	return c.refunded.StringFixed(c.places)
}

// OrderStatus returns the stored status of an order, or "" if unknown.
func (s *Server) OrderStatus(orderID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[orderID]; ok {
		return o.status
	}
	return ""
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%06d", prefix, s.seq)
}

func (s *Server) record(op string, r *http.Request) []byte {
	body, _ := io.ReadAll(r.Body)
	s.requests = append(s.requests, RecordedRequest{
		Op:     op,
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	return body
}

func (s *Server) popFailure(op string) (failure, bool) {
	q := s.failures[op]
	if len(q) == 0 {
		return failure{}, false
	}
	s.failures[op] = q[1:]
	return q[0], true
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("authenticate", r)

	if f, ok := s.popFailure("authenticate"); ok {
		s.writeTokenError(w, f.status, f.name, f.message)
		return
	}

	id, secret, ok := r.BasicAuth()
	if !ok || id != s.ClientID || secret != s.ClientSecret {
		s.writeTokenError(w, http.StatusUnauthorized, "invalid_client", "Client Authentication failed")
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		s.writeTokenError(w, http.StatusBadRequest, "unsupported_grant_type", "Grant type is not supported")
		return
	}

	tok := s.nextID("A21AA")
	s.tokens[tok] = true
	writeJSON(w, http.StatusOK, psp.Token{AccessToken: tok, TokenType: "Bearer", ExpiresIn: 32400})
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, body []byte)

func (s *Server) authed(op string, next handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		body := s.record(op, r)

		tok, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || !s.tokens[tok] {
			s.writeError(w, http.StatusUnauthorized, "AUTHENTICATION_FAILURE", "Authentication failed due to invalid authentication credentials or a missing Authorization header.")
			return
		}
		if f, ok := s.popFailure(op); ok {
			s.writeError(w, f.status, f.name, f.message)
			return
		}

		if key := r.Header.Get("PayPal-Request-Id"); key != "" && r.Method == http.MethodPost {
			if cached, ok := s.replays[op+":"+key]; ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(cached)
				return
			}
			rec := httptest.NewRecorder()
			next(rec, r, body)
			if rec.Code >= 200 && rec.Code < 300 {
				s.replays[op+":"+key] = rec.Body.Bytes()
			}
			for k, v := range rec.Header() {
				w.Header()[k] = v
			}
			w.WriteHeader(rec.Code)
			_, _ = w.Write(rec.Body.Bytes())
			return
		}

		next(w, r, body)
	}
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, body []byte) {
	var req psp.CreateOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request is not well-formed.")
		return
	}
	if req.Intent != psp.IntentCapture || len(req.PurchaseUnits) == 0 || req.PurchaseUnits[0].Amount == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "The requested action could not be performed.")
		return
	}
	if _, err := decimal.NewFromString(req.PurchaseUnits[0].Amount.Value); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid amount value.")
		return
	}

	status := psp.OrderStatusCreated
	if req.PaymentSource != nil {
		status = psp.OrderStatusPayerActionRequired
	}
	o := &order{
		id:        s.nextID("ORDER"),
		status:    status,
		invoiceID: req.PurchaseUnits[0].InvoiceID,
		amount:    *req.PurchaseUnits[0].Amount,
	}
	s.orders[o.id] = o

	writeJSON(w, http.StatusCreated, psp.Order{
		ID:     o.id,
		Status: o.status,
		Links: []psp.Link{
			{Href: "https://www.sandbox.paypal.com/checkoutnow?token=" + o.id, Rel: "payer-action", Method: "GET"},
		},
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, _ []byte) {
	o, ok := s.orders[r.PathValue("id")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "The specified resource does not exist.")
		return
	}
	writeJSON(w, http.StatusOK, s.orderView(o, true))
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request, _ []byte) {
	o, ok := s.orders[r.PathValue("id")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "The specified resource does not exist.")
		return
	}
	if o.status == psp.OrderStatusCompleted {
		s.writeError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "Order already captured.")
		return
	}
	if o.status == psp.OrderStatusVoided {
		s.writeError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "Order is voided.")
		return
	}

	amt, _ := decimal.NewFromString(o.amount.Value)
	c := &capture{
		id:        s.nextID("CAP"),
		orderID:   o.id,
		invoiceID: o.invoiceID,
		status:    s.captureStatus,
		currency:  o.amount.CurrencyCode,
		amount:    amt,
		places:    places(o.amount.Value),
		refunded:  decimal.Zero,
	}
	s.captures[c.id] = c
	o.captureID = c.id
	o.status = psp.OrderStatusCompleted

	view := s.orderView(o, !s.omitCaptures)
	s.omitCaptures = false
	writeJSON(w, http.StatusCreated, view)

	if c.status == psp.CaptureStatusCompleted {
		s.notify("PAYMENT.CAPTURE.COMPLETED", "capture", c.id, c.invoiceID, c.status, o.amount)
	} else if c.status == psp.CaptureStatusDeclined {
		s.notify("PAYMENT.CAPTURE.DECLINED", "capture", c.id, c.invoiceID, c.status, o.amount)
	}
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request, body []byte) {
	c, ok := s.captures[r.PathValue("id")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "The specified resource does not exist.")
		return
	}
	if c.status != psp.CaptureStatusCompleted && c.status != "PARTIALLY_REFUNDED" {
		s.writeError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "Capture cannot be refunded.")
		return
	}

	var req psp.RefundRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request is not well-formed.")
			return
		}
	}

	remaining := c.amount.Sub(c.refunded)
	amt := remaining
	if req.Amount != nil {
		if req.Amount.CurrencyCode != c.currency {
			s.writeError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "Refund currency must match capture currency.")
			return
		}
		d, err := decimal.NewFromString(req.Amount.Value)
		if err != nil || !d.IsPositive() {
			s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid amount value.")
			return
		}
		amt = d
	}
	if !amt.IsPositive() || amt.GreaterThan(remaining) {
		s.writeError(w, http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "The refund amount must be less than or equal to the capture amount that has not yet been refunded.")
		return
	}

	ref := &refund{
		id:        s.nextID("REF"),
		captureID: c.id,
		invoiceID: c.invoiceID,
		status:    s.refundStatus,
		amount:    psp.Money{CurrencyCode: c.currency, Value: amt.StringFixed(c.places)},
	}
	s.refunds[ref.id] = ref

	if ref.status == psp.RefundStatusCompleted || ref.status == psp.RefundStatusPending {
		c.refunded = c.refunded.Add(amt)
		if c.refunded.Equal(c.amount) {
			c.status = "REFUNDED"
		} else {
			c.status = "PARTIALLY_REFUNDED"
		}
	}

	// Creation answers minimally; callers read the refund back.
	writeJSON(w, http.StatusCreated, psp.Refund{ID: ref.id, Status: ref.status})

	if ref.status == psp.RefundStatusCompleted {
		s.notify("PAYMENT.CAPTURE.REFUNDED", "refund", ref.id, ref.invoiceID, ref.status, ref.amount)
	}
}

func (s *Server) handleGetRefund(w http.ResponseWriter, r *http.Request, _ []byte) {
	ref, ok := s.refunds[r.PathValue("id")]
	if !ok {
		s.writeError(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "The specified resource does not exist.")
		return
	}
	m := ref.amount
	writeJSON(w, http.StatusOK, psp.Refund{ID: ref.id, Status: ref.status, Amount: &m, InvoiceID: ref.invoiceID})
}

func (s *Server) handleVerify(w http.ResponseWriter, _ *http.Request, body []byte) {
	var req psp.VerifyWebhookSignatureRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request is not well-formed.")
		return
	}
	status := s.verifyStatus
	if req.TransmissionSig == "" || req.WebhookID == "" {
		status = "FAILURE"
	}
	writeJSON(w, http.StatusOK, map[string]string{"verification_status": status})
}

func (s *Server) handleEventTypes(w http.ResponseWriter, _ *http.Request, _ []byte) {
	writeJSON(w, http.StatusOK, map[string]any{
		"event_types": []map[string]string{
			{"name": "PAYMENT.CAPTURE.COMPLETED"},
			{"name": "PAYMENT.CAPTURE.DECLINED"},
			{"name": "PAYMENT.CAPTURE.REFUNDED"},
			{"name": "PAYMENT.CAPTURE.REVERSED"},
		},
	})
}

func (s *Server) orderView(o *order, withCaptures bool) psp.Order {
	amt := o.amount
	unit := psp.PurchaseUnit{ReferenceID: "default", InvoiceID: o.invoiceID, Amount: &amt}
	if withCaptures && o.captureID != "" {
		c := s.captures[o.captureID]
		camt := psp.Money{CurrencyCode: c.currency, Value: c.amount.StringFixed(c.places)}
		unit.Payments = &psp.PurchaseUnitPayments{
			Captures: []psp.CaptureDetail{{ID: c.id, Status: c.status, Amount: &camt, InvoiceID: c.invoiceID}},
		}
	}
	return psp.Order{ID: o.id, Status: o.status, Intent: psp.IntentCapture, PurchaseUnits: []psp.PurchaseUnit{unit}}
}

func (s *Server) notify(eventType, resourceType, resourceID, invoiceID, status string, amt psp.Money) {
	if s.WebhookURL == "" {
		return
	}
	event := map[string]any{
		"id":            s.nextID("WH"),
		"event_type":    eventType,
		"resource_type": resourceType,
		"create_time":   time.Now().UTC().Format(time.RFC3339),
		"resource": map[string]any{
			"id":         resourceID,
			"invoice_id": invoiceID,
			"status":     status,
			"amount":     amt,
		},
	}
	body, _ := json.Marshal(event)
	transmissionID := s.nextID("TX")
	url := s.WebhookURL

	go func() {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Paypal-Transmission-Id", transmissionID)
		req.Header.Set("Paypal-Transmission-Time", time.Now().UTC().Format(time.RFC3339))
		req.Header.Set("Paypal-Transmission-Sig", "mock-signature")
		req.Header.Set("Paypal-Cert-Url", "https://api.sandbox.paypal.com/v1/notifications/certs/mock")
		req.Header.Set("Paypal-Auth-Algo", "SHA256withRSA")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			slog.Warn("mock psp webhook delivery failed", "event_type", eventType, "error", err)
			return
		}
		resp.Body.Close()
		slog.Info("mock psp webhook delivered", "event_type", eventType, "status", resp.StatusCode)
	}()
}

func (s *Server) writeError(w http.ResponseWriter, status int, name, message string) {
	debugID := s.nextID("dbg")
	w.Header().Set("Paypal-Debug-Id", debugID)
	writeJSON(w, status, map[string]string{"name": name, "message": message, "debug_id": debugID})
}

func (s *Server) writeTokenError(w http.ResponseWriter, status int, name, description string) {
	w.Header().Set("Paypal-Debug-Id", s.nextID("dbg"))
	writeJSON(w, status, map[string]string{"error": name, "error_description": description})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func places(value string) int32 {
	_, frac, ok := strings.Cut(value, ".")
	if !ok {
		return 0
	}
	return int32(len(frac))
}

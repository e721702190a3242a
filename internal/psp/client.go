package psp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/metrics"
)

type Environment string

const (
	EnvironmentSandbox Environment = "sandbox"
	EnvironmentLive    Environment = "live"

	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"

	DefaultPartnerAttributionID = "Connector_Cart_Checkout"
)

const (
	pathToken          = "/v1/oauth2/token"
	pathOrders         = "/v2/checkout/orders"
	pathRefunds        = "/v2/payments/refunds"
	pathCaptures       = "/v2/payments/captures"
	pathVerifySig      = "/v1/notifications/verify-webhook-signature"
	pathWebhookTypes   = "/v1/notifications/webhooks-event-types"
	headerRequestID    = "PayPal-Request-Id"
	headerPartnerAttr  = "PayPal-Partner-Attribution-Id"
	headerDebugID      = "Paypal-Debug-Id"
	maxErrorBodyBytes  = 64 << 10
	maxResponseBytes   = 1 << 20
	defaultHTTPTimeout = 10 * time.Second
)

func BaseURLFor(env Environment) (string, error) {
	switch env {
	case EnvironmentSandbox:
		return SandboxBaseURL, nil
	case EnvironmentLive:
		return LiveBaseURL, nil
	default:
		return "", fmt.Errorf("BaseURLFor: unknown environment %q: %w", env, domain.ErrInvalidRequest)
	}
}

type Config struct {
	BaseURL              string
	ClientID             string
	ClientSecret         string
	PartnerAttributionID string
	Timeout              time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRequestIDFunc replaces the generator of PayPal-Request-Id values.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) { c.newRequestID = fn }
}

// Client talks to the PSP REST API. It holds no mutable state: every call
// obtains a fresh access token and nothing is retried.
type Client struct {
	baseURL              string
	clientID             string
	clientSecret         string
	partnerAttributionID string
	httpClient           *http.Client
	metrics              *metrics.Metrics
	newRequestID         func() string
}

func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	partner := cfg.PartnerAttributionID
	if partner == "" {
		partner = DefaultPartnerAttributionID
	}

	c := &Client{
		baseURL:              strings.TrimRight(cfg.BaseURL, "/"),
		clientID:             cfg.ClientID,
		clientSecret:         cfg.ClientSecret,
		partnerAttributionID: partner,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		newRequestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate exchanges the client credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context) (*Token, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathToken, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("Authenticate: build request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok Token
	if err := c.send(req, "authenticate", domain.ErrAuthenticationFailed, &tok); err != nil {
		return nil, fmt.Errorf("Authenticate: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("Authenticate: empty access token: %w", domain.ErrMalformedPSPResponse)
	}
	return &tok, nil
}

// call performs an authenticated JSON request. Mutating calls carry a
// fresh PayPal-Request-Id since the PSP deduplicates on that key alone.
func (c *Client) call(ctx context.Context, op, method, path string, body any, mutating bool, out any) error {
	tok, err := c.Authenticate(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(b)
	} else if method == http.MethodPost {
		reader = strings.NewReader("{}")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set(headerPartnerAttr, c.partnerAttributionID)
	if mutating {
		req.Header.Set(headerRequestID, c.newRequestID())
	}

	return c.send(req, op, nil, out)
}

func (c *Client) send(req *http.Request, op string, kind error, out any) error {
	log := logging.FromContext(req.Context())

	start := time.Now()
	log.Info("psp request sent", "operation", op, "method", req.Method, "path", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObservePSPRequest(op, 0, time.Since(start))
		log.Error("psp request failed", "operation", op, "error", err)
		return fmt.Errorf("%s: %w: %w", op, domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	c.metrics.ObservePSPRequest(op, resp.StatusCode, duration)
	log.Info("psp response received",
		"operation", op,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"correlation_id", resp.Header.Get(headerDebugID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp, op, kind)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: empty response body: %w", op, domain.ErrMalformedPSPResponse)
		}
		return fmt.Errorf("%s: decode response: %w: %w", op, domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (c *Client) apiError(resp *http.Response, op string, kind error) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = json.Unmarshal(raw, &body)

	apiErr := &APIError{
		Operation:     op,
		HTTPStatus:    resp.StatusCode,
		Name:          body.Name,
		Message:       body.Message,
		CorrelationID: body.DebugID,
		kind:          kind,
	}
	if apiErr.Name == "" {
		apiErr.Name = body.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = body.ErrorDescription
	}
	if apiErr.CorrelationID == "" {
		apiErr.CorrelationID = resp.Header.Get(headerDebugID)
	}

	logging.FromContext(resp.Request.Context()).Warn("psp returned error",
		"operation", op,
		"status", apiErr.HTTPStatus,
		"psp_error", apiErr.Name,
		"correlation_id", apiErr.CorrelationID,
	)
	return apiErr
}

// HealthCheck performs a cheap authenticated read against the PSP.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.call(ctx, "health_check", http.MethodGet, pathWebhookTypes, nil, false, nil); err != nil {
		return fmt.Errorf("HealthCheck: %w", err)
	}
	return nil
}

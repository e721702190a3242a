package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/logging"
	"github.com/josh-kwaku/psp-connector/internal/notification"
	"github.com/josh-kwaku/psp-connector/internal/psp"
	"github.com/josh-kwaku/psp-connector/internal/repository"
)

const maxWebhookBody = 1 << 20

type webhookEventRepository interface {
	Create(ctx context.Context, event *domain.WebhookEvent) error
}

type signatureVerifier interface {
	VerifyWebhookSignature(ctx context.Context, req psp.VerifyWebhookSignatureRequest) (bool, error)
}

// WebhookHandler verifies PSP notifications and stores them for the
// webhook processor. Nothing is applied to payments here.
type WebhookHandler struct {
	webhooks  webhookEventRepository
	verifier  signatureVerifier
	webhookID string
}

func NewWebhookHandler(webhooks webhookEventRepository, verifier signatureVerifier, webhookID string) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, verifier: verifier, webhookID: webhookID}
}

type transmission struct {
	AuthAlgo string
	CertURL  string
	ID       string
	Sig      string
	Time     string
}

func transmissionFrom(h http.Header) (transmission, bool) {
	t := transmission{
		AuthAlgo: h.Get("Paypal-Auth-Algo"),
		CertURL:  h.Get("Paypal-Cert-Url"),
		ID:       h.Get("Paypal-Transmission-Id"),
		Sig:      h.Get("Paypal-Transmission-Sig"),
		Time:     h.Get("Paypal-Transmission-Time"),
	}
	ok := t.AuthAlgo != "" && t.CertURL != "" && t.ID != "" && t.Sig != "" && t.Time != ""
	return t, ok
}

func (h *WebhookHandler) ReceivePSPWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if len(body) == 0 || !json.Valid(body) {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	t, ok := transmissionFrom(r.Header)
	if !ok {
		log.Warn("webhook transmission headers missing")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	verified, err := h.verifier.VerifyWebhookSignature(r.Context(), psp.VerifyWebhookSignatureRequest{
		AuthAlgo:         t.AuthAlgo,
		CertURL:          t.CertURL,
		TransmissionID:   t.ID,
		TransmissionSig:  t.Sig,
		TransmissionTime: t.Time,
		WebhookID:        h.webhookID,
		WebhookEvent:     body,
	})
	if err != nil {
		// The PSP redelivers on non-2xx, so a failed check is retried later.
		log.Error("webhook signature verification unavailable", "error", err)
		RespondDomainError(w, err)
		return
	}
	if !verified {
		log.Warn("webhook signature verification failed", "transmission_id", t.ID)
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	event, err := notification.Parse(body)
	if err != nil {
		log.Warn("failed to parse webhook payload", "error", err)
		RespondValidationError(w, []FieldError{{Field: "id", Message: "id and event_type are required"}})
		return
	}

	stored := &domain.WebhookEvent{
		ID:         uuid.New(),
		PSPEventID: event.ID,
		EventType:  event.EventType,
		Payload:    body,
		Status:     domain.WebhookEventStatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.webhooks.Create(r.Context(), stored); err != nil {
		if repository.IsDuplicateKey(err) {
			log.Info("duplicate webhook received", "psp_event_id", event.ID)
			RespondSuccess(w, http.StatusOK, map[string]string{"status": "already_received"})
			return
		}
		log.Error("failed to store webhook event", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	log.Info("webhook event stored",
		"webhook_event_id", stored.ID,
		"psp_event_id", event.ID,
		"event_type", event.EventType,
		"invoice_id", event.Resource.InvoiceID,
	)

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "received"})
}

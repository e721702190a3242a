package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type WebhookEventStatus string

const (
	WebhookEventStatusPending    WebhookEventStatus = "pending"
	WebhookEventStatusProcessing WebhookEventStatus = "processing"
	WebhookEventStatusApplied    WebhookEventStatus = "applied"
	WebhookEventStatusFailed     WebhookEventStatus = "failed"
)

// WebhookEvent is a verified PSP notification waiting to be applied to its
// payment. PSPEventID is unique, so redeliveries of one event are stored once.
type WebhookEvent struct {
	ID          uuid.UUID
	PSPEventID  string
	EventType   string
	Payload     json.RawMessage
	Status      WebhookEventStatus
	Attempts    int
	LastAttempt *time.Time
	LastError   *string
	CreatedAt   time.Time
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/psp-connector/internal/domain"
)

const webhookEventColumns = `id, psp_event_id, event_type, payload, status,
	attempts, last_attempt, last_error, created_at`

type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(ctx context.Context, event *domain.WebhookEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (
			id, psp_event_id, event_type, payload, status, attempts, last_attempt, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.PSPEventID, event.EventType, string(event.Payload),
		event.Status, event.Attempts, event.LastAttempt, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+webhookEventColumns+` FROM webhook_events WHERE id = $1`, id,
	)
	e, err := scanWebhookEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return e, nil
}

// ClaimPending moves up to limit pending events to processing and returns
// them. SKIP LOCKED lets several processors poll without claiming the same
// event twice.
func (r *WebhookEventRepository) ClaimPending(ctx context.Context, limit int) ([]domain.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE webhook_events SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE status = $2 ORDER BY created_at LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+webhookEventColumns,
		domain.WebhookEventStatusProcessing, domain.WebhookEventStatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		e, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimPending: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ClaimPending: rows: %w", err)
	}
	return events, nil
}

// UpdateStatus records the outcome of a processing attempt. lastErr is
// cleared when nil.
func (r *WebhookEventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus, lastErr *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = $1, last_error = $2 WHERE id = $3`,
		status, lastErr, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

// RequeueStale returns events stuck in processing, e.g. after a crash, to
// pending.
func (r *WebhookEventRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET status = $1
		WHERE status = $2 AND last_attempt < now() - make_interval(secs => $3)`,
		domain.WebhookEventStatusPending, domain.WebhookEventStatusProcessing, olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("RequeueStale: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("RequeueStale: rows affected: %w", err)
	}
	return n, nil
}

func scanWebhookEvent(s scanner) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	var payload []byte
	err := s.Scan(
		&e.ID, &e.PSPEventID, &e.EventType, &payload,
		&e.Status, &e.Attempts, &e.LastAttempt, &e.LastError, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return &e, nil
}

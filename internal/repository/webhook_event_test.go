package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/psp-connector/internal/domain"
	"github.com/josh-kwaku/psp-connector/internal/testutil"
)

func newWebhookEvent(key string, createdAt time.Time) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:         uuid.New(),
		PSPEventID: key,
		EventType:  "PAYMENT.CAPTURE.COMPLETED",
		Payload:    json.RawMessage(`{"id":"` + key + `","event_type":"PAYMENT.CAPTURE.COMPLETED"}`),
		Status:     domain.WebhookEventStatusPending,
		CreatedAt:  createdAt,
	}
}

func TestWebhookEventRepository_CreateDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := NewWebhookEventRepository(db)

	require.NoError(t, repo.Create(ctx, newWebhookEvent("WH-1", time.Now().UTC())))

	err := repo.Create(ctx, newWebhookEvent("WH-1", time.Now().UTC()))
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
}

func TestWebhookEventRepository_ClaimPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := NewWebhookEventRepository(db)

	base := time.Now().UTC().Add(-time.Minute)
	first := newWebhookEvent("WH-1", base)
	second := newWebhookEvent("WH-2", base.Add(time.Second))
	third := newWebhookEvent("WH-3", base.Add(2*time.Second))
	for _, e := range []*domain.WebhookEvent{third, first, second} {
		require.NoError(t, repo.Create(ctx, e))
	}

	claimed, err := repo.ClaimPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	ids := []uuid.UUID{claimed[0].ID, claimed[1].ID}
	assert.ElementsMatch(t, []uuid.UUID{first.ID, second.ID}, ids)
	for _, e := range claimed {
		assert.Equal(t, domain.WebhookEventStatusProcessing, e.Status)
		assert.Equal(t, 1, e.Attempts)
		assert.NotNil(t, e.LastAttempt)
		assert.JSONEq(t, string(newWebhookEvent(e.PSPEventID, base).Payload), string(e.Payload))
	}

	rest, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, third.ID, rest[0].ID)

	none, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWebhookEventRepository_UpdateStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := NewWebhookEventRepository(db)

	e := newWebhookEvent("WH-1", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, e))

	reason := "psp unavailable"
	require.NoError(t, repo.UpdateStatus(ctx, e.ID, domain.WebhookEventStatusPending, &reason))

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookEventStatusPending, got.Status)
	require.NotNil(t, got.LastError)
	assert.Equal(t, reason, *got.LastError)

	require.NoError(t, repo.UpdateStatus(ctx, e.ID, domain.WebhookEventStatusApplied, nil))
	assert.Equal(t, domain.WebhookEventStatusApplied, testutil.GetWebhookEventStatus(t, db, e.ID))

	err = repo.UpdateStatus(ctx, uuid.New(), domain.WebhookEventStatusFailed, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWebhookEventRepository_RequeueStale(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := NewWebhookEventRepository(db)

	e := newWebhookEvent("WH-1", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, e))

	claimed, err := repo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	n, err := repo.RequeueStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = db.Exec(`UPDATE webhook_events SET last_attempt = now() - interval '10 minutes' WHERE id = $1`, e.ID)
	require.NoError(t, err)

	n, err = repo.RequeueStale(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, domain.WebhookEventStatusPending, testutil.GetWebhookEventStatus(t, db, e.ID))
}

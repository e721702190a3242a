package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimsContext(t *testing.T) {
	_, ok := CartIDFromContext(context.Background())
	assert.False(t, ok)

	cartID := uuid.New()
	ctx := ContextWithClaims(context.Background(), &Claims{SessionID: "s-1", CartID: cartID})

	got, ok := CartIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, cartID, got)

	claims, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "s-1", claims.SessionID)

	_, ok = CartIDFromContext(ContextWithClaims(context.Background(), &Claims{}))
	assert.False(t, ok)
}

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	ctx := context.Background()
	tp, err := InitTracer(ctx, "psp-connector-test", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	_, span := otel.Tracer("test").Start(ctx, "op")
	defer span.End()

	assert.True(t, span.SpanContext().TraceID().IsValid())
}

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID tags every request with an id echoed in X-Request-ID. A caller
// supplied id wins, then the active trace id, so log lines and traces of the
// same request share one id.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			if sc := span.SpanContext(); sc.HasTraceID() {
				id = sc.TraceID().String()
			} else {
				id = uuid.NewString()
			}
		}
		span.SetAttributes(attribute.String("http.request_id", id))

		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

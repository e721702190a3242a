package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/psp-connector/internal/auth"
	"github.com/josh-kwaku/psp-connector/internal/handler"
	"github.com/josh-kwaku/psp-connector/internal/logging"
)

// Session admits requests carrying a valid checkout session token and
// stores its claims in the request context.
func Session(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, appErr := bearerToken(r)
			if appErr != nil {
				handler.RespondAppError(w, appErr, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithClaims(r.Context(), claims)
			ctx = logging.With(ctx, "cart_id", claims.CartID, "session_id", claims.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Operator admits requests whose bearer token is the operations API key.
func Operator(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, appErr := bearerToken(r)
			if appErr != nil {
				handler.RespondAppError(w, appErr, nil)
				return
			}

			if !auth.VerifyOperatorKey(keyHash, key) {
				logging.FromContext(r.Context()).Warn("operator key rejected")
				handler.RespondAppError(w, handler.ErrInvalidAPIKey, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, *handler.AppError) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", handler.ErrMissingToken
	}

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", handler.ErrInvalidToken
	}
	return token, nil
}

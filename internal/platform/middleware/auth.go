package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "regbook/pkg/domain"
	"regbook/pkg/requestcontext"
)

// Claims is what the identity provider vouches for on every coordinator
// call: an authenticated actor ID and a verified email. The core trusts
// these and performs no credential verification itself.
type Claims struct {
	UserID id.UserID
	Email  string
}

// TokenValidator validates a bearer token and extracts identity claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and injects the
// actor's identity into the request context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", "error", err)
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ctx := requestcontext.WithUserID(r.Context(), claims.UserID)
			ctx = requestcontext.WithUserEmail(ctx, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

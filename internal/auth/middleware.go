package auth

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/tasklane/todo-api/internal/respond"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// RequireToken creates a middleware that validates bearer tokens. access
// selects which kind of token the route accepts: true for access tokens,
// false for refresh tokens.
func RequireToken(tokenManager *TokenManager, access bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokenManager.Verify(r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, ErrExpiredToken) {
					respond.Message(w, http.StatusUnauthorized, "Expired token")
					return
				}
				respond.Message(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if claims.Access != access {
				log.Printf("[AUTH] token kind mismatch for subject %s on %s", claims.Subject, r.URL.Path)
				respond.Message(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *TokenClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// GetUserFromContext retrieves the user claims from the context
func GetUserFromContext(ctx context.Context) (*TokenClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*TokenClaims)
	return claims, ok
}

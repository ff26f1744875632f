package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tasktrack/backend/internal/contextkeys"
	"github.com/tasktrack/backend/internal/domain"
	"github.com/tasktrack/backend/internal/handler"
)

// TokenVerifier validates bearer tokens. *service.AuthService satisfies it.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.JWTClaims, error)
}

// UserLoader loads a user by id. *service.AuthService satisfies it.
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Auth creates a JWT authentication middleware.
func Auth(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				handler.Error(w, r, domain.ErrUnauthorized("no token provided"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handler.Error(w, r, domain.ErrUnauthorized("invalid authorization header"))
				return
			}

			claims, err := verifier.VerifyToken(parts[1])
			if err != nil || claims.Sub == "" {
				handler.Error(w, r, domain.ErrUnauthorized("invalid or expired token"))
				return
			}

			// Store user info in context using typed keys
			ctx := context.WithValue(r.Context(), contextkeys.UserID, claims.Sub)
			ctx = context.WithValue(ctx, contextkeys.UserEmail, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadUser loads a fresh user for every request so plan and limit checks
// never see a stale subscription. Must be used AFTER Auth.
func LoadUser(users UserLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, _ := r.Context().Value(contextkeys.UserID).(string)
			if id == "" {
				handler.Error(w, r, domain.ErrUnauthorized("not authenticated"))
				return
			}

			user, err := users.GetUserByID(r.Context(), id)
			if err != nil {
				handler.Error(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.User, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

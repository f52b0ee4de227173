// Package api implements the Reoverflow REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/starford/reoverflow/internal/models"
)

// Identity headers set by the authenticating gateway.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
)

type userKey struct{}

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentityMiddleware captures the caller identity from the gateway headers.
// The identity is trusted as given; requests without it stay anonymous and
// are rejected by mutating operations.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := models.User{
			ID:          strings.TrimSpace(r.Header.Get(HeaderUserID)),
			DisplayName: strings.TrimSpace(r.Header.Get(HeaderUserName)),
		}
		if user.DisplayName == "" {
			user.DisplayName = user.ID
		}
		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFrom returns the caller identity stored by IdentityMiddleware.
func UserFrom(ctx context.Context) models.User {
	u, _ := ctx.Value(userKey{}).(models.User)
	return u
}

// Package auth resolves bearer session tokens to users.
package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
)

// ErrInvalidToken is returned for missing, unknown or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated user behind a request.
type Identity struct {
	UserID string
	Email  string
}

// TokenValidator resolves a session token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (Identity, error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(ctx context.Context, token string) (Identity, error)

func (f TokenValidatorFunc) ValidateToken(ctx context.Context, token string) (Identity, error) {
	return f(ctx, token)
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity stored by RequireAuth.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
// The scheme is case-insensitive (RFC 7235). Returns "" when absent or malformed.
func BearerToken(r *http.Request) string {
	fields := strings.Fields(r.Header.Get("Authorization"))
	if len(fields) < 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(strings.Join(fields[1:], " "))
}

// RequestToken is BearerToken with a fallback to the ?token= query parameter,
// which is the only option for browser WebSocket connections.
func RequestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return BearerToken(r)
}

// RequireAuth rejects requests without a valid token with 401 and stores the
// Identity in the request context otherwise.
func RequireAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := Authenticate(w, r, v, BearerToken(r))
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Authenticate validates token and writes 401 on failure.
func Authenticate(w http.ResponseWriter, r *http.Request, v TokenValidator, token string) (Identity, bool) {
	if token == "" {
		log.Println("Auth: No bearer token present")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return Identity{}, false
	}

	id, err := v.ValidateToken(r.Context(), token)
	if err != nil {
		log.Printf("Auth: Token validation failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return Identity{}, false
	}

	return id, true
}

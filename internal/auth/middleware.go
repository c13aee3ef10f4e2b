package auth

import (
	"context"
	"net/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	identityContextKey  contextKey = "identity"
	csrfTokenContextKey contextKey = "csrf_token"
)

// FailureHandler writes the response for a request a strategy rejected.
type FailureHandler func(w http.ResponseWriter, r *http.Request, err error)

// Require authenticates every request with strategy. On success the Identity
// is placed on the request context; on failure onFail answers and the chain
// stops.
func Require(strategy Strategy, onFail FailureHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := strategy.Authenticate(r)
			if err != nil {
				onFail(w, r, err)
				return
			}
			identity.Strategy = strategy.Name()
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext returns the identity set by Require, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey).(*Identity)
	return identity
}

func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenContextKey, token)
}

// CSRFTokenFromContext returns the token minted for this request, or "".
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}

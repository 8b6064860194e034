package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lavente-household/authcore/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// Context keys for request-scoped values.
const (
	PrincipalKey contextKey = "principal"
	ClaimsKey    contextKey = "claims"
)

// GetPrincipal safely extracts the resolved principal from context. Set by
// RequireAuth once a credential has verified and its user looked up — the
// Principal Resolver's request-scoped cache.
func GetPrincipal(ctx context.Context) (auth.Principal, error) {
	val := ctx.Value(PrincipalKey)
	if val == nil {
		return auth.Principal{}, fmt.Errorf("principal not found in context")
	}
	p, ok := val.(auth.Principal)
	if !ok {
		return auth.Principal{}, fmt.Errorf("principal has wrong type: %T", val)
	}
	return p, nil
}

// MustGetPrincipal extracts the principal and panics if absent. Use only
// where RequireAuth is guaranteed to have already run.
func MustGetPrincipal(ctx context.Context) auth.Principal {
	p, err := GetPrincipal(ctx)
	if err != nil {
		panic(fmt.Sprintf("CRITICAL: %v", err))
	}
	return p
}

// GetClaims extracts the claims RequireAuth stored for the current request's
// access credential. Only the fresh flag is populated, for step-up operations.
func GetClaims(ctx context.Context) (auth.Claims, error) {
	val := ctx.Value(ClaimsKey)
	if val == nil {
		return auth.Claims{}, fmt.Errorf("claims not found in context")
	}
	c, ok := val.(auth.Claims)
	if !ok {
		return auth.Claims{}, fmt.Errorf("claims has wrong type: %T", val)
	}
	return c, nil
}

func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

func withClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, c)
}

// uuidFromPath reads a chi URL param and parses it as a UUID, used by the
// authorization middleware to find a route's declared household/user scope.
func uuidFromPath(r *http.Request, key string) (uuid.UUID, error) {
	raw := chi.URLParam(r, key)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing path parameter %q", key)
	}
	return uuid.Parse(raw)
}

package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/lavente-household/authcore/internal/apperr"
	"github.com/lavente-household/authcore/internal/auth"
)

// RequireAuth extracts the bearer credential, verifies it through the Token
// Family Manager, resolves the principal, and injects both into the request
// context.
func RequireAuth(tfm *auth.Manager, resolver *auth.PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			envelope, ok := bearerToken(r)
			if !ok {
				apperr.WriteHTTP(w, r, apperr.Unauthorized("authorization header required"))
				return
			}

			userID, fresh, err := tfm.VerifyAccess(r.Context(), envelope)
			if err != nil {
				slog.WarnContext(r.Context(), "auth_rejected", "error", err, "ip", r.RemoteAddr)
				apperr.WriteHTTP(w, r, err)
				return
			}

			principal, err := resolver.Resolve(r.Context(), userID)
			if err != nil {
				apperr.WriteHTTP(w, r, err)
				return
			}

			claims := auth.Claims{Fresh: fresh}
			ctx := withPrincipal(r.Context(), principal)
			ctx = withClaims(ctx, claims)
			SetSentryUser(principal.ID.String(), principal.Username, r.RemoteAddr)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth runs the same verification as RequireAuth only when a
// credential is present; its absence is not an error, but an invalid
// credential still is.
func OptionalAuth(tfm *auth.Manager, resolver *auth.PrincipalResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			envelope, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			userID, fresh, err := tfm.VerifyAccess(r.Context(), envelope)
			if err != nil {
				apperr.WriteHTTP(w, r, err)
				return
			}
			principal, err := resolver.Resolve(r.Context(), userID)
			if err != nil {
				apperr.WriteHTTP(w, r, err)
				return
			}

			ctx := withPrincipal(r.Context(), principal)
			ctx = withClaims(ctx, auth.Claims{Fresh: fresh})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireFresh gates operations that demand a recently re-entered password
// (the access token's fresh claim), e.g. POST /api/auth/mfa/activate. Must
// run after RequireAuth.
func RequireFresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := GetClaims(r.Context())
		if err != nil || !claims.Fresh {
			apperr.WriteHTTP(w, r, apperr.Unauthorized("a fresh credential is required for this operation"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

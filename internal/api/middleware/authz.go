package middleware

import (
	"net/http"

	"github.com/lavente-household/authcore/internal/apperr"
	"github.com/lavente-household/authcore/internal/authz"
)

// RequireHousehold gates a route behind the Authorization Mediator, reading
// {household_id} (and, for AdminOrSelf, {user_id}) from the chi route. Must
// run after RequireAuth.
func RequireHousehold(mediator *authz.Mediator, required authz.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := GetPrincipal(r.Context())
			if err != nil {
				apperr.WriteHTTP(w, r, apperr.Unauthorized("authentication required"))
				return
			}

			householdID, err := uuidFromPath(r, "household_id")
			if err != nil {
				apperr.WriteHTTP(w, r, apperr.Internal("authz: missing or malformed household_id", err))
				return
			}

			req := authz.Request{
				Principal:   principal,
				HouseholdID: householdID,
				Required:    required,
			}
			if required == authz.AdminOrSelf {
				userID, err := uuidFromPath(r, "user_id")
				if err != nil {
					apperr.WriteHTTP(w, r, apperr.Internal("authz: missing or malformed user_id", err))
					return
				}
				req.UserID = userID
				req.HasUserID = true
			}

			if err := mediator.Authorize(r.Context(), req); err != nil {
				apperr.WriteHTTP(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

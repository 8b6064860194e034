package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lavente-household/authcore/internal/api/helpers"
)

// ShoppingListStub handles GET /api/household/{household_id}/shoppinglist.
// The shopping-list domain itself is out of scope; this handler exists only
// to exercise the Authorization Mediator's MEMBER gate end-to-end.
func (s *Server) ShoppingListStub() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		helpers.RespondJSON(w, http.StatusOK, map[string]any{
			"household_id": chi.URLParam(r, "household_id"),
			"items":        []string{},
		})
	}
}

// UpdateHouseholdStub handles PUT /api/household/{household_id}, exercising
// the Authorization Mediator's ADMIN gate end-to-end.
func (s *Server) UpdateHouseholdStub() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		helpers.RespondJSON(w, http.StatusOK, map[string]any{
			"household_id": chi.URLParam(r, "household_id"),
			"updated":      true,
		})
	}
}

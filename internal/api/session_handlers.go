package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lavente-household/authcore/internal/api/helpers"
	"github.com/lavente-household/authcore/internal/api/middleware"
	"github.com/lavente-household/authcore/internal/apperr"
)

type sessionResponse struct {
	JTI        string    `json:"jti"`
	Device     string    `json:"device,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// ListSessions handles GET /api/auth/sessions: the caller's active
// refresh-token families, one entry per root.
func (s *Server) ListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.MustGetPrincipal(r.Context())

		tokens, err := s.TFM.ListSessions(r.Context(), principal.ID)
		if err != nil {
			apperr.WriteHTTP(w, r, err)
			return
		}

		out := make([]sessionResponse, 0, len(tokens))
		for _, t := range tokens {
			resp := sessionResponse{
				JTI:       uuid.UUID(t.JTI.Bytes).String(),
				CreatedAt: t.CreatedAt.Time,
			}
			if t.Name.Valid {
				resp.Device = t.Name.String
			}
			if t.LastUsedAt.Valid {
				resp.LastUsedAt = t.LastUsedAt.Time
			}
			out = append(out, resp)
		}

		helpers.RespondJSON(w, http.StatusOK, out)
	}
}

// RevokeSession handles DELETE /api/auth/sessions/{jti}: revokes one
// family by its root jti, restricted to the caller who owns it.
func (s *Server) RevokeSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.MustGetPrincipal(r.Context())

		jti, err := uuid.Parse(chi.URLParam(r, "jti"))
		if err != nil {
			apperr.WriteHTTP(w, r, apperr.InvalidUsage("invalid jti"))
			return
		}

		if err := s.TFM.RevokeSession(r.Context(), principal.ID, jti); err != nil {
			apperr.WriteHTTP(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

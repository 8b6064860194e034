package api

import (
	"net/http"
	"strings"

	"github.com/lavente-household/authcore/internal/api/helpers"
	"github.com/lavente-household/authcore/internal/apperr"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Device   string `json:"device,omitempty"`
}

type credentialResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	PreAuthToken string `json:"pre_auth_token,omitempty"`
	RequiresMFA  bool   `json:"requires_mfa,omitempty"`
}

// Login handles POST /api/auth. Returns a {pre_auth_token,
// requires_mfa: true} pair instead of credentials when the account has TOTP
// enabled.
func (s *Server) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := helpers.DecodeJSON(r, &req); err != nil {
			apperr.WriteHTTP(w, r, apperr.InvalidUsage(err.Error()))
			return
		}

		result, err := s.TFM.Login(r.Context(), req.Username, req.Password, req.Device)
		if err != nil {
			apperr.WriteHTTP(w, r, err)
			return
		}

		helpers.RespondJSON(w, http.StatusOK, credentialResponse{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			PreAuthToken: result.PreAuthToken,
			RequiresMFA:  result.RequiresMFA,
		})
	}
}

type freshLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// FreshLogin handles POST /api/auth/fresh-login: mints a standalone
// fresh=true access token without touching any refresh-token family.
func (s *Server) FreshLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req freshLoginRequest
		if err := helpers.DecodeJSON(r, &req); err != nil {
			apperr.WriteHTTP(w, r, apperr.InvalidUsage(err.Error()))
			return
		}

		token, err := s.TFM.FreshLogin(r.Context(), req.Username, req.Password)
		if err != nil {
			apperr.WriteHTTP(w, r, err)
			return
		}

		helpers.RespondJSON(w, http.StatusOK, credentialResponse{AccessToken: token})
	}
}

// Refresh handles GET /api/auth/refresh: rotates the presented refresh
// token and returns the next access+refresh pair, or revokes the whole
// family and returns 401 if an access token minted below one of its
// children has already been used.
func (s *Server) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		envelope, ok := bearerTokenFromRequest(r)
		if !ok {
			apperr.WriteHTTP(w, r, apperr.Unauthorized("authorization header required"))
			return
		}

		result, err := s.TFM.Refresh(r.Context(), envelope)
		if err != nil {
			apperr.WriteHTTP(w, r, err)
			return
		}

		helpers.RespondJSON(w, http.StatusOK, credentialResponse{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
		})
	}
}

// Logout handles POST /api/auth/logout: revokes the family rooted at the
// presented refresh token. Idempotent.
func (s *Server) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		envelope, ok := bearerTokenFromRequest(r)
		if !ok {
			apperr.WriteHTTP(w, r, apperr.Unauthorized("authorization header required"))
			return
		}
		if err := s.TFM.Logout(r.Context(), envelope); err != nil {
			apperr.WriteHTTP(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type onboardingStatusResponse struct {
	Onboarding bool `json:"onboarding"`
}

// OnboardingStatus handles GET /api/onboarding.
func (s *Server) OnboardingStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.OnboardingEnabled {
			helpers.RespondJSON(w, http.StatusOK, onboardingStatusResponse{Onboarding: false})
			return
		}
		open, err := s.TFM.OnboardingOpen(r.Context())
		if err != nil {
			apperr.WriteHTTP(w, r, err)
			return
		}
		helpers.RespondJSON(w, http.StatusOK, onboardingStatusResponse{Onboarding: open})
	}
}

type onboardRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Device   string `json:"device,omitempty"`
}

// Onboard handles POST /api/onboarding: creates the first admin user and
// its initial credential pair. Only allowed while user count is zero.
func (s *Server) Onboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.OnboardingEnabled {
			apperr.WriteHTTP(w, r, apperr.InvalidUsage("onboarding is disabled"))
			return
		}

		var req onboardRequest
		if err := helpers.DecodeJSON(r, &req); err != nil {
			apperr.WriteHTTP(w, r, apperr.InvalidUsage(err.Error()))
			return
		}

		result, err := s.TFM.Onboard(r.Context(), req.Username, req.Name, req.Password, req.Device)
		if err != nil {
			apperr.WriteHTTP(w, r, err)
			return
		}

		helpers.RespondJSON(w, http.StatusCreated, credentialResponse{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
		})
	}
}

// bearerTokenFromRequest extracts the raw token from an Authorization:
// Bearer header, shared by every handler that needs the presented
// credential rather than the already-verified request principal.
func bearerTokenFromRequest(r *http.Request) (string, bool) {
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

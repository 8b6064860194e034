package api

import (
	"encoding/base64"
	"net/http"

	"github.com/lavente-household/authcore/internal/api/helpers"
	"github.com/lavente-household/authcore/internal/api/middleware"
	"github.com/lavente-household/authcore/internal/apperr"
)

type mfaVerifyRequest struct {
	PreAuthToken string `json:"pre_auth_token"`
	Code         string `json:"code"`
	Device       string `json:"device,omitempty"`
}

// VerifyMFA handles POST /api/auth/mfa/verify: completes a login that
// returned requires_mfa, given the pre-auth token and a TOTP code.
func (s *Server) VerifyMFA() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mfaVerifyRequest
		if err := helpers.DecodeJSON(r, &req); err != nil {
			apperr.WriteHTTP(w, r, apperr.InvalidUsage(err.Error()))
			return
		}

		result, err := s.TFM.VerifyLoginMFA(r.Context(), s.MFA, s.Secrets, req.PreAuthToken, req.Code, req.Device)
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

type mfaBackupRequest struct {
	PreAuthToken string `json:"pre_auth_token"`
	BackupCode   string `json:"backup_code"`
	Device       string `json:"device,omitempty"`
}

// VerifyBackupCode handles POST /api/auth/mfa/backup: the VerifyMFA
// fallback for a user who has lost their authenticator.
func (s *Server) VerifyBackupCode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mfaBackupRequest
		if err := helpers.DecodeJSON(r, &req); err != nil {
			apperr.WriteHTTP(w, r, apperr.InvalidUsage(err.Error()))
			return
		}

		result, err := s.TFM.VerifyLoginBackupCode(r.Context(), req.PreAuthToken, req.BackupCode, req.Device)
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

type mfaSetupResponse struct {
	Secret      string   `json:"secret"`
	QRCodePNG   string   `json:"qr_code_png_base64"`
	BackupCodes []string `json:"backup_codes"`
}

// SetupMFA handles POST /api/auth/mfa/setup: authenticated, returns a fresh
// TOTP secret, QR code, and backup codes without persisting anything.
func (s *Server) SetupMFA() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.MustGetPrincipal(r.Context())

		setup, err := s.TFM.SetupMFA(r.Context(), s.MFA, principal.ID)
		if err != nil {
			apperr.WriteHTTP(w, r, err)
			return
		}

		helpers.RespondJSON(w, http.StatusOK, mfaSetupResponse{
			Secret:      setup.Secret,
			QRCodePNG:   base64.StdEncoding.EncodeToString(setup.QRCode),
			BackupCodes: setup.BackupCodes,
		})
	}
}

type mfaActivateRequest struct {
	Secret      string   `json:"secret"`
	Code        string   `json:"code"`
	BackupCodes []string `json:"backup_codes"`
}

// ActivateMFA handles POST /api/auth/mfa/activate: authenticated and
// requires a fresh credential (RequireFresh), since it changes the
// account's authentication factors.
func (s *Server) ActivateMFA() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.MustGetPrincipal(r.Context())

		var req mfaActivateRequest
		if err := helpers.DecodeJSON(r, &req); err != nil {
			apperr.WriteHTTP(w, r, apperr.InvalidUsage(err.Error()))
			return
		}

		err := s.TFM.ActivateMFA(r.Context(), s.MFA, s.Secrets, principal.ID, req.Secret, req.Code, req.BackupCodes)
		if err != nil {
			apperr.WriteHTTP(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

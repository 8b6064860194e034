package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavente-household/authcore/internal/apperr"
	"github.com/lavente-household/authcore/internal/crypto"
	"github.com/lavente-household/authcore/internal/storage/db"
)

// MFASetupResponse carries the fresh secret, QR PNG, and recovery codes for
// a setup request. Backup codes are shown to the user exactly once.
type MFASetupResponse struct {
	Secret      string
	QRCode      []byte
	BackupCodes []string
}

// SetupMFA generates a new TOTP secret and backup codes without persisting
// anything — persistence happens in ActivateMFA once the user proves they
// can generate a valid code.
func (m *Manager) SetupMFA(ctx context.Context, mfaService *MFAService, userID uuid.UUID) (*MFASetupResponse, error) {
	user, err := m.queries.GetUserByID(ctx, pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("setup-mfa: lookup user", err)
	}

	key, img, err := mfaService.GenerateSecret(user.Username)
	if err != nil {
		return nil, apperr.Internal("setup-mfa: generate secret", err)
	}

	codes, err := mfaService.GenerateBackupCodes(10)
	if err != nil {
		return nil, apperr.Internal("setup-mfa: generate backup codes", err)
	}

	return &MFASetupResponse{Secret: key.Secret(), QRCode: img, BackupCodes: codes}, nil
}

// ActivateMFA validates the caller's first TOTP code against the new secret,
// then persists the encrypted secret and hashed backup codes. Requires a
// fresh credential (enforced by the caller, RequireFresh middleware) because
// it changes the account's authentication factors.
func (m *Manager) ActivateMFA(ctx context.Context, mfaService *MFAService, secrets *crypto.Box, userID uuid.UUID, secret, code string, backupCodes []string) error {
	if !mfaService.ValidateCode(code, secret) {
		return apperr.InvalidUsage("invalid verification code")
	}

	sealed, err := secrets.Seal(secret)
	if err != nil {
		return apperr.Internal("activate-mfa: seal secret", err)
	}

	if err := m.queries.DeleteBackupCodes(ctx, pgtype.UUID{Bytes: userID, Valid: true}); err != nil {
		return apperr.Internal("activate-mfa: clear old backup codes", err)
	}
	for _, raw := range backupCodes {
		if err := m.queries.CreateBackupCode(ctx, db.CreateBackupCodeParams{
			ID:       pgtype.UUID{Bytes: uuid.New(), Valid: true},
			UserID:   pgtype.UUID{Bytes: userID, Valid: true},
			CodeHash: hashBackupCode(raw),
		}); err != nil {
			return apperr.Internal("activate-mfa: store backup code", err)
		}
	}

	_, err = m.queries.UpdateUserMFA(ctx, db.UpdateUserMFAParams{
		ID:         pgtype.UUID{Bytes: userID, Valid: true},
		MfaSecret:  pgtype.Text{String: sealed, Valid: true},
		MfaEnabled: true,
	})
	if err != nil {
		return apperr.Internal("activate-mfa: enable mfa", err)
	}
	return nil
}

// VerifyLoginMFA completes a Login call that returned RequiresMFA: the
// caller presents the pre-auth token plus a TOTP code, and on success
// receives the normal access+refresh pair.
func (m *Manager) VerifyLoginMFA(ctx context.Context, mfaService *MFAService, secrets *crypto.Box, preAuthToken, code, device string) (LoginResult, error) {
	claims, err := m.codec.Decode(preAuthToken)
	if err != nil {
		return LoginResult{}, apperr.Unauthorized("invalid or expired pre-auth token")
	}
	if claims.Typ != TypPreAuth {
		return LoginResult{}, apperr.Unauthorized("not a pre-auth token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return LoginResult{}, apperr.Unauthorized("invalid pre-auth token")
	}

	user, err := m.queries.GetUserByID(ctx, pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		return LoginResult{}, apperr.Internal("verify-mfa: lookup user", err)
	}
	if !user.MfaEnabled || !user.MfaSecret.Valid {
		return LoginResult{}, apperr.Unauthorized("mfa not enabled for user")
	}

	secret, err := secrets.Open(user.MfaSecret.String)
	if err != nil {
		return LoginResult{}, apperr.Internal("verify-mfa: open secret", err)
	}

	if !mfaService.ValidateCode(code, secret) {
		return LoginResult{}, apperr.Unauthorized("invalid mfa code")
	}

	return m.issueFamilyRoot(ctx, userID, device)
}

// VerifyLoginBackupCode is VerifyLoginMFA's fallback when the user has lost
// their authenticator — consumes a single-use recovery code instead of a
// TOTP code.
func (m *Manager) VerifyLoginBackupCode(ctx context.Context, preAuthToken, backupCode, device string) (LoginResult, error) {
	claims, err := m.codec.Decode(preAuthToken)
	if err != nil {
		return LoginResult{}, apperr.Unauthorized("invalid or expired pre-auth token")
	}
	if claims.Typ != TypPreAuth {
		return LoginResult{}, apperr.Unauthorized("not a pre-auth token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return LoginResult{}, apperr.Unauthorized("invalid pre-auth token")
	}

	consumed, err := m.queries.ConsumeBackupCode(ctx, pgtype.UUID{Bytes: userID, Valid: true}, hashBackupCode(backupCode))
	if err != nil {
		return LoginResult{}, apperr.Internal("verify-backup-code: consume", err)
	}
	if !consumed {
		return LoginResult{}, apperr.Unauthorized("invalid or already-used backup code")
	}

	return m.issueFamilyRoot(ctx, userID, device)
}

func hashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Package auth implements the Credential Codec, the Token Family Manager,
// and the Principal Resolver — the three leaf/mid components of the
// rotation core.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lavente-household/authcore/internal/apperr"
	"github.com/lavente-household/authcore/internal/metrics"
	"github.com/lavente-household/authcore/internal/storage"
	"github.com/lavente-household/authcore/internal/storage/db"
	"github.com/microcosm-cc/bluemonday"
)

// isUniqueViolation reports whether err is a Postgres unique-constraint
// failure (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var (
	ErrUserNotFound = errors.New("user not found")
)

// FamilyRevokedNotifier is implemented by internal/jobs to dispatch the
// bounded, fire-and-forget security-alert side effect of a compromise
// notification. A nil notifier is a legal no-op (tests, the sweeper, and
// any environment without a configured mailer).
type FamilyRevokedNotifier interface {
	NotifyFamilyRevoked(ctx context.Context, userID uuid.UUID, reason string)
}

// LoginResult is the credential bundle returned by a successful exchange.
// RefreshToken is empty when only a pre-auth token is issued; PreAuthToken is set instead
// of AccessToken when the account requires a second MFA step.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	PreAuthToken string
	RequiresMFA  bool
}

// Manager is the Token Family Manager.
type Manager struct {
	pool      *pgxpool.Pool
	queries   *db.Queries
	codec     *Codec
	hasher    PasswordHasher
	notifier  FamilyRevokedNotifier
	sanitizer *bluemonday.Policy
}

func NewManager(pool *pgxpool.Pool, queries *db.Queries, codec *Codec, hasher PasswordHasher, notifier FamilyRevokedNotifier) *Manager {
	return &Manager{
		pool:      pool,
		queries:   queries,
		codec:     codec,
		hasher:    hasher,
		notifier:  notifier,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (m *Manager) sanitizeDevice(device string) pgtype.Text {
	if device == "" {
		return pgtype.Text{}
	}
	clean := m.sanitizer.Sanitize(device)
	if len(clean) > 120 {
		clean = clean[:120]
	}
	return pgtype.Text{String: clean, Valid: true}
}

// Login verifies credentials and, for accounts without MFA, issues a fresh
// root refresh + access pair. For MFA-enabled accounts it returns a
// short-lived pre-auth token instead, and the caller must complete
// VerifyLoginMFA or VerifyLoginBackupCode to finish the exchange.
func (m *Manager) Login(ctx context.Context, username, password, device string) (LoginResult, error) {
	user, err := m.queries.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, apperr.Unauthorized("invalid username or password")
		}
		return LoginResult{}, apperr.Internal("login: lookup user", err)
	}

	if err := m.hasher.Compare(user.PasswordHash, password); err != nil {
		return LoginResult{}, apperr.Unauthorized("invalid username or password")
	}

	userID := uuid.UUID(user.ID.Bytes)

	if user.MfaEnabled {
		jti := uuid.New()
		token, err := m.codec.Encode(userID, jti, TypPreAuth, false)
		if err != nil {
			return LoginResult{}, apperr.Internal("login: encode pre-auth token", err)
		}
		return LoginResult{PreAuthToken: token, RequiresMFA: true}, nil
	}

	return m.issueFamilyRoot(ctx, userID, device)
}

// issueFamilyRoot persists a new root refresh R0 (no parent) and its first
// access A0 (refresh_token_id = R0.id).
func (m *Manager) issueFamilyRoot(ctx context.Context, userID uuid.UUID, device string) (LoginResult, error) {
	var result LoginResult
	name := m.sanitizeDevice(device)

	err := storage.WithTx(ctx, m.pool, func(tx pgx.Tx) error {
		q := m.queries.WithTx(tx)

		rootID := uuid.New()
		root, err := q.InsertToken(ctx, db.InsertTokenParams{
			ID:     pgtype.UUID{Bytes: rootID, Valid: true},
			JTI:    pgtype.UUID{Bytes: rootID, Valid: true},
			Typ:    TypRefresh,
			Name:   name,
			UserID: pgtype.UUID{Bytes: userID, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("insert root refresh: %w", err)
		}

		accessID := uuid.New()
		_, err = q.InsertToken(ctx, db.InsertTokenParams{
			ID:             pgtype.UUID{Bytes: accessID, Valid: true},
			JTI:            pgtype.UUID{Bytes: accessID, Valid: true},
			Typ:            TypAccess,
			Name:           name,
			UserID:         pgtype.UUID{Bytes: userID, Valid: true},
			RefreshTokenID: pgtype.UUID{Bytes: rootID, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("insert root access: %w", err)
		}

		result.AccessToken, err = m.codec.Encode(userID, accessID, TypAccess, false)
		if err != nil {
			return fmt.Errorf("encode access: %w", err)
		}
		result.RefreshToken, err = m.codec.Encode(userID, uuid.UUID(root.JTI.Bytes), TypRefresh, false)
		return err
	})
	if err != nil {
		return LoginResult{}, apperr.Internal("login: issue credentials", err)
	}
	metrics.TokensIssued.WithLabelValues(TypRefresh).Inc()
	metrics.TokensIssued.WithLabelValues(TypAccess).Inc()
	return result, nil
}

// OnboardingOpen reports whether onboarding is still possible: the instance
// has no users yet.
func (m *Manager) OnboardingOpen(ctx context.Context) (bool, error) {
	n, err := m.queries.CountUsers(ctx)
	if err != nil {
		return false, apperr.Internal("onboarding-open: count users", err)
	}
	return n == 0, nil
}

// Onboard creates the first (admin) user and issues its initial credential
// pair, rejecting the call once any user already exists. Username is
// lowercased on creation.
func (m *Manager) Onboard(ctx context.Context, username, name, password, device string) (LoginResult, error) {
	open, err := m.OnboardingOpen(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	if !open {
		return LoginResult{}, apperr.InvalidUsage("onboarding is no longer available")
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return LoginResult{}, apperr.Internal("onboard: hash password", err)
	}

	userID := uuid.New()
	_, err = m.queries.CreateUser(ctx, db.CreateUserParams{
		ID:           pgtype.UUID{Bytes: userID, Valid: true},
		Username:     strings.ToLower(username),
		PasswordHash: hash,
		Name:         name,
		Admin:        true,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return LoginResult{}, apperr.InvalidUsage("username already taken")
		}
		return LoginResult{}, apperr.Internal("onboard: create user", err)
	}

	return m.issueFamilyRoot(ctx, userID, device)
}

// FreshLogin verifies credentials again and mints a standalone access token
// with fresh=true, no refresh minted. Unlike a chain access token, it
// carries no refresh_token_id — it exists to gate one privileged operation,
// not to participate in rotation (see DESIGN.md's open question decision on
// the fresh-access invariant).
func (m *Manager) FreshLogin(ctx context.Context, username, password string) (string, error) {
	user, err := m.queries.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.Unauthorized("invalid username or password")
		}
		return "", apperr.Internal("fresh-login: lookup user", err)
	}
	if err := m.hasher.Compare(user.PasswordHash, password); err != nil {
		return "", apperr.Unauthorized("invalid username or password")
	}

	userID := uuid.UUID(user.ID.Bytes)

	accessID := uuid.New()
	_, err = m.queries.InsertToken(ctx, db.InsertTokenParams{
		ID:     pgtype.UUID{Bytes: accessID, Valid: true},
		JTI:    pgtype.UUID{Bytes: accessID, Valid: true},
		Typ:    TypAccess,
		UserID: pgtype.UUID{Bytes: userID, Valid: true},
	})
	if err != nil {
		return "", apperr.Internal("fresh-login: insert access", err)
	}

	token, err := m.codec.Encode(userID, accessID, TypAccess, true)
	if err != nil {
		return "", apperr.Internal("fresh-login: encode access", err)
	}
	metrics.TokensIssued.WithLabelValues(TypAccess).Inc()
	return token, nil
}

// VerifyAccess decodes an access envelope, enforces the acceptance rule
// below, and returns the bound user id plus the fresh flag.
func (m *Manager) VerifyAccess(ctx context.Context, envelope string) (uuid.UUID, bool, error) {
	claims, err := m.codec.Decode(envelope)
	if err != nil {
		return uuid.Nil, false, apperr.Unauthorized("invalid credential")
	}
	if claims.Typ != TypAccess && claims.Typ != TypLLT {
		return uuid.Nil, false, apperr.Unauthorized("credential is not an access token")
	}

	jti, err := claims.JTI()
	if err != nil {
		return uuid.Nil, false, apperr.Unauthorized("invalid credential")
	}

	record, err := m.queries.FindByJTI(ctx, pgtype.UUID{Bytes: jti, Valid: true})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, apperr.Unauthorized("credential has been revoked")
		}
		return uuid.Nil, false, apperr.Internal("verify-access: lookup token", err)
	}

	userID, err := claims.UserID()
	if err != nil {
		return uuid.Nil, false, apperr.Unauthorized("invalid credential")
	}

	// Rootless credential (FreshLogin access, or a long-lived token): not
	// part of a rotation chain, no activated-descendant check applies.
	if !record.RefreshTokenID.Valid {
		if _, err := m.queries.MarkUsedCAS(ctx, record.ID); err != nil {
			return uuid.Nil, false, apperr.Internal("verify-access: mark used", err)
		}
		return userID, claims.Fresh, nil
	}

	// Acceptance rule: reject whenever the access's own parent refresh has
	// an activated grandchild (its branch has already moved on). An access
	// not yet marked used is also rejected when an access under the shared
	// grandparent has already been activated (it sits in a losing branch of
	// a race); that rejection revokes the whole family. An access already
	// marked used is the activated one, so presenting it again succeeds.
	activated, err := m.queries.AnyActivatedGrandchild(ctx, record.RefreshTokenID)
	if err != nil {
		return uuid.Nil, false, apperr.Internal("verify-access: activation check", err)
	}
	if activated {
		return uuid.Nil, false, apperr.Unauthorized("credential superseded")
	}

	parent, err := m.queries.FindByJTI(ctx, record.RefreshTokenID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, apperr.Internal("verify-access: parent lookup", err)
	}
	if err == nil && parent.RefreshTokenID.Valid && !record.Used {
		siblingActivated, err := m.queries.AnyActivatedGrandchild(ctx, parent.RefreshTokenID)
		if err != nil {
			return uuid.Nil, false, apperr.Internal("verify-access: sibling activation check", err)
		}
		if siblingActivated {
			if derr := m.queries.DeleteFamily(ctx, record.ID); derr != nil {
				return uuid.Nil, false, apperr.Internal("verify-access: revoke family", derr)
			}
			metrics.ReplayDetections.Inc()
			slog.WarnContext(ctx, "token_family_revoked", "user_id", userID, "reason", "access from a losing branch presented")
			if m.notifier != nil {
				m.notifier.NotifyFamilyRevoked(context.WithoutCancel(ctx), userID, "access from a losing branch presented")
			}
			return uuid.Nil, false, apperr.Unauthorized("credential superseded")
		}
	}

	if _, err := m.queries.MarkUsedCAS(ctx, record.ID); err != nil {
		return uuid.Nil, false, apperr.Internal("verify-access: mark used", err)
	}

	return userID, claims.Fresh, nil
}

// Refresh implements rotation and replay detection. Runs inside a
// serializable transaction taking a row lock on the presented refresh, so
// concurrent rotations on the same parent linearize.
func (m *Manager) Refresh(ctx context.Context, envelope string) (LoginResult, error) {
	claims, err := m.codec.Decode(envelope)
	if err != nil {
		return LoginResult{}, apperr.Unauthorized("invalid credential")
	}
	if claims.Typ != TypRefresh {
		return LoginResult{}, apperr.Unauthorized("credential is not a refresh token")
	}
	jti, err := claims.JTI()
	if err != nil {
		return LoginResult{}, apperr.Unauthorized("invalid credential")
	}
	userID, err := claims.UserID()
	if err != nil {
		return LoginResult{}, apperr.Unauthorized("invalid credential")
	}

	var result LoginResult
	var revokedReason string
	var revokedErr error

	err = storage.WithSerializableTx(ctx, m.pool, func(tx pgx.Tx) error {
		revokedReason, revokedErr = "", nil
		q := m.queries.WithTx(tx)

		r, err := q.FindByJTIForUpdate(ctx, pgtype.UUID{Bytes: jti, Valid: true})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.Unauthorized("refresh token has been revoked")
			}
			return apperr.Internal("refresh: lookup token", err)
		}
		if r.Typ != TypRefresh {
			revokedReason = "presented credential is not a refresh token"
			if derr := q.DeleteFamily(ctx, r.ID); derr != nil {
				return apperr.Internal("refresh: revoke family", derr)
			}
			// Returning nil commits the revocation; the rejection is
			// reported once the transaction is done.
			revokedErr = apperr.Unauthorized("credential is not a refresh token")
			return nil
		}

		activated, err := q.AnyActivatedGrandchild(ctx, r.ID)
		if err != nil {
			return apperr.Internal("refresh: activation check", err)
		}
		if activated {
			revokedReason = "refresh token replayed after its chain moved on"
			if derr := q.DeleteFamily(ctx, r.ID); derr != nil {
				return apperr.Internal("refresh: revoke family", derr)
			}
			revokedErr = apperr.Unauthorized("refresh token has been revoked")
			return nil
		}

		newRefreshID := uuid.New()
		newRefresh, err := q.InsertToken(ctx, db.InsertTokenParams{
			ID:             pgtype.UUID{Bytes: newRefreshID, Valid: true},
			JTI:            pgtype.UUID{Bytes: newRefreshID, Valid: true},
			Typ:            TypRefresh,
			Name:           r.Name,
			UserID:         r.UserID,
			RefreshTokenID: r.ID,
		})
		if err != nil {
			return apperr.Internal("refresh: insert child refresh", err)
		}

		newAccessID := uuid.New()
		_, err = q.InsertToken(ctx, db.InsertTokenParams{
			ID:             pgtype.UUID{Bytes: newAccessID, Valid: true},
			JTI:            pgtype.UUID{Bytes: newAccessID, Valid: true},
			Typ:            TypAccess,
			Name:           r.Name,
			UserID:         r.UserID,
			RefreshTokenID: newRefresh.ID,
		})
		if err != nil {
			return apperr.Internal("refresh: insert child access", err)
		}

		if err := q.MarkUsed(ctx, r.ID); err != nil {
			return apperr.Internal("refresh: mark parent used", err)
		}

		result.AccessToken, err = m.codec.Encode(userID, newAccessID, TypAccess, false)
		if err != nil {
			return apperr.Internal("refresh: encode access", err)
		}
		result.RefreshToken, err = m.codec.Encode(userID, newRefreshID, TypRefresh, false)
		return err
	})
	if err == nil && revokedErr != nil {
		err = revokedErr
	}

	if revokedReason != "" {
		metrics.ReplayDetections.Inc()
		slog.WarnContext(ctx, "token_family_revoked", "user_id", userID, "reason", revokedReason)
		if m.notifier != nil {
			m.notifier.NotifyFamilyRevoked(context.WithoutCancel(ctx), userID, revokedReason)
		}
	}

	if err != nil {
		return LoginResult{}, err
	}
	metrics.TokensIssued.WithLabelValues(TypRefresh).Inc()
	metrics.TokensIssued.WithLabelValues(TypAccess).Inc()
	return result, nil
}

// Logout revokes the family rooted at (or containing) the presented refresh
// token.
func (m *Manager) Logout(ctx context.Context, envelope string) error {
	claims, err := m.codec.Decode(envelope)
	if err != nil {
		return apperr.Unauthorized("invalid credential")
	}
	if claims.Typ != TypRefresh {
		return apperr.Unauthorized("credential is not a refresh token")
	}
	jti, err := claims.JTI()
	if err != nil {
		return apperr.Unauthorized("invalid credential")
	}
	record, err := m.queries.FindByJTI(ctx, pgtype.UUID{Bytes: jti, Valid: true})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil // already revoked; logout is idempotent
		}
		return apperr.Internal("logout: lookup token", err)
	}
	if err := m.queries.DeleteFamily(ctx, record.ID); err != nil {
		return apperr.Internal("logout: delete family", err)
	}
	return nil
}

// RevokeSession revokes a family by its root jti, restricted to the caller
// who owns it (GET /api/auth/sessions' DELETE counterpart).
func (m *Manager) RevokeSession(ctx context.Context, userID, rootJTI uuid.UUID) error {
	record, err := m.queries.FindByJTI(ctx, pgtype.UUID{Bytes: rootJTI, Valid: true})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("session not found")
		}
		return apperr.Internal("revoke-session: lookup token", err)
	}
	if uuid.UUID(record.UserID.Bytes) != userID {
		return apperr.NotFound("session not found")
	}
	if err := m.queries.DeleteFamily(ctx, record.ID); err != nil {
		return apperr.Internal("revoke-session: delete family", err)
	}
	return nil
}

// ListSessions returns the caller's active refresh-token families.
func (m *Manager) ListSessions(ctx context.Context, userID uuid.UUID) ([]db.Token, error) {
	tokens, err := m.queries.ListActiveFamiliesForUser(ctx, pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		return nil, apperr.Internal("list-sessions: query", err)
	}
	return tokens, nil
}

// IssueLongLived mints a non-expiring llt credential, admin-flow only.
// Never swept.
func (m *Manager) IssueLongLived(ctx context.Context, userID uuid.UUID, name string) (string, error) {
	id := uuid.New()
	_, err := m.queries.InsertToken(ctx, db.InsertTokenParams{
		ID:     pgtype.UUID{Bytes: id, Valid: true},
		JTI:    pgtype.UUID{Bytes: id, Valid: true},
		Typ:    TypLLT,
		Name:   m.sanitizeDevice(name),
		UserID: pgtype.UUID{Bytes: userID, Valid: true},
	})
	if err != nil {
		return "", apperr.Internal("issue-llt: insert token", err)
	}
	metrics.TokensIssued.WithLabelValues(TypLLT).Inc()
	return m.codec.Encode(userID, id, TypLLT, false)
}

// SweepExpired runs the two-pass expiry sweep on a fixed cadence, driven by
// cmd/sweeper.
func (m *Manager) SweepExpired(ctx context.Context, accessTTL, refreshTTL time.Duration) (int64, int64, error) {
	deleted, revoked, err := m.queries.SweepExpired(ctx, int64(accessTTL.Seconds()), int64(refreshTTL.Seconds()))
	if err != nil {
		return 0, 0, apperr.Internal("sweep: query", err)
	}
	metrics.AccessTokensSwept.Add(float64(deleted))
	metrics.FamiliesSwept.Add(float64(revoked))
	return deleted, revoked, nil
}


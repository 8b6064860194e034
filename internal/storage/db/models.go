package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// TokenType enumerates the three credential kinds the Token Family Manager
// issues. Stored as text in the tokens table, matched against in SQL.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	TokenTypeLLT     TokenType = "llt"
)

// User mirrors the `users` table.
type User struct {
	ID           pgtype.UUID
	Username     string
	Email        pgtype.Text // nullable — only required for security-alert delivery
	PasswordHash string
	Name         string
	Admin        bool
	MfaEnabled   bool
	MfaSecret    pgtype.Text
	CreatedAt    pgtype.Timestamptz
}

// Household mirrors the `households` table.
type Household struct {
	ID           pgtype.UUID
	Name         string
	Language     pgtype.Text
	FeatureFlags pgtype.Text
	ViewOrdering pgtype.Text
	Photo        pgtype.Text
	CreatedAt    pgtype.Timestamptz
}

// HouseholdMember mirrors the `household_members` table. Composite primary
// key (household_id, user_id).
type HouseholdMember struct {
	HouseholdID pgtype.UUID
	UserID      pgtype.UUID
	Owner       bool
	Admin       bool
}

// Token mirrors the `tokens` table — the core entity of the rotation system.
type Token struct {
	ID             pgtype.UUID
	JTI            pgtype.UUID
	Typ            string
	Name           pgtype.Text
	UserID         pgtype.UUID
	CreatedAt      pgtype.Timestamptz
	LastUsedAt     pgtype.Timestamptz
	RefreshTokenID pgtype.UUID // null for root refresh and for llt
	Used           bool
}

// BackupCode mirrors the `mfa_backup_codes` table, used by the step-up MFA
// backup-code flow.
type BackupCode struct {
	ID       pgtype.UUID
	UserID   pgtype.UUID
	CodeHash string
	UsedAt   pgtype.Timestamptz
}

// AuditLog mirrors the `audit_logs` table — an append-only trail of
// security-relevant events, household-scoped rather than tenant-scoped.
type AuditLog struct {
	ID          pgtype.UUID
	ActorID     pgtype.UUID
	HouseholdID pgtype.UUID
	Action      string
	Metadata    []byte
	CreatedAt   pgtype.Timestamptz
}

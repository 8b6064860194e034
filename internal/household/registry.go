// Package household implements the Membership Registry: the persisted
// (household, user) -> {owner, admin} lookup the Authorization Mediator
// consults on every household-scoped request.
package household

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavente-household/authcore/internal/storage/db"
)

// Member mirrors db.HouseholdMember in plain uuid.UUID form for callers
// outside the storage layer.
type Member struct {
	HouseholdID uuid.UUID
	UserID      uuid.UUID
	Owner       bool
	Admin       bool
}

// ErrNotMember is returned by Lookup when no membership row exists — not an
// error condition in itself, callers (the Authorization Mediator) decide
// what it means for the requirement in play.
var ErrNotMember = fmt.Errorf("no membership for this household")

type Registry struct {
	queries *db.Queries
}

func NewRegistry(queries *db.Queries) *Registry {
	return &Registry{queries: queries}
}

func (r *Registry) Lookup(ctx context.Context, householdID, userID uuid.UUID) (Member, error) {
	m, err := r.queries.GetMembership(ctx,
		pgtype.UUID{Bytes: householdID, Valid: true},
		pgtype.UUID{Bytes: userID, Valid: true},
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Member{}, ErrNotMember
		}
		return Member{}, fmt.Errorf("lookup membership: %w", err)
	}
	return Member{
		HouseholdID: householdID,
		UserID:      userID,
		Owner:       m.Owner,
		Admin:       m.Admin,
	}, nil
}

func (r *Registry) AddMember(ctx context.Context, householdID, userID uuid.UUID, owner, admin bool) (Member, error) {
	m, err := r.queries.AddHouseholdMember(ctx, db.AddHouseholdMemberParams{
		HouseholdID: pgtype.UUID{Bytes: householdID, Valid: true},
		UserID:      pgtype.UUID{Bytes: userID, Valid: true},
		Owner:       owner,
		Admin:       admin,
	})
	if err != nil {
		return Member{}, fmt.Errorf("add member: %w", err)
	}
	return Member{HouseholdID: householdID, UserID: userID, Owner: m.Owner, Admin: m.Admin}, nil
}

func (r *Registry) RemoveMember(ctx context.Context, householdID, userID uuid.UUID) error {
	return r.queries.RemoveHouseholdMember(ctx,
		pgtype.UUID{Bytes: householdID, Valid: true},
		pgtype.UUID{Bytes: userID, Valid: true},
	)
}

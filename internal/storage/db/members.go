package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type AddHouseholdMemberParams struct {
	HouseholdID pgtype.UUID
	UserID      pgtype.UUID
	Owner       bool
	Admin       bool
}

// AddHouseholdMember upserts a membership row — re-adding an existing member
// updates its role flags rather than erroring.
func (q *Queries) AddHouseholdMember(ctx context.Context, arg AddHouseholdMemberParams) (HouseholdMember, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO household_members (household_id, user_id, owner, admin)
VALUES ($1, $2, $3, $4)
ON CONFLICT (household_id, user_id) DO UPDATE SET owner = $3, admin = $4
RETURNING household_id, user_id, owner, admin
`, arg.HouseholdID, arg.UserID, arg.Owner, arg.Admin)
	return scanMember(row)
}

// GetMembership is the Membership Registry's sole read operation: lookup by
// (household_id, user_id), returning pgx.ErrNoRows when no membership
// exists.
func (q *Queries) GetMembership(ctx context.Context, householdID, userID pgtype.UUID) (HouseholdMember, error) {
	row := q.db.QueryRow(ctx, `
SELECT household_id, user_id, owner, admin
FROM household_members WHERE household_id = $1 AND user_id = $2
`, householdID, userID)
	return scanMember(row)
}

func (q *Queries) RemoveHouseholdMember(ctx context.Context, householdID, userID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
DELETE FROM household_members WHERE household_id = $1 AND user_id = $2
`, householdID, userID)
	return err
}

func scanMember(row pgx.Row) (HouseholdMember, error) {
	var m HouseholdMember
	err := row.Scan(&m.HouseholdID, &m.UserID, &m.Owner, &m.Admin)
	return m, err
}

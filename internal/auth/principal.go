package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lavente-household/authcore/internal/apperr"
	"github.com/lavente-household/authcore/internal/storage/db"
)

// Principal is the authenticated user bound to a request, the result of
// resolving a verified credential's sub claim.
type Principal struct {
	ID       uuid.UUID
	Username string
	Name     string
	Admin    bool
}

// PrincipalResolver maps a verified sub claim to an active user record. A
// missing user is fatal for the request — a valid signature over a
// since-deleted account must not be trusted.
type PrincipalResolver struct {
	queries *db.Queries
}

func NewPrincipalResolver(queries *db.Queries) *PrincipalResolver {
	return &PrincipalResolver{queries: queries}
}

func (r *PrincipalResolver) Resolve(ctx context.Context, userID uuid.UUID) (Principal, error) {
	u, err := r.queries.GetUserByID(ctx, pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		if err == pgx.ErrNoRows {
			return Principal{}, apperr.Unauthorized("credential does not match an active user")
		}
		return Principal{}, apperr.Internal("failed to resolve principal", fmt.Errorf("lookup user %s: %w", userID, err))
	}
	return Principal{
		ID:       userID,
		Username: u.Username,
		Name:     u.Name,
		Admin:    u.Admin,
	}, nil
}

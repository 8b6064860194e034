package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateAuditLogParams struct {
	ID          pgtype.UUID
	ActorID     pgtype.UUID
	HouseholdID pgtype.UUID
	Action      string
	Metadata    []byte
}

func (q *Queries) CreateAuditLog(ctx context.Context, arg CreateAuditLogParams) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO audit_logs (id, actor_id, household_id, action, metadata)
VALUES ($1, $2, $3, $4, $5)
`, arg.ID, arg.ActorID, arg.HouseholdID, arg.Action, arg.Metadata)
	return err
}

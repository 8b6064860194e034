package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreateHouseholdParams struct {
	ID   pgtype.UUID
	Name string
}

func (q *Queries) CreateHousehold(ctx context.Context, arg CreateHouseholdParams) (Household, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO households (id, name)
VALUES ($1, $2)
RETURNING id, name, language, feature_flags, view_ordering, photo, created_at
`, arg.ID, arg.Name)
	return scanHousehold(row)
}

func (q *Queries) GetHousehold(ctx context.Context, id pgtype.UUID) (Household, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, name, language, feature_flags, view_ordering, photo, created_at
FROM households WHERE id = $1
`, id)
	return scanHousehold(row)
}

func (q *Queries) DeleteHousehold(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM households WHERE id = $1`, id)
	return err
}

func scanHousehold(row pgx.Row) (Household, error) {
	var h Household
	err := row.Scan(&h.ID, &h.Name, &h.Language, &h.FeatureFlags, &h.ViewOrdering, &h.Photo, &h.CreatedAt)
	return h, err
}

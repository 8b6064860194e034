package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type CreateBackupCodeParams struct {
	ID       pgtype.UUID
	UserID   pgtype.UUID
	CodeHash string
}

func (q *Queries) CreateBackupCode(ctx context.Context, arg CreateBackupCodeParams) error {
	_, err := q.db.Exec(ctx, `
INSERT INTO mfa_backup_codes (id, user_id, code_hash) VALUES ($1, $2, $3)
`, arg.ID, arg.UserID, arg.CodeHash)
	return err
}

func (q *Queries) DeleteBackupCodes(ctx context.Context, userID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM mfa_backup_codes WHERE user_id = $1`, userID)
	return err
}

// ConsumeBackupCode marks the first unused backup code matching codeHash as
// used, reporting whether one was found — backup codes are single-use.
func (q *Queries) ConsumeBackupCode(ctx context.Context, userID pgtype.UUID, codeHash string) (bool, error) {
	tag, err := q.db.Exec(ctx, `
UPDATE mfa_backup_codes
SET used_at = now()
WHERE id = (
	SELECT id FROM mfa_backup_codes
	WHERE user_id = $1 AND code_hash = $2 AND used_at IS NULL
	LIMIT 1
)
`, userID, codeHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

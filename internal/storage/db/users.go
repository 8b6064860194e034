package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreateUserParams struct {
	ID           pgtype.UUID
	Username     string
	Email        pgtype.Text
	PasswordHash string
	Name         string
	Admin        bool
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO users (id, username, email, password_hash, name, admin)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, username, email, password_hash, name, admin, mfa_enabled, mfa_secret, created_at
`, arg.ID, arg.Username, arg.Email, arg.PasswordHash, arg.Name, arg.Admin)
	return scanUser(row)
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, username, email, password_hash, name, admin, mfa_enabled, mfa_secret, created_at
FROM users WHERE username = $1
`, username)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, username, email, password_hash, name, admin, mfa_enabled, mfa_secret, created_at
FROM users WHERE id = $1
`, id)
	return scanUser(row)
}

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

func (q *Queries) DeleteUser(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

type UpdateUserMFAParams struct {
	ID         pgtype.UUID
	MfaSecret  pgtype.Text
	MfaEnabled bool
}

func (q *Queries) UpdateUserMFA(ctx context.Context, arg UpdateUserMFAParams) (User, error) {
	row := q.db.QueryRow(ctx, `
UPDATE users SET mfa_secret = $2, mfa_enabled = $3
WHERE id = $1
RETURNING id, username, email, password_hash, name, admin, mfa_enabled, mfa_secret, created_at
`, arg.ID, arg.MfaSecret, arg.MfaEnabled)
	return scanUser(row)
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Name, &u.Admin, &u.MfaEnabled, &u.MfaSecret, &u.CreatedAt)
	return u, err
}

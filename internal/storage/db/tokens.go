package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type InsertTokenParams struct {
	ID             pgtype.UUID
	JTI            pgtype.UUID
	Typ            string
	Name           pgtype.Text
	UserID         pgtype.UUID
	RefreshTokenID pgtype.UUID // Valid=false for a root refresh and for llt
}

// InsertToken persists a new credential record. jti carries a unique index,
// so a collision surfaces as a pgx unique-violation error.
func (q *Queries) InsertToken(ctx context.Context, arg InsertTokenParams) (Token, error) {
	row := q.db.QueryRow(ctx, `
INSERT INTO tokens (id, jti, typ, name, user_id, refresh_token_id, used, created_at)
VALUES ($1, $2, $3, $4, $5, $6, false, now())
RETURNING id, jti, typ, name, user_id, created_at, last_used_at, refresh_token_id, used
`, arg.ID, arg.JTI, arg.Typ, arg.Name, arg.UserID, arg.RefreshTokenID)
	return scanToken(row)
}

// FindByJTI is the Token Store's primary lookup. Returns pgx.ErrNoRows when
// the credential is unknown (revoked, never issued, or swept).
func (q *Queries) FindByJTI(ctx context.Context, jti pgtype.UUID) (Token, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, jti, typ, name, user_id, created_at, last_used_at, refresh_token_id, used
FROM tokens WHERE jti = $1
`, jti)
	return scanToken(row)
}

// FindByJTIForUpdate is FindByJTI taken under a row lock, for use inside the
// serializable rotation transaction.
func (q *Queries) FindByJTIForUpdate(ctx context.Context, jti pgtype.UUID) (Token, error) {
	row := q.db.QueryRow(ctx, `
SELECT id, jti, typ, name, user_id, created_at, last_used_at, refresh_token_id, used
FROM tokens WHERE jti = $1
FOR UPDATE
`, jti)
	return scanToken(row)
}

// MarkUsed is a plain idempotent set, used when rotating a refresh token:
// the serializable transaction's row lock already excludes concurrent
// writers, so no CAS race-winner signal is needed here.
func (q *Queries) MarkUsed(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
UPDATE tokens SET used = true, last_used_at = now() WHERE id = $1
`, id)
	return err
}

// MarkUsedCAS flips used from false to true and reports whether THIS call
// was the one that won the race — the linearization point for the sibling
// rotation tie-break: whichever grandchild access is first marked used
// becomes the canonical chain.
func (q *Queries) MarkUsedCAS(ctx context.Context, id pgtype.UUID) (bool, error) {
	tag, err := q.db.Exec(ctx, `
UPDATE tokens SET used = true, last_used_at = now() WHERE id = $1 AND used = false
`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AnyActivatedGrandchild reports whether any access token minted by a child
// refresh of refreshID has been marked used — the "activated descendant"
// condition that is the sole trigger for family revocation.
func (q *Queries) AnyActivatedGrandchild(ctx context.Context, refreshID pgtype.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM tokens child_access
	JOIN tokens child_refresh ON child_access.refresh_token_id = child_refresh.id
	WHERE child_refresh.refresh_token_id = $1
	  AND child_refresh.typ = 'refresh'
	  AND child_access.typ = 'access'
	  AND child_access.used = true
)
`, refreshID).Scan(&exists)
	return exists, err
}

// DeleteFamily walks refresh_token_id upward from any token in a family to
// its root (a refresh with no parent), then deletes every token reachable
// downward from that root.
func (q *Queries) DeleteFamily(ctx context.Context, memberID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `
WITH RECURSIVE up AS (
	SELECT id, refresh_token_id FROM tokens WHERE id = $1
	UNION ALL
	SELECT t.id, t.refresh_token_id
	FROM tokens t
	JOIN up ON t.id = up.refresh_token_id
),
root AS (
	SELECT id FROM up WHERE refresh_token_id IS NULL
	LIMIT 1
),
down AS (
	SELECT id FROM root
	UNION ALL
	SELECT t.id
	FROM tokens t
	JOIN down d ON t.refresh_token_id = d.id
)
DELETE FROM tokens WHERE id IN (SELECT id FROM down)
`, memberID)
	return err
}

// SweepExpired implements the two-pass expiry sweep: (a) delete stale access
// rows outright, (b) for each childless refresh past its TTL, revoke its
// whole family.
func (q *Queries) SweepExpired(ctx context.Context, accessTTLSeconds, refreshTTLSeconds int64) (deletedAccess int64, revokedFamilies int64, err error) {
	tag, err := q.db.Exec(ctx, `
DELETE FROM tokens
WHERE typ = 'access'
  AND created_at < now() - make_interval(secs => $1)
`, accessTTLSeconds)
	if err != nil {
		return 0, 0, err
	}
	deletedAccess = tag.RowsAffected()

	rows, err := q.db.Query(ctx, `
SELECT r.id
FROM tokens r
WHERE r.typ = 'refresh'
  AND r.created_at < now() - make_interval(secs => $1)
  AND NOT EXISTS (SELECT 1 FROM tokens c WHERE c.refresh_token_id = r.id)
`, refreshTTLSeconds)
	if err != nil {
		return deletedAccess, 0, err
	}
	var leafRoots []pgtype.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return deletedAccess, 0, err
		}
		leafRoots = append(leafRoots, id)
	}
	rows.Close()

	for _, id := range leafRoots {
		if derr := q.DeleteFamily(ctx, id); derr != nil {
			return deletedAccess, revokedFamilies, derr
		}
		revokedFamilies++
	}
	return deletedAccess, revokedFamilies, nil
}

// ListActiveFamiliesForUser lists a user's root refresh tokens — backs
// GET /api/auth/sessions (device/session listing).
func (q *Queries) ListActiveFamiliesForUser(ctx context.Context, userID pgtype.UUID) ([]Token, error) {
	rows, err := q.db.Query(ctx, `
SELECT id, jti, typ, name, user_id, created_at, last_used_at, refresh_token_id, used
FROM tokens
WHERE user_id = $1 AND typ = 'refresh' AND refresh_token_id IS NULL
ORDER BY created_at DESC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTokens(rows)
}

func scanToken(row pgx.Row) (Token, error) {
	var t Token
	err := row.Scan(&t.ID, &t.JTI, &t.Typ, &t.Name, &t.UserID, &t.CreatedAt, &t.LastUsedAt, &t.RefreshTokenID, &t.Used)
	return t, err
}

func collectTokens(rows pgx.Rows) ([]Token, error) {
	var out []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.JTI, &t.Typ, &t.Name, &t.UserID, &t.CreatedAt, &t.LastUsedAt, &t.RefreshTokenID, &t.Used); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// CreateSessionParams persists a refresh session keyed by token digest.
type CreateSessionParams struct {
	UserID    int64
	TokenHash string
	UserAgent pgtype.Text
	IP        pgtype.Text
	ExpiresAt pgtype.Timestamptz
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	var s Session
	err := q.db.QueryRow(ctx, `
INSERT INTO sessions (user_id, token_hash, user_agent, ip, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, token_hash, user_agent, ip, expires_at, created_at`,
		arg.UserID, arg.TokenHash, arg.UserAgent, arg.IP, arg.ExpiresAt,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

func (q *Queries) GetSessionByToken(ctx context.Context, tokenHash string) (Session, error) {
	var s Session
	err := q.db.QueryRow(ctx, `
SELECT id, user_id, token_hash, user_agent, ip, expires_at, created_at
FROM sessions WHERE token_hash = $1`, tokenHash,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

// RotateSessionTokenParams replaces the digest and extends the expiry of an
// existing session in place.
type RotateSessionTokenParams struct {
	ID        int64
	TokenHash string
	ExpiresAt pgtype.Timestamptz
}

func (q *Queries) RotateSessionToken(ctx context.Context, arg RotateSessionTokenParams) error {
	_, err := q.db.Exec(ctx, `UPDATE sessions SET token_hash = $2, expires_at = $3 WHERE id = $1`, arg.ID, arg.TokenHash, arg.ExpiresAt)
	return err
}

func (q *Queries) DeleteSessionByToken(ctx context.Context, tokenHash string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return err
}

func (q *Queries) DeleteSessionsByUser(ctx context.Context, userID int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

// CreatePasswordResetParams records a single-use reset token.
type CreatePasswordResetParams struct {
	UserID    int64
	Token     string
	ExpiresAt pgtype.Timestamptz
}

func (q *Queries) CreatePasswordReset(ctx context.Context, arg CreatePasswordResetParams) (PasswordReset, error) {
	var r PasswordReset
	err := q.db.QueryRow(ctx, `
INSERT INTO password_resets (user_id, token, expires_at)
VALUES ($1, $2, $3)
RETURNING id, user_id, token, expires_at, used_at, created_at`,
		arg.UserID, arg.Token, arg.ExpiresAt,
	).Scan(&r.ID, &r.UserID, &r.Token, &r.ExpiresAt, &r.UsedAt, &r.CreatedAt)
	return r, err
}

func (q *Queries) GetPasswordResetByToken(ctx context.Context, token string) (PasswordReset, error) {
	var r PasswordReset
	err := q.db.QueryRow(ctx, `
SELECT id, user_id, token, expires_at, used_at, created_at
FROM password_resets WHERE token = $1`, token,
	).Scan(&r.ID, &r.UserID, &r.Token, &r.ExpiresAt, &r.UsedAt, &r.CreatedAt)
	return r, err
}

func (q *Queries) UsePasswordReset(ctx context.Context, token string) error {
	_, err := q.db.Exec(ctx, `UPDATE password_resets SET used_at = now() WHERE token = $1`, token)
	return err
}

func (q *Queries) DeletePasswordResetsByUser(ctx context.Context, userID int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM password_resets WHERE user_id = $1`, userID)
	return err
}

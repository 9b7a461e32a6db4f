package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/happenings/internal/auth"
	"github.com/geocoder89/happenings/internal/observability"
)

// SessionsRepo stores refresh tokens.
type SessionsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewSessionsRepo(pool *pgxpool.Pool, prom *observability.Prom) *SessionsRepo {
	return &SessionsRepo{pool: pool, prom: prom}
}

type queryExecer interface {
	execer
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertSession(ctx context.Context, db execer, s auth.Session) error {
	_, err := db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, s.ID, s.UserID, s.TokenHash, s.ExpiresAt, s.RevokedAt, s.ReplacedBy, s.CreatedAt)
	return err
}

func (r *SessionsRepo) Create(ctx context.Context, s auth.Session) error {
	return r.prom.ObserveDB("refresh_tokens.create", func() error {
		return insertSession(ctx, r.pool, s)
	})
}

// Rotate locks the presented session row so two concurrent refreshes with
// the same token cannot both succeed.
func (r *SessionsRepo) Rotate(ctx context.Context, id, presentedHash string, next auth.Session) error {
	return r.prom.ObserveDB("refresh_tokens.rotate", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		cur, err := getSessionForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := auth.CheckRotatable(cur, presentedHash, time.Now().UTC()); err != nil {
			return err
		}
		if cur.UserID != next.UserID {
			return auth.ErrSessionMismatch
		}

		if err := insertSession(ctx, tx, next); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW(), replaced_by = $2
			WHERE id = $1
		`, id, next.ID); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}

func getSessionForUpdate(ctx context.Context, db queryExecer, id string) (auth.Session, error) {
	var s auth.Session
	err := db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
		FROM refresh_tokens
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.RevokedAt, &s.ReplacedBy, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, err
	}
	return s, nil
}

func (r *SessionsRepo) Revoke(ctx context.Context, id string) error {
	return r.prom.ObserveDB("refresh_tokens.revoke", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW()
			WHERE id = $1 AND revoked_at IS NULL
		`, id)
		return err
	})
}

func (r *SessionsRepo) RevokeAll(ctx context.Context, userID string) error {
	return r.prom.ObserveDB("refresh_tokens.revoke_all", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW()
			WHERE user_id = $1 AND revoked_at IS NULL
		`, userID)
		return err
	})
}

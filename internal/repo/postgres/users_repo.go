package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/happenings/internal/domain/user"
	"github.com/geocoder89/happenings/internal/observability"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

const userColumns = `id, email, password_hash, name, role, is_trusted, created_at, updated_at`

func (r *UsersRepo) get(ctx context.Context, op, where string, arg any) (user.User, error) {
	var u user.User
	err := r.prom.ObserveDB(op, func() error {
		return r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
			&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Trusted, &u.CreatedAt, &u.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.get(ctx, "users.get_by_email", "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.get(ctx, "users.get_by_id", "id = $1", id)
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	err := r.prom.ObserveDB("users.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.Name, u.Role, u.Trusted, u.CreatedAt, u.UpdatedAt)
		return err
	})
	if IsUniqueViolation(err) {
		return user.ErrEmailAlreadyUsed
	}
	return err
}

func (r *UsersRepo) UpdateName(ctx context.Context, id, name string) (user.User, error) {
	var u user.User
	err := r.prom.ObserveDB("users.update_name", func() error {
		return r.pool.QueryRow(ctx, `
			UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1
			RETURNING `+userColumns, id, name).Scan(
			&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.Trusted, &u.CreatedAt, &u.UpdatedAt,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

// Delete removes the account. Sessions and likes cascade; submitted events
// keep a null submitter.
func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	var affected int64
	err := r.prom.ObserveDB("users.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return user.ErrNotFound
	}
	return nil
}

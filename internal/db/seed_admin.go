package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/geocoder89/happenings/internal/domain/user"
	"github.com/geocoder89/happenings/internal/security"
)

type AdminSeed struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// AdminUsers is the slice of the user store the admin seed needs.
type AdminUsers interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.User) error
}

// EnsureAdminUser creates the configured admin once. Missing credentials
// disable the seed.
func EnsureAdminUser(ctx context.Context, users AdminUsers, seed AdminSeed) error {
	if seed.Email == "" || seed.Password == "" {
		return nil
	}

	_, err := users.GetByEmail(ctx, seed.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return err
	}

	hash, err := security.HashPassword(seed.Password)
	if err != nil {
		return err
	}

	role := seed.Role
	if role == "" {
		role = user.RoleAdmin
	}

	now := time.Now().UTC()
	err = users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        seed.Email,
		PasswordHash: hash,
		Name:         seed.Name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, user.ErrEmailAlreadyUsed) {
		return nil
	}
	return err
}

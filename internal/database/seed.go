package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iliyamo/identity-api/internal/model"
	"github.com/iliyamo/identity-api/internal/repository"
)

// SeedStore is what Seed needs from an identity store.
type SeedStore interface {
	EnsureRole(ctx context.Context, name string) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, u *model.User, password string) error
	AddToRole(ctx context.Context, u *model.User, role string) error
}

// SeedUser is a default account created at startup.
type SeedUser struct {
	Email    string
	Password string
	Role     string
}

// DefaultRoles and DefaultUsers are the data created by Seed.
var (
	DefaultRoles = []string{model.RoleAdmin, model.RoleUser}
	DefaultUsers = []SeedUser{
		{Email: "admin@gmail.com", Password: "123456", Role: model.RoleAdmin},
		{Email: "user@gmail.com", Password: "123456", Role: model.RoleUser},
	}
)

// Seed creates the default roles and users.  Existing users are left
// untouched, so it is safe to run on every start.
func Seed(ctx context.Context, store SeedStore, log zerolog.Logger) error {
	for _, r := range DefaultRoles {
		if err := store.EnsureRole(ctx, r); err != nil {
			return fmt.Errorf("seed role %s: %w", r, err)
		}
	}
	for _, su := range DefaultUsers {
		_, err := store.FindByEmail(ctx, su.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("seed lookup %s: %w", su.Email, err)
		}
		u := &model.User{Email: su.Email}
		if err := store.Create(ctx, u, su.Password); err != nil {
			return fmt.Errorf("seed create %s: %w", su.Email, err)
		}
		if err := store.AddToRole(ctx, u, su.Role); err != nil {
			return fmt.Errorf("seed role for %s: %w", su.Email, err)
		}
		log.Info().Str("email", su.Email).Str("role", su.Role).Msg("seeded user")
	}
	return nil
}

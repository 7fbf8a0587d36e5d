package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/usermgmt/internal/config"
	"github.com/geocoder89/usermgmt/internal/domain/user"
)

type AdminStore interface {
	GetByLogin(ctx context.Context, loginID string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// EnsureAdminUser creates the configured admin when no user with that email
// exists yet. An existing record is left alone, whatever its role.
func EnsureAdminUser(ctx context.Context, store AdminStore, hasher PasswordHasher, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	_, err := store.GetByLogin(ctx, cfg.AdminEmail)
	if err == nil {
		return nil
	}

	if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}

	hash, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return err
	}

	u, err := store.Create(ctx, user.User{
		Name:         cfg.AdminName,
		Email:        cfg.AdminEmail,
		Phone:        cfg.AdminPhone,
		PasswordHash: hash,
		State:        "-",
		City:         "-",
		Country:      "-",
		Pincode:      "0000",
		Role:         user.RoleAdmin,
	})
	if err != nil {
		// another replica seeded first
		if errors.Is(err, user.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}

	slog.InfoContext(ctx, "admin user created", "user_id", u.ID, "email", u.Email)
	return nil
}

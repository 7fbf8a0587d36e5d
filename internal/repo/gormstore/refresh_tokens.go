package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/token"
	"github.com/geocoder89/usermgmt/internal/observability"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefreshTokensStore struct {
	db   *gorm.DB
	prom *observability.Prom
}

func NewRefreshTokensStore(db *gorm.DB, prom *observability.Prom) *RefreshTokensStore {
	return &RefreshTokensStore{db: db, prom: prom}
}

func (s *RefreshTokensStore) observe(op string, fn func() error) error {
	if s.prom != nil {
		return s.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (s *RefreshTokensStore) Create(ctx context.Context, row token.Refresh) error {
	m := refreshModelFrom(row)
	return s.observe("refresh_tokens.create", func() error {
		return s.db.WithContext(ctx).Create(&m).Error
	})
}

func (s *RefreshTokensStore) Rotate(ctx context.Context, oldID string, check func(token.Refresh) error, next token.Refresh) error {
	return s.observe("refresh_tokens.rotate", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var old RefreshTokenModel

			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", oldID).
				Take(&old).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return token.ErrRefreshNotFound
				}
				return err
			}

			if err := check(old.toDomain()); err != nil {
				return err
			}

			err = tx.Model(&RefreshTokenModel{}).
				Where("id = ?", oldID).
				Updates(map[string]any{"revoked_at": time.Now().UTC(), "replaced_by": next.ID}).Error
			if err != nil {
				return fmt.Errorf("revoke refresh token: %w", err)
			}

			m := refreshModelFrom(next)
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("insert refresh token: %w", err)
			}
			return nil
		})
	})
}

func (s *RefreshTokensStore) Revoke(ctx context.Context, id string) error {
	return s.observe("refresh_tokens.revoke", func() error {
		return s.db.WithContext(ctx).Model(&RefreshTokenModel{}).
			Where("id = ? AND revoked_at IS NULL", id).
			Update("revoked_at", time.Now().UTC()).Error
	})
}

func (s *RefreshTokensStore) RevokeAllForUser(ctx context.Context, userID int64) error {
	return s.observe("refresh_tokens.revoke_all", func() error {
		return s.db.WithContext(ctx).Model(&RefreshTokenModel{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Update("revoked_at", time.Now().UTC()).Error
	})
}

package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/geocoder89/usermgmt/internal/observability"
	"gorm.io/gorm"
)

type UsersStore struct {
	db   *gorm.DB
	prom *observability.Prom
}

func NewUsersStore(db *gorm.DB, prom *observability.Prom) *UsersStore {
	return &UsersStore{db: db, prom: prom}
}

func (s *UsersStore) observe(op string, fn func() error) error {
	if s.prom != nil {
		return s.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (s *UsersStore) Create(ctx context.Context, u user.User) (user.User, error) {
	if u.Role == "" {
		u.Role = user.RoleUser
	}

	m := userModelFrom(u)
	m.ID = 0

	err := s.observe("users.create", func() error {
		return s.db.WithContext(ctx).Create(&m).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return user.User{}, user.ErrDuplicate
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	return m.toDomain(), nil
}

func (s *UsersStore) GetByID(ctx context.Context, id int64) (user.User, error) {
	var m UserModel

	err := s.observe("users.get_by_id", func() error {
		return s.db.WithContext(ctx).First(&m, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("get user %d: %w", id, err)
	}

	return m.toDomain(), nil
}

func (s *UsersStore) GetByLogin(ctx context.Context, loginID string) (user.User, error) {
	var m UserModel

	err := s.observe("users.get_by_login", func() error {
		return s.db.WithContext(ctx).
			Where("email = ? OR phone = ?", loginID, loginID).
			Take(&m).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("get user by login: %w", err)
	}

	return m.toDomain(), nil
}

func (s *UsersStore) List(ctx context.Context, filter user.ListFilter) ([]user.User, error) {
	q := s.db.WithContext(ctx).Model(&UserModel{})

	if filter.Search != nil {
		pattern := "%" + escapeLike(*filter.Search) + "%"
		q = q.Where("name ILIKE ? OR email ILIKE ?", pattern, pattern)
	}

	if filter.FilterBy != nil && filter.Value != nil {
		switch *filter.FilterBy {
		case user.FilterState, user.FilterCity, user.FilterCountry:
			q = q.Where(*filter.FilterBy+" = ?", *filter.Value)
		}
	}

	var models []UserModel

	err := s.observe("users.list", func() error {
		return q.Order("created_at DESC, id DESC").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]user.User, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (s *UsersStore) Update(ctx context.Context, id int64, p user.Patch) (user.User, error) {
	if p.IsEmpty() {
		return s.GetByID(ctx, id)
	}

	var rows int64

	err := s.observe("users.update", func() error {
		res := s.db.WithContext(ctx).Model(&UserModel{ID: id}).Updates(patchColumns(p))
		rows = res.RowsAffected
		return res.Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return user.User{}, user.ErrDuplicate
		}
		return user.User{}, fmt.Errorf("update user %d: %w", id, err)
	}
	if rows == 0 {
		return user.User{}, user.ErrNotFound
	}

	return s.GetByID(ctx, id)
}

func (s *UsersStore) Delete(ctx context.Context, id int64) error {
	var rows int64

	err := s.observe("users.delete", func() error {
		res := s.db.WithContext(ctx).Delete(&UserModel{}, id)
		rows = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	if rows == 0 {
		return user.ErrNotFound
	}
	return nil
}

func patchColumns(p user.Patch) map[string]any {
	cols := make(map[string]any)

	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Email != nil {
		cols["email"] = *p.Email
	}
	if p.Phone != nil {
		cols["phone"] = *p.Phone
	}
	if p.PasswordHash != nil {
		cols["password_hash"] = *p.PasswordHash
	}
	if p.ProfileImage != nil {
		cols["profile_image"] = *p.ProfileImage
	}
	if p.Address != nil {
		cols["address"] = *p.Address
	}
	if p.State != nil {
		cols["state"] = *p.State
	}
	if p.City != nil {
		cols["city"] = *p.City
	}
	if p.Country != nil {
		cols["country"] = *p.Country
	}
	if p.Pincode != nil {
		cols["pincode"] = *p.Pincode
	}
	if p.Role != nil {
		cols["role"] = string(*p.Role)
	}

	return cols
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/user"
)

// UsersRepo keeps users in process. Email and phone stay unique like the
// postgres constraints.
type UsersRepo struct {
	mu     sync.RWMutex
	items  map[int64]user.User
	nextID int64
	now    func() time.Time
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[int64]user.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *UsersRepo) Create(_ context.Context, u user.User) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflicts(0, u.Email, u.Phone) {
		return user.User{}, user.ErrDuplicate
	}

	if u.Role == "" {
		u.Role = user.RoleUser
	}

	r.nextID++
	now := r.now()

	u.ID = r.nextID
	u.CreatedAt = now
	u.UpdatedAt = now
	r.items[u.ID] = u

	return u, nil
}

func (r *UsersRepo) GetByID(_ context.Context, id int64) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByLogin(_ context.Context, loginID string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Email == loginID || u.Phone == loginID {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) List(_ context.Context, filter user.ListFilter) ([]user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]user.User, 0, len(r.items))

	for _, u := range r.items {
		if filter.Search != nil {
			q := strings.ToLower(*filter.Search)
			if !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
				continue
			}
		}

		if filter.FilterBy != nil && filter.Value != nil {
			var field string
			switch *filter.FilterBy {
			case user.FilterState:
				field = u.State
			case user.FilterCity:
				field = u.City
			case user.FilterCountry:
				field = u.Country
			}
			if field != *filter.Value {
				continue
			}
		}

		out = append(out, u)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *UsersRepo) Update(_ context.Context, id int64, p user.Patch) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	if p.IsEmpty() {
		return existing, nil
	}

	updated := p.Apply(existing)

	if r.conflicts(id, updated.Email, updated.Phone) {
		return user.User{}, user.ErrDuplicate
	}

	updated.UpdatedAt = r.now()
	r.items[id] = updated

	return updated, nil
}

func (r *UsersRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return user.ErrNotFound
	}

	delete(r.items, id)
	return nil
}

// callers hold the write lock
func (r *UsersRepo) conflicts(selfID int64, email, phone string) bool {
	for id, u := range r.items {
		if id == selfID {
			continue
		}
		if (email != "" && u.Email == email) || (phone != "" && u.Phone == phone) {
			return true
		}
	}
	return false
}

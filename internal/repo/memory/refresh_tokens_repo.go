package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/token"
)

type RefreshTokensRepo struct {
	mu    sync.Mutex
	items map[string]token.Refresh
}

func NewRefreshTokensRepo() *RefreshTokensRepo {
	return &RefreshTokensRepo{items: make(map[string]token.Refresh)}
}

func (r *RefreshTokensRepo) Create(_ context.Context, row token.Refresh) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[row.ID] = row
	return nil
}

// Rotate holds the lock across check, revoke and insert, matching the
// row lock the postgres version takes.
func (r *RefreshTokensRepo) Rotate(_ context.Context, oldID string, check func(token.Refresh) error, next token.Refresh) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.items[oldID]
	if !ok {
		return token.ErrRefreshNotFound
	}

	if err := check(old); err != nil {
		return err
	}

	now := time.Now().UTC()
	nextID := next.ID
	old.RevokedAt = &now
	old.ReplacedBy = &nextID

	r.items[oldID] = old
	r.items[next.ID] = next

	return nil
}

func (r *RefreshTokensRepo) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.items[id]
	if !ok || row.RevokedAt != nil {
		return nil
	}

	now := time.Now().UTC()
	row.RevokedAt = &now
	r.items[id] = row
	return nil
}

func (r *RefreshTokensRepo) RevokeAllForUser(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for id, row := range r.items {
		if row.UserID == userID && row.RevokedAt == nil {
			row.RevokedAt = &now
			r.items[id] = row
		}
	}
	return nil
}

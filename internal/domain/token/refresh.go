package token

import (
	"errors"
	"time"
)

var ErrRefreshNotFound = errors.New("refresh token not found")

// Refresh is the server-side record of an issued refresh token. ID is the
// token's jti; only a hash of the raw token is stored.
type Refresh struct {
	ID         string
	UserID     int64
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

// Usable reports whether the record may still be exchanged at now.
func (r Refresh) Usable(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

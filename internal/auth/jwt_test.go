package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager("access-secret", "refresh-secret", time.Minute, 7*24*time.Hour)
}

func TestIssuePair_RoundTrip(t *testing.T) {
	m := newTestManager()
	id := user.Identity{ID: 42, Role: user.RoleAdmin}

	pair, err := m.IssuePair(id)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEmpty(t, pair.RefreshJTI)

	access, err := m.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), access.UserID)
	assert.Equal(t, user.RoleAdmin, access.Role)
	assert.Equal(t, "42", access.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Minute), access.ExpiresAt.Time, 5*time.Second)

	refresh, err := m.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshJTI, refresh.ID)
	assert.WithinDuration(t, pair.RefreshExpiresAt, refresh.ExpiresAt.Time, time.Second)
}

func TestIssuePair_MissingSecret(t *testing.T) {
	m := NewManager("", "refresh-secret", time.Minute, time.Hour)

	_, err := m.IssuePair(user.Identity{ID: 1, Role: user.RoleUser})
	assert.ErrorIs(t, err, ErrSigning)

	m = NewManager("access-secret", "", time.Minute, time.Hour)
	_, err = m.IssuePair(user.Identity{ID: 1, Role: user.RoleUser})
	assert.ErrorIs(t, err, ErrSigning)
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m := newTestManager().WithClock(func() time.Time { return issuedAt })

	pair, err := m.IssuePair(user.Identity{ID: 3, Role: user.RoleUser})
	require.NoError(t, err)

	// well within the window
	m.WithClock(func() time.Time { return issuedAt.Add(30 * time.Second) })
	_, err = m.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)

	// signature still valid, but past expiry
	m.WithClock(func() time.Time { return issuedAt.Add(2 * time.Minute) })
	_, err = m.VerifyAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_TokenTypesAreNotInterchangeable(t *testing.T) {
	// same secret for both so only the typ claim differs
	m := NewManager("shared", "shared", time.Minute, time.Hour)

	pair, err := m.IssuePair(user.Identity{ID: 5, Role: user.RoleUser})
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.VerifyRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessToken_WrongSecretOrAlgorithm(t *testing.T) {
	m := newTestManager()
	other := NewManager("other-secret", "refresh-secret", time.Minute, time.Hour)

	pair, err := other.IssuePair(user.Identity{ID: 9, Role: user.RoleAdmin})
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(pair.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	// alg=none is rejected
	claims := Claims{
		UserID:    9,
		Role:      user.RoleAdmin,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashRefreshToken_Deterministic(t *testing.T) {
	m := newTestManager()

	a := m.HashRefreshToken("raw-token")
	b := m.HashRefreshToken("raw-token")
	c := m.HashRefreshToken("other-token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4)

	hash, err := h.Hash("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$04$"))

	assert.NoError(t, h.Compare(hash, "password123"))
	assert.ErrorIs(t, h.Compare(hash, "wrongpassword"), ErrPasswordMismatch)
	assert.ErrorIs(t, h.Compare("invalidhash", "password123"), ErrPasswordMismatch)
}

func TestHasher_CrossInstanceCompatible(t *testing.T) {
	// hashes from one cost setting must verify with another instance
	hash, err := NewHasher(4).Hash("abc123")
	require.NoError(t, err)

	assert.NoError(t, NewHasher(DefaultCost).Compare(hash, "abc123"))
}

func TestNewHasher_InvalidCostFallsBack(t *testing.T) {
	assert.Equal(t, DefaultCost, NewHasher(0).cost)
	assert.Equal(t, DefaultCost, NewHasher(99).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []error
	}{
		{name: "ok", in: "secret1", want: nil},
		{name: "exactly six", in: "abcde1", want: nil},
		{name: "too short", in: "ab1", want: []error{ErrPasswordTooShort}},
		{name: "no digit", in: "abcdefgh", want: []error{ErrPasswordNoDigit}},
		{name: "both", in: "abc", want: []error{ErrPasswordTooShort, ErrPasswordNoDigit}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidatePassword(tt.in))
		})
	}
}

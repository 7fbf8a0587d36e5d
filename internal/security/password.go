package security

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost       = 10
	MinPasswordLength = 6
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordNoDigit  = errors.New("password must contain at least one number")
	ErrPasswordMismatch = errors.New("password mismatch")
)

// Hasher is the single password primitive used for every code path, so a
// hash written at registration stays verifiable after an update.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash hashes a plain text password with bcrypt.
func (h *Hasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Compare checks plain against a bcrypt hash in constant time.
func (h *Hasher) Compare(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if err != nil {
		return ErrPasswordMismatch
	}
	return nil
}

// ValidatePassword enforces the password policy. It reports every rule the
// password breaks.
func ValidatePassword(plain string) []error {
	var errs []error

	if len(plain) < MinPasswordLength {
		errs = append(errs, ErrPasswordTooShort)
	}

	if !strings.ContainsFunc(plain, unicode.IsDigit) {
		errs = append(errs, ErrPasswordNoDigit)
	}

	return errs
}

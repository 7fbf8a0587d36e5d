// Package authz holds the self-or-admin rule applied to every user
// resource operation.
package authz

import (
	"errors"

	"github.com/geocoder89/usermgmt/internal/domain/user"
)

var ErrForbidden = errors.New("access denied")

type Action string

const (
	ActionList   Action = "list"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Authorize decides whether actor may perform action on the user record
// identified by targetID. Admins may act on any record; everyone else only
// on their own.
func Authorize(actor user.Identity, action Action, targetID int64) error {
	if actor.IsAdmin() {
		return nil
	}

	if action == ActionList {
		return ErrForbidden
	}

	if actor.ID != 0 && actor.ID == targetID {
		return nil
	}

	return ErrForbidden
}

func RequireAdmin(actor user.Identity) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// FilterPatch strips fields the actor is not entitled to set. A non-admin
// role change is dropped rather than rejected.
func FilterPatch(actor user.Identity, p user.Patch) user.Patch {
	if !actor.IsAdmin() {
		p.Role = nil
	}
	return p
}

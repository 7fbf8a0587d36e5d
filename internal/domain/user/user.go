package user

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("email or phone already in use")
)

// User is the persisted record. JSON output is the sanitized form: the
// password hash and the update timestamp never leave the process.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	ProfileImage *string   `json:"profile_image"`
	Address      *string   `json:"address"`
	State        string    `json:"state"`
	City         string    `json:"city"`
	Country      string    `json:"country"`
	Pincode      string    `json:"pincode"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"-"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Role: u.Role}
}

// Identity is who a request acts as.
type Identity struct {
	ID   int64
	Role Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name         *string
	Email        *string
	Phone        *string
	PasswordHash *string
	ProfileImage *string
	Address      *string
	State        *string
	City         *string
	Country      *string
	Pincode      *string
	Role         *Role
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.PasswordHash == nil &&
		p.ProfileImage == nil && p.Address == nil && p.State == nil && p.City == nil &&
		p.Country == nil && p.Pincode == nil && p.Role == nil
}

// Apply copies the set fields of p onto u.
func (p Patch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.ProfileImage != nil {
		img := *p.ProfileImage
		u.ProfileImage = &img
	}
	if p.Address != nil {
		addr := *p.Address
		u.Address = &addr
	}
	if p.State != nil {
		u.State = *p.State
	}
	if p.City != nil {
		u.City = *p.City
	}
	if p.Country != nil {
		u.Country = *p.Country
	}
	if p.Pincode != nil {
		u.Pincode = *p.Pincode
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	return u
}

// filterable columns for the admin listing
const (
	FilterState   = "state"
	FilterCity    = "city"
	FilterCountry = "country"
)

// with pointers if optional, it will be nil
type ListFilter struct {
	Search   *string
	FilterBy *string // one of FilterState, FilterCity, FilterCountry
	Value    *string
}

// NewListFilter trims the search term and drops empty values and unknown
// filter columns.
func NewListFilter(search, filterBy, value string) ListFilter {
	var f ListFilter

	if search = strings.TrimSpace(search); search != "" {
		f.Search = &search
	}

	switch filterBy {
	case FilterState, FilterCity, FilterCountry:
		if value != "" {
			f.FilterBy = &filterBy
			f.Value = &value
		}
	}

	return f
}

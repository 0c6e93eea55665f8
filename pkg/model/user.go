package model

import (
	"strings"
	"time"
)

// Role is the server-assigned role of a marketplace account.
type Role string

const (
	// RoleUser books services.
	RoleUser Role = "user"
	// RoleProvider offers services.
	RoleProvider Role = "provider"
	// RoleAdmin manages the marketplace.
	RoleAdmin Role = "admin"
)

// ParseRole normalizes a role string. The second result is false for values
// outside the closed role set.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleProvider, RoleAdmin:
		return r, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// User is the account record returned by the marketplace API.
// The role is assigned by the server and never changed by the client.
type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            Role      `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	IsPhoneVerified bool      `json:"isPhoneVerified"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasRole reports whether the user's role is one of roles. A role outside
// the known set counts as RoleUser. An empty role list matches any user.
func (u *User) HasRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	own := u.Role
	if !own.Valid() {
		own = RoleUser
	}
	for _, r := range roles {
		if own == r {
			return true
		}
	}
	return false
}

// Clone returns a copy of u that shares no memory with it.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

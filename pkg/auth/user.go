package auth

import "slices"

// User is an authenticated identity.
type User struct {
	// Username as presented by the client and stored in the realm.
	Username string `json:"username"`

	// Realm is the name of the realm that authenticated the user.
	Realm string `json:"realm,omitempty"`

	// Roles granted to the user by the realm (sorted).
	Roles []string `json:"roles,omitempty"`

	// Groups resolved from a directory, if any.
	Groups []string `json:"groups,omitempty"`
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

// Credentials carries a username/password pair. The password is a byte
// slice so callers can zero it after use.
type Credentials struct {
	Username string
	Password []byte
}

// Zero overwrites the password bytes.
func (c *Credentials) Zero() {
	clear(c.Password)
}

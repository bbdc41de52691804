// Package auth issues and validates the JWT access tokens of the API.
package auth

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin grants access to every user's data.
const RoleAdmin = "admin"

// Claims are the JWT claims of an access token. The token id (jti) is a
// random UUID so individual tokens can be told apart in logs.
type Claims struct {
	jwt.RegisteredClaims

	// Username is the authenticated user.
	Username string `json:"username"`

	// Realm is the realm that authenticated the user.
	Realm string `json:"realm"`

	// Roles come from the realm's roles file.
	Roles []string `json:"roles,omitempty"`
}

// HasRole returns true if the user has the given role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// IsAdmin returns true if the user has the admin role.
func (c *Claims) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// CanAccessUser reports whether the token holder may read data of username.
func (c *Claims) CanAccessUser(username string) bool {
	return c.Username == username || c.IsAdmin()
}

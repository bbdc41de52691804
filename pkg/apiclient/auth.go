package apiclient

import (
	"context"
	"time"
)

// LoginRequest represents a login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is an authenticated realm user.
type User struct {
	Username string   `json:"username" yaml:"username"`
	Realm    string   `json:"realm" yaml:"realm"`
	Roles    []string `json:"roles" yaml:"roles"`
}

// TokenResponse represents the response of the login endpoint.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"` // seconds
	ExpiresAt   time.Time `json:"expires_at"`
	User        User      `json:"user"`
}

// ExpiresInDuration returns ExpiresIn as a time.Duration.
func (t *TokenResponse) ExpiresInDuration() time.Duration {
	return time.Duration(t.ExpiresIn) * time.Second
}

// Login authenticates against the realm and returns an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	var resp TokenResponse
	if err := c.post(ctx, "/api/v1/auth/login", LoginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the user the token was issued to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/api/v1/auth/me", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

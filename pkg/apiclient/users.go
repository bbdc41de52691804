package apiclient

import (
	"context"
	"net/url"
)

// UserList is the response of ListUsers.
type UserList struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// Groups is the response of GetGroups.
type Groups struct {
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
}

// ListUsers returns the usernames of the realm. Requires the admin role.
func (c *Client) ListUsers(ctx context.Context) (*UserList, error) {
	var list UserList
	if err := c.get(ctx, "/api/v1/users", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetGroups resolves the directory groups of username. A directory timeout
// is an *APIError with IsTimeout, never an empty list.
func (c *Client) GetGroups(ctx context.Context, username string) (*Groups, error) {
	var g Groups
	if err := c.get(ctx, "/api/v1/users/"+url.PathEscape(username)+"/groups", &g); err != nil {
		return nil, err
	}
	return &g, nil
}

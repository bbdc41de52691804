package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/pkg/api/middleware"
	"github.com/marmos91/filerealm/pkg/auth/file"
	"github.com/marmos91/filerealm/pkg/auth/ldap"
)

// UserDirectory is the read side of the users file. *file.Store satisfies it.
type UserDirectory interface {
	Snapshot() *file.Snapshot
}

// GroupResolver looks up a user's directory groups.
// *ldap.GroupLookup satisfies it.
type GroupResolver interface {
	GroupsForUser(ctx context.Context, username string) ldap.Result
}

// UserHandler serves the user endpoints.
type UserHandler struct {
	users  UserDirectory
	groups GroupResolver
}

// NewUserHandler creates a UserHandler. groups may be nil when no directory
// is configured.
func NewUserHandler(users UserDirectory, groups GroupResolver) *UserHandler {
	return &UserHandler{users: users, groups: groups}
}

// UserListResponse is the response body for GET /api/v1/users.
type UserListResponse struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// GroupsResponse is the response body for GET /api/v1/users/{username}/groups.
type GroupsResponse struct {
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	names := h.users.Snapshot().Usernames()
	WriteJSONOK(w, UserListResponse{Users: names, Count: len(names)})
}

// Groups handles GET /api/v1/users/{username}/groups. Users may read their
// own groups; admins may read anyone's. A directory timeout is reported as
// 504 and never as an empty group list.
func (h *UserHandler) Groups(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}
	if !claims.CanAccessUser(username) {
		Forbidden(w, "Access to another user's groups requires the admin role")
		return
	}
	if h.groups == nil {
		ServiceUnavailable(w, "Directory group lookup is not configured")
		return
	}

	res := h.groups.GroupsForUser(r.Context(), username)
	switch res.Kind {
	case ldap.ResultOK:
		WriteJSONOK(w, GroupsResponse{Username: username, Groups: res.Groups})
	case ldap.ResultTimeout:
		logger.WarnCtx(r.Context(), "group lookup timed out", logger.KeyUsername, username, logger.KeyError, res.Err)
		GatewayTimeout(w, "Directory did not answer in time")
	default:
		logger.WarnCtx(r.Context(), "group lookup failed", logger.KeyUsername, username, logger.KeyError, res.Err)
		BadGateway(w, "Directory group lookup failed")
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/pkg/api/auth"
	"github.com/marmos91/filerealm/pkg/api/middleware"
	fileauth "github.com/marmos91/filerealm/pkg/auth"
)

// Authenticator checks credentials against the configured realms.
// *fileauth.Authenticator satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, creds fileauth.Credentials) (fileauth.Result, error)
}

// AuthHandler handles the authentication endpoints.
type AuthHandler struct {
	authenticator Authenticator
	jwtService    *auth.JWTService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(a Authenticator, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{authenticator: a, jwtService: jwtService}
}

// LoginRequest is the request body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the response body for POST /api/v1/auth/login.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
}

// UserResponse is the user as seen by API clients.
type UserResponse struct {
	Username string   `json:"username"`
	Realm    string   `json:"realm"`
	Roles    []string `json:"roles"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		BadRequest(w, "Username and password are required")
		return
	}

	creds := fileauth.Credentials{Username: req.Username, Password: []byte(req.Password)}
	defer creds.Zero()

	res, err := h.authenticator.Authenticate(r.Context(), creds)
	if err != nil {
		if errors.Is(err, fileauth.ErrAuthFailed) ||
			errors.Is(err, fileauth.ErrUnsupportedMechanism) ||
			errors.Is(err, fileauth.ErrInvalidCredentials) {
			Unauthorized(w, "Invalid username or password")
			return
		}
		logger.ErrorCtx(r.Context(), "authentication failed", logger.KeyUsername, req.Username, logger.KeyError, err)
		InternalServerError(w, "Authentication failed")
		return
	}
	if !res.IsSuccess() {
		Unauthorized(w, "Invalid username or password")
		return
	}

	token, err := h.jwtService.GenerateToken(res.User)
	if err != nil {
		InternalServerError(w, "Failed to generate token")
		return
	}

	WriteJSONOK(w, LoginResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   token.ExpiresIn,
		ExpiresAt:   token.ExpiresAt,
		User:        userResponse(res.User.Username, res.User.Realm, res.User.Roles),
	})
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}
	WriteJSONOK(w, userResponse(claims.Username, claims.Realm, claims.Roles))
}

func userResponse(username, realm string, roles []string) UserResponse {
	if roles == nil {
		roles = []string{}
	}
	return UserResponse{Username: username, Realm: realm, Roles: roles}
}

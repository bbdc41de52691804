package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filerealm/pkg/api"
	apiauth "github.com/marmos91/filerealm/pkg/api/auth"
	"github.com/marmos91/filerealm/pkg/auth"
	"github.com/marmos91/filerealm/pkg/auth/file"
	"github.com/marmos91/filerealm/pkg/auth/ldap"
	"github.com/marmos91/filerealm/pkg/watcher"
)

type noopNotifier struct{}

func (noopNotifier) Watch(string, watcher.Handler) (io.Closer, error) {
	return io.NopCloser(nil), nil
}

type stubGroups ldap.Result

func (s stubGroups) GroupsForUser(context.Context, string) ldap.Result { return ldap.Result(s) }

func newServer(t *testing.T, groups ldap.Result) *Client {
	t.Helper()
	dir := t.TempDir()
	users := filepath.Join(dir, "users")
	require.NoError(t, os.WriteFile(users, []byte("alice:{plain}alice-pw\nbob:{plain}bob-pw\n"), 0o600))
	roles := filepath.Join(dir, "users_roles")
	require.NoError(t, os.WriteFile(roles, []byte("admin:alice\n"), 0o600))

	store, err := file.NewStore(users, noopNotifier{}, file.WithRealmName("file1"))
	require.NoError(t, err)
	rolesStore, err := file.NewRolesStore(roles, noopNotifier{})
	require.NoError(t, err)
	jwt, err := apiauth.NewJWTService(apiauth.JWTConfig{Secret: "test-secret-key-for-testing-only-32chars"})
	require.NoError(t, err)

	handler := api.NewRouter(api.Dependencies{
		RealmName:     "file1",
		Authenticator: auth.NewAuthenticator(file.NewRealm("file1", store, rolesStore, nil)),
		Users:         store,
		Groups:        stubGroups(groups),
	}, jwt)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL)
}

func TestLoginAndMe(t *testing.T) {
	ctx := context.Background()
	client := newServer(t, ldap.OK(nil))

	token, err := client.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Positive(t, token.ExpiresInDuration())
	assert.Equal(t, "alice", token.User.Username)

	me, err := client.WithToken(token.AccessToken).Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "file1", me.Realm)
	assert.Equal(t, []string{"admin"}, me.Roles)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	client := newServer(t, ldap.OK(nil))

	resp, err := client.Login(context.Background(), "alice", "wrong")
	assert.Nil(t, resp)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.True(t, apiErr.IsAuthError())
	assert.Equal(t, "Unauthorized", apiErr.Title)
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	client := newServer(t, ldap.OK(nil))

	admin, err := client.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	list, err := client.WithToken(admin.AccessToken).ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, list.Users)
	assert.Equal(t, 2, list.Count)

	user, err := client.Login(ctx, "bob", "bob-pw")
	require.NoError(t, err)
	_, err = client.WithToken(user.AccessToken).ListUsers(ctx)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestGetGroups(t *testing.T) {
	ctx := context.Background()
	client := newServer(t, ldap.OK([]string{"sailors", "officers"}))

	token, err := client.Login(ctx, "bob", "bob-pw")
	require.NoError(t, err)
	client.SetToken(token.AccessToken)

	groups, err := client.GetGroups(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", groups.Username)
	assert.Equal(t, []string{"sailors", "officers"}, groups.Groups)
}

func TestGetGroups_Timeout(t *testing.T) {
	ctx := context.Background()
	client := newServer(t, ldap.Timeout(nil))

	token, err := client.Login(ctx, "bob", "bob-pw")
	require.NoError(t, err)

	groups, err := client.WithToken(token.AccessToken).GetGroups(ctx, "bob")
	assert.Nil(t, groups)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsTimeout())
}

func TestHealthAndReady(t *testing.T) {
	ctx := context.Background()
	client := newServer(t, ldap.OK(nil))

	h, err := client.Health(ctx)
	require.NoError(t, err)
	assert.True(t, h.Healthy())
	assert.Equal(t, "filerealm", h.Data["service"])

	r, err := client.Ready(ctx)
	require.NoError(t, err)
	assert.Equal(t, "file1", r.Data["realm"])
	assert.Equal(t, float64(2), r.Data["users"])
}

func TestAPIError_NonProblemBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL).Health(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.Title)
	assert.Equal(t, "upstream exploded", apiErr.Detail)
	assert.Equal(t, "502 Bad Gateway: upstream exploded", apiErr.Error())
}

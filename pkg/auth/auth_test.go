package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider is a test Provider.
type mockProvider struct {
	name     string
	supports func(username string) bool
	result   Result
	err      error
	calls    int
	mu       sync.Mutex
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Supports(username string) bool { return m.supports(username) }

func (m *mockProvider) Authenticate(_ context.Context, _ Credentials) (Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.result, m.err
}

func always(string) bool { return true }
func never(string) bool  { return false }

func TestAuthenticator_FirstSuccessWins(t *testing.T) {
	first := &mockProvider{name: "first", supports: always, result: Failure("bad password")}
	second := &mockProvider{name: "second", supports: always, result: Success(&User{Username: "alice", Realm: "second"})}
	third := &mockProvider{name: "third", supports: always, result: Success(&User{Username: "alice", Realm: "third"})}

	a := NewAuthenticator(first, second, third)
	res, err := a.Authenticate(context.Background(), Credentials{Username: "alice", Password: []byte("pw")})
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Equal(t, "second", res.User.Realm)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, third.calls)
}

func TestAuthenticator_SkipsUnsupported(t *testing.T) {
	skipped := &mockProvider{name: "skipped", supports: never}
	ok := &mockProvider{name: "ok", supports: always, result: Success(&User{Username: "bob"})}

	res, err := NewAuthenticator(skipped, ok).Authenticate(context.Background(), Credentials{Username: "bob"})
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.Zero(t, skipped.calls)
}

func TestAuthenticator_NoProviderSupportsUser(t *testing.T) {
	a := NewAuthenticator(&mockProvider{name: "nope", supports: never})
	res, err := a.Authenticate(context.Background(), Credentials{Username: "carol"})
	assert.ErrorIs(t, err, ErrUnsupportedMechanism)
	assert.False(t, res.IsSuccess())
}

func TestAuthenticator_AllReject(t *testing.T) {
	a := NewAuthenticator(
		&mockProvider{name: "a", supports: always, result: Failure("x")},
		&mockProvider{name: "b", supports: always, result: Failure("y")},
	)
	res, err := a.Authenticate(context.Background(), Credentials{Username: "dave"})
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Nil(t, res.User)
}

func TestAuthenticator_ErrorStopsChain(t *testing.T) {
	boom := errors.New("directory unavailable")
	broken := &mockProvider{name: "broken", supports: always, err: boom}
	later := &mockProvider{name: "later", supports: always, result: Success(&User{Username: "eve"})}

	res, err := NewAuthenticator(broken, later).Authenticate(context.Background(), Credentials{Username: "eve"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.IsSuccess())
	assert.Zero(t, later.calls)
}

func TestAuthenticator_EmptyUsername(t *testing.T) {
	_, err := NewAuthenticator().Authenticate(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResult(t *testing.T) {
	assert.False(t, Result{Status: StatusSuccess}.IsSuccess(), "success without a user is not a success")
	assert.Equal(t, "success", StatusSuccess.String())
	assert.Equal(t, "failure", Failure("").Status.String())
}

func TestUser(t *testing.T) {
	u := &User{Username: "alice", Roles: []string{"admin", "user"}}
	assert.True(t, u.HasRole("admin"))
	assert.False(t, u.HasRole("superuser"))

	var nilUser *User
	assert.False(t, nilUser.HasRole("admin"))
}

func TestCredentialsZero(t *testing.T) {
	c := Credentials{Username: "alice", Password: []byte("secret")}
	c.Zero()
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, c.Password)
}

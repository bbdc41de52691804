package file

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filerealm/pkg/auth"
	"github.com/marmos91/filerealm/pkg/metrics"
)

func newTestRealm(t *testing.T, m metrics.RealmMetrics) *Realm {
	t.Helper()
	n := newManualNotifier()

	users, err := NewStore(copyFixture(t, "users"), n)
	require.NoError(t, err)
	roles, err := NewRolesStore(copyFixture(t, "users_roles"), n)
	require.NoError(t, err)

	return NewRealm("file1", users, roles, m)
}

func TestRealm_Authenticate(t *testing.T) {
	m := &recordingMetrics{}
	r := newTestRealm(t, m)

	assert.Equal(t, "file1", r.Name())
	assert.True(t, r.Supports("bcrypt"))
	assert.False(t, r.Supports("nobody"))

	res, err := r.Authenticate(context.Background(), auth.Credentials{Username: "bcrypt", Password: []byte("test123")})
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Equal(t, &auth.User{Username: "bcrypt", Realm: "file1", Roles: []string{"admin", "user"}}, res.User)

	res, err = r.Authenticate(context.Background(), auth.Credentials{Username: "bcrypt", Password: []byte("nope")})
	require.NoError(t, err)
	assert.False(t, res.IsSuccess())

	res, err = r.Authenticate(context.Background(), auth.Credentials{Username: "ghost", Password: []byte("x")})
	require.NoError(t, err)
	assert.False(t, res.IsSuccess())

	assert.Equal(t, []authObs{
		{realm: "file1", outcome: metrics.OutcomeSuccess},
		{realm: "file1", outcome: metrics.OutcomeFailure},
		{realm: "file1", outcome: metrics.OutcomeUnknown},
	}, m.attempts)
}

func TestRealm_OutcomeMatchesResultDuringReloads(t *testing.T) {
	path := writeLines(t, "a:{plain}a")
	n := newManualNotifier()
	users, err := NewStore(path, n)
	require.NoError(t, err)
	m := &recordingMetrics{}
	r := NewRealm("file1", users, nil, m)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		with, without := []byte("a:{plain}a\n"), []byte("b:{plain}b\n")
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			content := with
			if i%2 == 1 {
				content = without
			}
			_ = os.WriteFile(path, content, 0o600)
			n.fire(path)
		}
	}()

	var messages []string
	for range 200 {
		res, err := r.Authenticate(context.Background(), auth.Credentials{Username: "a", Password: []byte("wrong")})
		require.NoError(t, err)
		messages = append(messages, res.Message)
	}
	close(stop)
	wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.attempts, len(messages))
	for i, msg := range messages {
		want := metrics.OutcomeFailure
		if msg == "unknown user" {
			want = metrics.OutcomeUnknown
		}
		assert.Equal(t, want, m.attempts[i].outcome, "attempt %d: %s", i, msg)
	}
}

func TestRealm_InAuthenticatorChain(t *testing.T) {
	r := newTestRealm(t, nil)
	a := auth.NewAuthenticator(r)

	res, err := a.Authenticate(context.Background(), auth.Credentials{Username: "sha", Password: []byte("test123")})
	require.NoError(t, err)
	assert.True(t, res.User.HasRole("user"))

	_, err = a.Authenticate(context.Background(), auth.Credentials{Username: "ghost", Password: []byte("x")})
	assert.ErrorIs(t, err, auth.ErrUnsupportedMechanism)

	_, err = a.Authenticate(context.Background(), auth.Credentials{Username: "sha", Password: []byte("x")})
	assert.ErrorIs(t, err, auth.ErrAuthFailed)
}

func TestRealm_WithoutRoles(t *testing.T) {
	users, err := NewStore(copyFixture(t, "users"), newManualNotifier())
	require.NoError(t, err)
	r := NewRealm("file2", users, nil, nil)

	res, err := r.Authenticate(context.Background(), auth.Credentials{Username: "plain", Password: []byte("test123")})
	require.NoError(t, err)
	require.True(t, res.IsSuccess())
	assert.Empty(t, res.User.Roles)
	assert.Same(t, users, r.Users())
}

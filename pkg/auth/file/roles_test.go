package file

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filerealm/pkg/watcher"
)

func TestParseRoles_Fixture(t *testing.T) {
	snap, err := ParseRoles(filepath.Join("testdata", "users_roles"), Strict)
	require.NoError(t, err)

	assert.Equal(t, []string{"admin", "user"}, snap.Roles("bcrypt"))
	assert.Equal(t, []string{"admin"}, snap.Roles("md5"))
	assert.Equal(t, []string{"user"}, snap.Roles("plain"))
	assert.Equal(t, []string{"readonly"}, snap.Roles("crypt"))
	assert.Empty(t, snap.Roles("bcrypt10"))
	assert.Equal(t, 5, snap.Len())
}

func TestParseRoles_InvalidLines(t *testing.T) {
	logs := captureLogs(t)
	path := writeLines(t,
		"admin",
		":alice",
		"ops:,, ,alice,alice",
		"empty:",
	)

	snap, err := ParseRoles(path, Strict)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops"}, snap.Roles("alice"))
	assert.Equal(t, 1, snap.Len())
	assert.Len(t, logs.linesWith("invalid entry in users_roles file"), 2)
}

func TestParseRoles_Undecodable(t *testing.T) {
	path := writeTemp(t, utf16Content("admin:alice\n"))

	_, err := ParseRoles(path, Strict)
	assert.ErrorIs(t, err, ErrDecode)

	snap, err := ParseRoles(path, Lenient)
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
}

func TestParseRoles_Missing(t *testing.T) {
	snap, err := ParseRoles(filepath.Join(t.TempDir(), "users_roles"), Strict)
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
}

func TestRoleSnapshot_RolesIsCopy(t *testing.T) {
	snap, err := ParseRoles(filepath.Join("testdata", "users_roles"), Strict)
	require.NoError(t, err)

	roles := snap.Roles("bcrypt")
	roles[0] = "root"
	assert.Equal(t, []string{"admin", "user"}, snap.Roles("bcrypt"))
}

func TestRolesStore_Reload(t *testing.T) {
	path := copyFixture(t, "users_roles")
	n := newManualNotifier()

	var calls atomic.Int32
	s, err := NewRolesStore(path, n, WithOnReloaded(func() { calls.Add(1) }))
	require.NoError(t, err)
	assert.Equal(t, []string{"readonly"}, s.Roles("crypt"))

	require.NoError(t, os.WriteFile(path, []byte("admin:crypt\n"), 0o600))
	n.fire(path)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"admin"}, s.Roles("crypt"))
	assert.Empty(t, s.Roles("bcrypt"))

	// Unreadable content empties the mapping.
	require.NoError(t, os.WriteFile(path, utf16Content("admin:crypt\n"), 0o600))
	n.fire(path)
	assert.Zero(t, s.Snapshot().Len())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, n.closeCount(path))
}

func TestRolesStore_EditDuringConstructionIsNotLost(t *testing.T) {
	path := copyFixture(t, "users_roles")
	w := watcher.New(watcher.Config{Interval: time.Hour})
	t.Cleanup(w.Stop)

	n := &editingNotifier{Notifier: w, edit: func() {
		require.NoError(t, os.WriteFile(path, []byte("admin:crypt\n"), 0o600))
	}}
	s, err := NewRolesStore(path, n)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	w.Check()
	assert.Equal(t, []string{"admin"}, s.Roles("crypt"))
	assert.Empty(t, s.Roles("bcrypt"))
}

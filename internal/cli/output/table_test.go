package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserTable(t *testing.T) {
	users := UserTable{
		{Username: "alice", Scheme: "bcrypt", Roles: []string{"admin", "user"}},
		{Username: "bob", Scheme: "sha1"},
	}

	assert.Equal(t, []string{"Username", "Scheme", "Roles"}, users.Headers())
	rows := users.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"alice", "bcrypt", "admin,user"}, rows[0])
	assert.Equal(t, []string{"bob", "sha1", "-"}, rows[1])
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	err := PrintTable(&buf, UserTable{{Username: "alice", Scheme: "bcrypt"}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "USERNAME")
	assert.Contains(t, out, "SCHEME")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "bcrypt")
}

func TestSimpleTable(t *testing.T) {
	var buf bytes.Buffer
	err := SimpleTable(&buf, [][2]string{{"Realm", "file1"}, {"Users", "2"}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Realm")
	assert.Contains(t, out, "file1")
	assert.Contains(t, out, "Users")
}

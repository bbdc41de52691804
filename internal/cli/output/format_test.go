package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{name: "table", input: "table", want: FormatTable},
		{name: "empty defaults to table", input: "", want: FormatTable},
		{name: "JSON uppercase", input: "JSON", want: FormatJSON},
		{name: "yml alias", input: "yml", want: FormatYAML},
		{name: "whitespace trimmed", input: "  yaml  ", want: FormatYAML},
		{name: "invalid format", input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinter_Print(t *testing.T) {
	users := UserTable{{Username: "alice", Scheme: "bcrypt", Roles: []string{"admin"}}}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatJSON, false).Print(users))
	var decoded []UserRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, []UserRow(users), decoded)

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatYAML, false).Print(users))
	assert.Contains(t, buf.String(), "username: alice")

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(map[string]int{"users": 1}))
	assert.Contains(t, buf.String(), `"users": 1`)
}

func TestPrinter_Messages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	p.Success("user alice added")
	p.Warning("users file missing")
	assert.Equal(t, "user alice added\nusers file missing\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatTable, true).Error("failed")
	assert.Equal(t, "\033[31mfailed\033[0m\n", buf.String())
}

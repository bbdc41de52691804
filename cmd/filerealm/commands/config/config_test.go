package config

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filerealm/pkg/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	showOutput, showWithSecrets = "yaml", false

	// The root command normally provides --config.
	if Cmd.PersistentFlags().Lookup("config") == nil {
		Cmd.PersistentFlags().String("config", "", "config file")
	}

	var buf bytes.Buffer
	Cmd.SetOut(&buf)
	Cmd.SetErr(&buf)
	Cmd.SetArgs(args)
	err := Cmd.Execute()
	return buf.String(), err
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.InitConfigToPath(path, false))

	out, err := run(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "Realm:           file1")
	assert.Contains(t, out, "is not readable")
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := run(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "configuration file not found")
}

func TestShow_RedactsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.InitConfigToPath(path, false))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	out, err := run(t, "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "realm:")
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, cfg.API.JWT.Secret)

	out, err = run(t, "show", "--config", path, "--show-secrets", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, cfg.API.JWT.Secret)
}

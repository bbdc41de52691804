package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# filerealm Configuration File
#
# Every value can be overridden with an environment variable named
# FILEREALM_<SECTION>_<KEY>, e.g. FILEREALM_LOGGING_LEVEL=DEBUG.
# FILEREALM_USERS_FILE overrides realm.users_file.
#
# The users file holds one "username:hash" entry per line. Manage it with
#   filerealm users add <username>
# Changes are picked up without a restart.

`

// InitConfig writes a default configuration to the default location and
// returns its path.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a default configuration with a freshly generated
// JWT secret to path. An existing file is only replaced when force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	cfg := GetDefaultConfig()
	cfg.API.JWT.Secret = secret
	cfg.Realm.UsersFile = filepath.Join(filepath.Dir(path), "users")
	cfg.Realm.UsersRolesFile = filepath.Join(filepath.Dir(path), "users_roles")

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), body...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

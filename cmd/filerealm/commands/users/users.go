// Package users implements the users file management subcommands.
package users

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/internal/cli/prompt"
	"github.com/marmos91/filerealm/pkg/config"
)

var (
	usersFile string
	password  string
)

// Cmd is the users subcommand.
var Cmd = &cobra.Command{
	Use:   "users",
	Short: "Manage the users file",
	Long: `Manage the users file of the realm.

Changes are written atomically, so a running server picks them up on its
next reload without ever reading a partial file.

Subcommands:
  add      Add a user
  passwd   Change a user's password
  remove   Remove a user
  list     List users
  verify   Check the users file for problems`,
}

func init() {
	Cmd.PersistentFlags().StringVar(&usersFile, "users-file", "", "users file (default: from config, or $FILEREALM_USERS_FILE)")

	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(passwdCmd)
	Cmd.AddCommand(removeCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(verifyCmd)
}

// resolveFiles returns the users and users_roles file paths. An explicit
// --users-file wins over configuration.
func resolveFiles(cmd *cobra.Command) (string, string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", "", err
	}
	if usersFile != "" {
		return usersFile, cfg.Realm.UsersRolesFile, nil
	}
	return config.ResolveUsersFile(cfg.Realm), cfg.Realm.UsersRolesFile, nil
}

// readPassword returns --password or prompts for a new one.
func readPassword(username string) ([]byte, error) {
	if password != "" {
		if err := prompt.ValidatePassword(password); err != nil {
			return nil, err
		}
		return []byte(password), nil
	}
	pw, err := prompt.NewPassword(username)
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			return nil, fmt.Errorf("cancelled")
		}
		return nil, err
	}
	return []byte(pw), nil
}

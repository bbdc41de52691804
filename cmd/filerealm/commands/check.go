package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/internal/cli/prompt"
	"github.com/marmos91/filerealm/pkg/auth"
	"github.com/marmos91/filerealm/pkg/auth/file"
	"github.com/marmos91/filerealm/pkg/config"
	"github.com/marmos91/filerealm/pkg/watcher"
)

var (
	checkUsersFile     string
	checkPasswordStdin bool
)

var checkPasswordCmd = &cobra.Command{
	Use:   "check-password <username>",
	Short: "Verify a password against the users file",
	Long: `Verify a password against the users file without starting the server.

The password is prompted for, or read from stdin with --password-stdin.
Exits non-zero when the password does not match.

Examples:
  filerealm check-password alice
  echo -n "$PASSWORD" | filerealm check-password alice --password-stdin`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckPassword,
}

func init() {
	checkPasswordCmd.Flags().StringVar(&checkUsersFile, "users-file", "", "users file (default: from config, or $FILEREALM_USERS_FILE)")
	checkPasswordCmd.Flags().BoolVar(&checkPasswordStdin, "password-stdin", false, "Read the password from stdin")
}

func runCheckPassword(cmd *cobra.Command, args []string) error {
	username := args[0]

	path := checkUsersFile
	if path == "" {
		cfg, err := config.Load(GetConfigFile())
		if err != nil {
			return err
		}
		path = config.ResolveUsersFile(cfg.Realm)
	}

	var password string
	if checkPasswordStdin {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(string(data), "\r\n")
	} else {
		var err error
		if password, err = prompt.Password(fmt.Sprintf("Password for %s", username)); err != nil {
			return err
		}
	}

	// Surface read and decode errors that the store would swallow.
	if _, err := file.Parse(path, file.Strict); err != nil {
		return err
	}
	w := watcher.New(watcher.Config{})
	defer w.Stop()
	store, err := file.NewStore(path, w)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	realm := file.NewRealm("check", store, nil, nil)

	creds := auth.Credentials{Username: username, Password: []byte(password)}
	defer creds.Zero()

	_, err = auth.NewAuthenticator(realm).Authenticate(context.Background(), creds)
	switch {
	case errors.Is(err, auth.ErrUnsupportedMechanism):
		return fmt.Errorf("user %q not found in %s", username, path)
	case errors.Is(err, auth.ErrAuthFailed):
		return fmt.Errorf("password for %s does not match", username)
	case err != nil:
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Password for %s is valid\n", username)
	return nil
}

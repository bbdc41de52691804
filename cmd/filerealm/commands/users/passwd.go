package users

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/internal/cli/output"
	"github.com/marmos91/filerealm/pkg/auth/file"
	"github.com/marmos91/filerealm/pkg/auth/hasher"
)

var passwdScheme string

var passwdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change a user's password",
	Args:  cobra.ExactArgs(1),
	RunE:  runPasswd,
}

func init() {
	passwdCmd.Flags().StringVar(&passwdScheme, "scheme", "bcrypt", "Hash scheme (bcrypt|apr1|sha|plain)")
	passwdCmd.Flags().StringVarP(&password, "password", "p", "", "New password (prompted when omitted)")
}

func runPasswd(cmd *cobra.Command, args []string) error {
	username := args[0]
	scheme, err := hasher.ParseScheme(passwdScheme)
	if err != nil {
		return err
	}
	path, _, err := resolveFiles(cmd)
	if err != nil {
		return err
	}

	entries, err := file.ReadEntries(path)
	if err != nil {
		return err
	}
	if _, exists := entries.Get(username); !exists {
		return fmt.Errorf("user %q not found in %s", username, path)
	}

	hash, err := hashPassword(scheme, username)
	if err != nil {
		return err
	}

	err = file.Update(path, func(e *file.Entries) error {
		if _, exists := e.Get(username); !exists {
			return fmt.Errorf("user %q not found in %s", username, path)
		}
		_, err := e.Set(username, hash)
		return err
	})
	if err != nil {
		return err
	}

	output.NewPrinter(cmd.OutOrStdout(), output.FormatTable, false).
		Success(fmt.Sprintf("Password changed for %s", username))
	return nil
}

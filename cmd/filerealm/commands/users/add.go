package users

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/internal/cli/output"
	"github.com/marmos91/filerealm/pkg/auth/file"
	"github.com/marmos91/filerealm/pkg/auth/hasher"
)

var addScheme string

var addCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a user",
	Long: `Add a user to the users file. Prompts for the password unless
--password is given.

Examples:
  filerealm users add alice
  filerealm users add bob --scheme apr1 --password s3cret!`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addScheme, "scheme", "bcrypt", "Hash scheme (bcrypt|apr1|sha|plain)")
	addCmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when omitted)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	username := args[0]
	if err := file.ValidateUsername(username); err != nil {
		return err
	}
	scheme, err := hasher.ParseScheme(addScheme)
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
	if _, exists := entries.Get(username); exists {
		return fmt.Errorf("user %q already exists in %s (use 'filerealm users passwd')", username, path)
	}

	hash, err := hashPassword(scheme, username)
	if err != nil {
		return err
	}

	err = file.Update(path, func(e *file.Entries) error {
		if _, exists := e.Get(username); exists {
			return fmt.Errorf("user %q already exists in %s", username, path)
		}
		_, err := e.Set(username, hash)
		return err
	})
	if err != nil {
		return err
	}

	output.NewPrinter(cmd.OutOrStdout(), output.FormatTable, false).
		Success(fmt.Sprintf("User %s added to %s", username, path))
	return nil
}

func hashPassword(scheme hasher.Scheme, username string) (string, error) {
	pw, err := readPassword(username)
	if err != nil {
		return "", err
	}
	defer clear(pw)
	return hasher.Hash(scheme, pw)
}

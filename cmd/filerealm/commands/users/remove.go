package users

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/internal/cli/output"
	"github.com/marmos91/filerealm/internal/cli/prompt"
	"github.com/marmos91/filerealm/pkg/auth/file"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:     "remove <username>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove a user",
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip confirmation")
}

func runRemove(cmd *cobra.Command, args []string) error {
	username := args[0]
	path, _, err := resolveFiles(cmd)
	if err != nil {
		return err
	}

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove user %s", username), removeForce)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	err = file.Update(path, func(e *file.Entries) error {
		if !e.Remove(username) {
			return fmt.Errorf("user %q not found in %s", username, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	output.NewPrinter(cmd.OutOrStdout(), output.FormatTable, false).
		Success(fmt.Sprintf("User %s removed", username))
	return nil
}

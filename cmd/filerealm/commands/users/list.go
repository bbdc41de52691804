package users

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/internal/cli/output"
	"github.com/marmos91/filerealm/pkg/auth/file"
	"github.com/marmos91/filerealm/pkg/auth/hasher"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	Long: `List users with their hash scheme and roles.

Examples:
  filerealm users list
  filerealm users list -o json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}
	path, rolesPath, err := resolveFiles(cmd)
	if err != nil {
		return err
	}

	snap, err := file.Parse(path, file.Strict)
	if err != nil {
		return err
	}
	// A missing users_roles file means no roles.
	roles, err := file.ParseRoles(rolesPath, file.Strict)
	if err != nil {
		return err
	}

	table := make(output.UserTable, 0, snap.Len())
	for _, name := range snap.Usernames() {
		hash, _ := snap.Lookup(name)
		table = append(table, output.UserRow{
			Username: name,
			Scheme:   string(hasher.Detect(hash)),
			Roles:    roles.Roles(name),
		})
	}
	return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(table)
}

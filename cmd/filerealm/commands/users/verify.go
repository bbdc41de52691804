package users

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/internal/cli/output"
	"github.com/marmos91/filerealm/pkg/auth/file"
	"github.com/marmos91/filerealm/pkg/auth/hasher"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the users file for problems",
	Long: `Parse the users file strictly and report malformed lines, duplicate
users and hashes in an unknown scheme. Exits non-zero when problems are found.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	path, _, err := resolveFiles(cmd)
	if err != nil {
		return err
	}
	report, err := file.ParseWithReport(path, file.Strict)
	if err != nil {
		return err
	}

	var unknown []string
	for _, name := range report.Snapshot.Usernames() {
		hash, _ := report.Snapshot.Lookup(name)
		if hasher.Detect(hash) == hasher.SchemeUnknown {
			unknown = append(unknown, name)
		}
	}

	skipped := make([]string, len(report.Skipped))
	for i, line := range report.Skipped {
		skipped[i] = strconv.Itoa(line)
	}

	out := cmd.OutOrStdout()
	_ = output.SimpleTable(out, [][2]string{
		{"File", path},
		{"Users", strconv.Itoa(report.Snapshot.Len())},
		{"Skipped lines", listOrNone(skipped)},
		{"Duplicates", listOrNone(report.Duplicates)},
		{"Unknown schemes", listOrNone(unknown)},
	})

	problems := len(report.Skipped) + len(report.Duplicates) + len(unknown)
	if problems > 0 {
		return fmt.Errorf("%s has %d problem(s)", path, problems)
	}
	output.NewPrinter(out, output.FormatTable, false).Success("OK")
	return nil
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

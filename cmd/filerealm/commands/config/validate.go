package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the filerealm configuration file.

Checks for syntax errors, missing required fields and invalid values. When
trust restrictions are enabled the restrictions file is parsed too.

Examples:
  # Validate default config
  filerealm config validate

  # Validate specific config file
  filerealm config validate --config /etc/filerealm/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}
	if err := config.ValidateTrustRestrictions(cfg); err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	usersFile := config.ResolveUsersFile(cfg.Realm)

	var warnings []string
	if !cfg.API.HasJWTSecret() {
		warnings = append(warnings, "JWT secret not configured - the server will refuse to start")
	}
	if _, err := os.Stat(usersFile); err != nil {
		warnings = append(warnings, fmt.Sprintf("users file %s is not readable - the realm will have no users", usersFile))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	fmt.Fprintf(out, "\nConfiguration summary:\n")
	fmt.Fprintf(out, "  Realm:           %s\n", cfg.Realm.Name)
	fmt.Fprintf(out, "  Users file:      %s\n", usersFile)
	fmt.Fprintf(out, "  API port:        %d\n", cfg.API.Port)
	fmt.Fprintf(out, "  LDAP groups:     %t\n", cfg.LDAP.Enabled)
	fmt.Fprintf(out, "  Trust:           %t\n", cfg.Trust.Enabled)
	fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

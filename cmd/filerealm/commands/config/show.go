package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/internal/cli/output"
	"github.com/marmos91/filerealm/pkg/config"
)

var (
	showOutput      string
	showWithSecrets bool
)

const redacted = "********"

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current filerealm configuration, with defaults applied.

Secrets are redacted unless --show-secrets is given.

Examples:
  # Show default config as YAML
  filerealm config show

  # Show as JSON
  filerealm config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
	showCmd.Flags().BoolVar(&showWithSecrets, "show-secrets", false, "Print secrets in clear")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if !showWithSecrets {
		if cfg.API.JWT.Secret != "" {
			cfg.API.JWT.Secret = redacted
		}
		if cfg.LDAP.BindPassword != "" {
			cfg.LDAP.BindPassword = redacted
		}
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}

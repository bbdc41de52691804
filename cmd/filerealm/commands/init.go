package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/filerealm/pkg/api"
	"github.com/marmos91/filerealm/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample filerealm configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/filerealm/config.yaml
and points the realm at a users file next to it.

Examples:
  # Initialize with default location
  filerealm init

  # Initialize with custom path
  filerealm init --config /etc/filerealm/config.yaml

  # Force overwrite existing config
  filerealm init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()

	var err error
	if configPath != "" {
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Add a user with: filerealm users add <username>")
	fmt.Fprintln(out, "  2. Start the server with: filerealm start")
	fmt.Fprintf(out, "  3. Or specify custom config: filerealm start --config %s\n", configPath)
	fmt.Fprintln(out, "\nSecurity note:")
	fmt.Fprintln(out, "  A random JWT secret has been generated for development use.")
	fmt.Fprintln(out, "  For production, provide it through the environment instead:")
	fmt.Fprintf(out, "    export %s=$(openssl rand -hex 32)\n", api.EnvJWTSecret)
	return nil
}

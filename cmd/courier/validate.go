package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"mercator-hq/courier/pkg/cli"
	"mercator-hq/courier/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file, apply defaults and COURIER_* environment
overrides, and report every invalid field.

The exit status is 0 for a valid configuration and 2 otherwise.

Examples:
  # Validate a configuration file
  courier validate --config /etc/courier/config.yaml

  # Show the effective settings as well
  courier validate --config config.yaml --verbose`,
	Args: cobra.NoArgs,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.WrapConfigError(configLabel(), err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid (%s)\n", configLabel())

	if verbose {
		fmt.Fprintf(out, "  proxy:      %s\n", cfg.Proxy.ListenAddress)
		if cfg.Admin.Enabled {
			fmt.Fprintf(out, "  admin:      %s\n", cfg.Admin.ListenAddress)
		} else {
			fmt.Fprintln(out, "  admin:      disabled")
		}
		fmt.Fprintf(out, "  resolver:   %s\n", cfg.Resolver.Mode)
		if cfg.AccessLog.Enabled {
			fmt.Fprintf(out, "  access log: %s\n", cfg.AccessLog.Backend)
		} else {
			fmt.Fprintln(out, "  access log: disabled")
		}
		fmt.Fprintf(out, "  tracing:    %t\n", cfg.Telemetry.Tracing.Enabled)
	}

	return nil
}

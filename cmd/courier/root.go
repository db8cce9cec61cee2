package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"mercator-hq/courier/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Mercator Courier - minimal HTTP/1.0 forwarding proxy",
	Long: `Mercator Courier is a minimal HTTP/1.0 forwarding proxy.

Clients send absolute-form GET requests ("GET http://host[:port]/path").
Courier resolves the origin, forwards a canonical HTTP/1.0 request that
carries only the Authorization, From, If-Modified-Since, Referer and
User-Agent headers, and relays the response back unchanged.

Without --config the built-in defaults are used; COURIER_* environment
variables override both.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults are used when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configLabel names the configuration source in error messages.
func configLabel() string {
	if cfgFile == "" {
		return "defaults"
	}
	return cfgFile
}

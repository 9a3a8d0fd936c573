// Package main is the entry point for the creditpulse CLI.
//
// Usage:
//
//	creditpulse serve -c config.yaml    # Start the web dashboard
//	creditpulse watch -c config.yaml    # Terminal dashboard
//	creditpulse validate -c config.yaml # Validate configuration
//	creditpulse version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "creditpulse",
	Short: "A live dashboard for carbon credit analytics",
	Long: `CreditPulse keeps a credits-marketplace analytics dashboard in sync with
its API.

It fetches the analytics document, validates it, caches it with a TTL,
refreshes it in the background and serves it to a web page over
Server-Sent Events and WebSocket.

Quick start:
  1. Create a config file (creditpulse.yaml)
  2. Run: creditpulse serve -c creditpulse.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  title: H2Ledger
  source:
    url: http://localhost:8000/api/dashboard/analytics/
  sync:
    cache_ttl: 30s
    poll_interval: 60s`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "creditpulse %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
}

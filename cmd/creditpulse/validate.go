package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/creditpulse/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a CreditPulse configuration file without starting the server.

This command parses the YAML or TOML, expands environment variables, and
validates all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  creditpulse validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	rate := "unlimited"
	if cfg.Source.RateLimit > 0 {
		rate = fmt.Sprintf("%g/s (burst %d)", cfg.Source.RateLimit, cfg.Source.RateBurst)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Source:        %s %s\n", cfg.Source.Method, cfg.Source.URL)
	fmt.Fprintf(out, "  Headers:       %d\n", len(cfg.Source.Headers))
	fmt.Fprintf(out, "  Rate limit:    %s\n", rate)
	fmt.Fprintf(out, "  Cache TTL:     %s\n", cfg.Sync.CacheTTL.Duration())
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.Sync.PollInterval.Duration())
	fmt.Fprintf(out, "  Fetch timeout: %s\n", cfg.Sync.FetchTimeout.Duration())
	fmt.Fprintf(out, "  Retries:       %d (base delay %s)\n", *cfg.Sync.MaxRetries, cfg.Sync.RetryBaseDelay.Duration())

	return nil
}

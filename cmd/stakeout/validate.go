package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfenwick/stakeout/config"
)

// validateCmd validates a config file without starting the watcher.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a stakeout configuration file without starting the watcher.

This command parses the YAML, expands environment variables, and validates
all fields, including that every configured channel can be constructed.
It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  stakeout validate -c config.yaml
  stakeout validate --config /etc/stakeout/config.yaml`,
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

	// building exercises per-channel constructor validation too
	if _, err := config.BuildOptions(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Target:   %s\n", cfg.Target.URL)
	fmt.Printf("  Query:    %s %q", cfg.Query.Mode, cfg.Query.Value)
	if cfg.Query.Locator != "" {
		fmt.Printf(" at %s", cfg.Query.Locator)
	}
	if cfg.Query.Negative {
		fmt.Printf(" (negative)")
	}
	fmt.Println()
	fmt.Printf("  Interval: %s\n", cfg.Interval.Duration())
	fmt.Printf("  Channels: %d\n", len(cfg.Channels))

	return nil
}

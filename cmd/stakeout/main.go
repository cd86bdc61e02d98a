// Package main is the entry point for the stakeout CLI.
//
// Stakeout can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	stakeout watch -c config.yaml    # Start watching the target
//	stakeout validate -c config.yaml # Validate configuration
//	stakeout version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "stakeout",
	Short: "Watch a web resource and get notified on change",
	Long: `Stakeout polls a URL at a configurable interval, extracts a value
(JSON locator or HTML text search), and sends notifications through
Discord, webhooks, or email - but only when the match state actually
changes, never on every poll.

Quick start:
  1. Create a config file (stakeout.yaml)
  2. Run: stakeout watch -c stakeout.yaml

Example config:
  target:
    url: https://shop.example.com/api/item/42
  query:
    mode: json
    locator: $.data.status
    value: available
  interval: 5m
  channels:
    - type: discord
      webhook_url: ${DISCORD_WEBHOOK_URL}`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this stakeout binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stakeout %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mfenwick/stakeout"
	"github.com/mfenwick/stakeout/config"
)

const shutdownTimeout = 10 * time.Second

// newLogger creates a JSON logger for CLI use.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// watchCmd starts watching the configured target.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start watching the configured target",
	Long: `Start watching the target described in the configuration file.

The watcher will:
  - Load configuration from the specified YAML file
  - Check the target immediately, then at the configured interval
  - Send notifications through every configured channel when the
    match state changes

Secrets referenced as ${VAR} in the config are read from the environment;
a .env file in the working directory is loaded automatically if present.

The watcher runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  stakeout watch -c config.yaml
  stakeout watch --config /etc/stakeout/config.yaml --debug`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	watchCmd.Flags().Bool("debug", false, "enable debug logging")
	_ = watchCmd.MarkFlagRequired("config")
}

func runWatch(cmd *cobra.Command, args []string) error {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := newLogger(debug)

	// optional .env for webhook URLs and SMTP credentials
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"url", cfg.Target.URL,
		"mode", cfg.Query.Mode,
		"interval", cfg.Interval.Duration().String(),
		"channels", len(cfg.Channels),
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts, stakeout.WithLogger(logger))

	sk, err := stakeout.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create stakeout: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start watcher - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- sk.Start(ctx)
	}()

	// wait for the watcher to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("watcher error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("watcher error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

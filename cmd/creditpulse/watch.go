package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/creditpulse/config"
	"github.com/jpalmerr/creditpulse/internal/app"
	"github.com/jpalmerr/creditpulse/internal/tui"
)

// watchCmd shows the dashboard in the terminal.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the dashboard in the terminal",
	Long: `Show the analytics dashboard in the terminal.

The same synchronizer as "serve" runs in the background; no HTTP server is
started. Press r to force a refresh and q to quit.

Logs would corrupt the screen, so they are discarded unless --log-file is set.

Example:
  creditpulse watch -c config.yaml --log-file creditpulse.log`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	watchCmd.Flags().String("log-file", "", "append logs to this file")
	_ = watchCmd.MarkFlagRequired("config")
}

func runWatch(cmd *cobra.Command, args []string) error {
	var logOut io.Writer = io.Discard
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := newLogger(cmd, logOut)
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	synchronizer := a.Synchronizer()
	handle, err := synchronizer.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer handle.Unsubscribe()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return tui.Run(tui.Options{
		Context: ctx,
		Source:  synchronizer,
		Title:   cfg.Title,
	})
}

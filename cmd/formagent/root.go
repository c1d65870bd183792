package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/formagent/formagent/config"
)

// NewRootCmd creates the root command for formagent.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formagent",
		Short: "Profile-driven form autofill",
		Long: `Formagent fills web forms from a stored profile.

It has three moving parts:
  serve   the profile store (HTTP + SQLite)
  watch   the fill daemon (browser, rescan on DOM growth, message bus)
  fill    one-shot fill of a page

plus profile and site subcommands for editing the profile and toggling
autofill per hostname.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to formagent.yaml")
	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewFillCmd())
	cmd.AddCommand(NewPlanCmd())
	cmd.AddCommand(NewProfileCmd())
	cmd.AddCommand(NewSiteCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup reads the persistent flags into a logger and configuration.
func setup(cmd *cobra.Command) (*slog.Logger, *config.Config, error) {
	levelName, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return logger, cfg, nil
}

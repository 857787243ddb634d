// Package cmd implements the tunedeck CLI.
package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/tunedeck/internal/config"
)

// Version is stamped by the release build.
var Version = "0.3.0"

var (
	flagConfig   string
	flagLogLevel string
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tunedeck",
		Short: "Companion control server for the desktop music player",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(flagLogLevel)
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultPath(), "config file path")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(serveCmd())
	root.AddCommand(tokensCmd())

	return root
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

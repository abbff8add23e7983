// Package cmd implements amp's command-line entrypoint: a minimal cobra
// root wrapping a single `serve` subcommand that boots the HTTP API.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/amp-memory/amp/internal/config"
	"github.com/amp-memory/amp/internal/logging"
)

// logManager is the global logging manager, created in init() and upgraded after config loads.
var logManager *logging.Manager

var rootCmd = &cobra.Command{
	Use:   "amp",
	Short: "Agentic Memory Protocol daemon",
	Long: "amp is a memory substrate for AI coding agents: an object store, a relationship " +
		"graph, hybrid retrieval, and an episodic cache, exposed over an HTTP API.",
	PersistentPreRunE: runInitialize,
}

func init() {
	logManager = logging.NewManager()
	slog.SetDefault(logManager.Logger())

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	if err := config.Init(); err != nil {
		return err
	}

	cfg := config.Get()
	if cfg.LogFile == "" {
		return nil
	}

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.DefaultLevel
		if cfg.LogLevel != "" {
			logger.Warn("invalid log level configured, using default", "configured", cfg.LogLevel, "default", "info")
		}
	}

	if err := logManager.Upgrade(cfg.LogFile, level); err != nil {
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
	}

	return nil
}

// Execute runs the root command, returning the first error encountered.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := rootCmd.Execute()
	if err != nil {
		cmd, _, _ := rootCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = rootCmd
		}

		fmt.Printf("Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Printf("\n")
			cmd.SetOut(os.Stdout)
			_ = cmd.Usage()
		}
		return err
	}

	return nil
}

// Package cmd implements the sidekick command-line interface.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sidekick-cli/sidekick/internal/app"
	"github.com/sidekick-cli/sidekick/internal/config"
	"github.com/sidekick-cli/sidekick/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sidekick",
	Short: "Sidekick is a terminal personal assistant",
	Long: `Sidekick answers free-text questions in the terminal. Calendar
questions are answered from Google Calendar, course and document questions
from locally indexed content, and everything else by the configured
language model.

Running sidekick with no arguments starts an interactive chat.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setupApp loads configuration and initializes the application container.
// Callers own the returned App and must Close it.
func setupApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})
	slog.SetDefault(logger)

	a, err := app.Setup(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}

// closeApp releases the application container, logging close failures.
func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger.Warn("closing application", "error", err)
	}
}

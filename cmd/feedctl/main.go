// Command feedctl is the operator CLI for feedwatch.
//
// Usage:
//
//	feedctl seed -f fixtures.yaml     Load publisher fixtures into the database
//	feedctl poll --publisher 3        Poll one publisher now, following continuation pages
//	feedctl outages                   List publishers currently in outage
//	feedctl migrate [--down]          Create or drop the Postgres schema
//	feedctl version                   Print version information
//
// The database is selected with DB_DRIVER and DATABASE_URL, the same way
// the worker does.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"feedwatch/internal/infra/adapter/persistence"
	"feedwatch/internal/observability/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "feedctl",
	Short: "Operator tooling for the feedwatch poller",
	Long: `feedctl manages the feedwatch database and runs one-off polls.

It shares the worker's environment configuration, so it can be pointed at
the production database or at a local SQLite file.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "feedctl %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	Execute()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return logging.NewTextLogger()
}

// openStore opens the store configured in the environment.
func openStore(ctx context.Context, logger *slog.Logger) (*persistence.Store, error) {
	opts, warnings := persistence.OptionsFromEnv()
	for _, w := range warnings {
		logger.Warn("Configuration fallback applied", slog.String("warning", w))
	}
	store, err := persistence.Open(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", opts.Driver, err)
	}
	return store, nil
}

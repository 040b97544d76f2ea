package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or drop the database schema",
	Long: `Migrate creates the Postgres schema. With --down it drops every table,
which deletes all publishers, subscriptions and events.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("down", false, "Drop the schema instead of creating it")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	down, _ := cmd.Flags().GetBool("down")

	store, err := openStore(cmd.Context(), newLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(down); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if down {
		fmt.Fprintln(cmd.OutOrStdout(), "schema dropped")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
	}
	return nil
}

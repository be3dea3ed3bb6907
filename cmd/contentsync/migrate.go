package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"academy/contentsync/internal/store"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Revert every applied migration instead")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	db, err := store.Open(ctx, databaseDriver, databaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	var versions []string
	if migrateDown {
		versions, err = store.RevertMigrations(ctx, db)
	} else {
		versions, err = store.ApplyMigrations(ctx, db)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	verb := "applied"
	if migrateDown {
		verb = "reverted"
	}
	if len(versions) == 0 {
		fmt.Fprintf(out, "Nothing to do (%s)\n", db.Dialect)
		return nil
	}
	for _, v := range versions {
		fmt.Fprintf(out, "%s %s\n", verb, v)
	}
	log.Info("migrations "+verb, "dialect", db.Dialect, "count", len(versions))
	return nil
}

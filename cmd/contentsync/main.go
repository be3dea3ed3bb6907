package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"academy/contentsync/internal/config"
	"academy/contentsync/internal/logger"
	"academy/contentsync/internal/store"
)

var (
	cfg = config.Load()

	databaseURL    string
	databaseDriver string
	logMode        string
)

var rootCmd = &cobra.Command{
	Use:           "contentsync",
	Short:         "Reconcile authored course content with the content store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", cfg.DatabaseURL, "Content store DSN (DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&databaseDriver, "driver", cfg.DatabaseDriver, "Database driver: pgx or sqlite, inferred from the DSN when empty")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", cfg.LogMode, "Log mode: dev, debug or prod")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "contentsync:", err)
		os.Exit(1)
	}
}

func newLogger() (*logger.Logger, error) {
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// openStore connects to the content store, applying migrations first when
// migrate is set.
func openStore(ctx context.Context, log *logger.Logger, migrate bool) (*store.Store, error) {
	db, err := store.Open(ctx, databaseDriver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if migrate {
		applied, err := store.ApplyMigrations(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		if len(applied) > 0 {
			log.Info("migrations applied", "versions", applied)
		}
	}
	st := store.New(db)
	log.Debug("content store ready", "dialect", st.Dialect())
	return st, nil
}

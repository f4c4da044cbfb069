// Package main is jobctl, the operator CLI for the duunikanban job store:
// schema migrations, one-off ingestion and legacy state file import/export.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/H3199/duunikanban/internal/config"
	"github.com/H3199/duunikanban/internal/db"
	"github.com/H3199/duunikanban/internal/store"
)

var databaseURL string

var rootCmd = &cobra.Command{
	Use:           "jobctl",
	Short:         "Operate the duunikanban job store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "Database URL (default $DATABASE_URL or "+config.DefaultDatabaseURL+")")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveDatabaseURL() string {
	if databaseURL != "" {
		return databaseURL
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return config.DefaultDatabaseURL
}

// openStore opens the store, applying migrations first.
func openStore(ctx context.Context) (store.Store, error) {
	return db.OpenStore(ctx, resolveDatabaseURL(), true)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarrydb/quarry/pkg/config"
	"github.com/quarrydb/quarry/pkg/log"
	"github.com/quarrydb/quarry/pkg/storage"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry - Asynchronous SQL query execution service",
	Long: `Quarry runs SQL queries against remote databases asynchronously,
materialises the results into export files (CSV, Excel, JSON, Feather)
and delivers them to a local directory or a remote host over SCP.

Queries live in a durable Postgres store. The processor admits pending
queries fairly across users under global and per-user concurrency
limits, and records every lifecycle transition on the query row.`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Quarry version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
}

// openStore loads configuration and connects to the query store. Shared
// by the one-shot commands; serve wires its own full stack.
func openStore(ctx context.Context) (*storage.Postgres, error) {
	log.Init(log.Config{Level: log.WarnLevel})

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("QUARRY_DATABASE_URL is required")
	}
	return storage.NewPostgres(ctx, cfg.DatabaseURL)
}

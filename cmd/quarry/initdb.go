package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the query store schema",
	Long: `Create the queries, users and user_settings tables and their indexes.
Safe to run repeatedly: existing objects are left untouched.`,
	RunE: runInitDB,
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to open query store: %v", err)
	}
	defer store.Close()

	if err := store.InitSchema(cmd.Context()); err != nil {
		return fmt.Errorf("failed to initialize schema: %v", err)
	}

	fmt.Println("✓ Schema initialized")
	return nil
}

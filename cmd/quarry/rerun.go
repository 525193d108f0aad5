package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/quarrydb/quarry/pkg/storage"
)

var rerunCmd = &cobra.Command{
	Use:   "rerun QUERY_ID",
	Short: "Resubmit an existing query as a new pending query",
	Long: `Resubmit an existing query. A fresh pending copy is created with the
same inputs and overrides; the original row is left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runRerun,
}

func init() {
	rootCmd.AddCommand(rerunCmd)
}

func runRerun(cmd *cobra.Command, args []string) error {
	queryID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid query id %q", args[0])
	}

	store, err := openStore(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to open query store: %v", err)
	}
	defer store.Close()

	newID, err := store.RerunQuery(cmd.Context(), queryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("query %d not found", queryID)
		}
		return fmt.Errorf("failed to rerun query: %v", err)
	}

	fmt.Printf("✓ Query %d resubmitted as query %d\n", queryID, newID)
	return nil
}

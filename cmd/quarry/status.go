package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarrydb/quarry/pkg/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status QUERY_ID",
	Short: "Show the status of a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	queryID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid query id %q", args[0])
	}

	store, err := openStore(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to open query store: %v", err)
	}
	defer store.Close()

	q, err := store.GetQuery(cmd.Context(), queryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("query %d not found", queryID)
		}
		return fmt.Errorf("failed to get query: %v", err)
	}

	fmt.Printf("Query:     %d\n", q.ID)
	fmt.Printf("User:      %d\n", q.UserID)
	fmt.Printf("Status:    %s\n", q.Status)
	fmt.Printf("Created:   %s\n", q.CreatedAt.Format(time.RFC3339))
	if q.StartedAt != nil {
		fmt.Printf("Started:   %s\n", q.StartedAt.Format(time.RFC3339))
	}
	if q.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", q.CompletedAt.Format(time.RFC3339))
	}
	if q.ErrorMessage != "" {
		fmt.Printf("Error:     %s\n", q.ErrorMessage)
	}

	meta := q.ResultMetadata
	if meta.Rows != nil {
		fmt.Printf("Rows:      %d\n", *meta.Rows)
	}
	if meta.Columns != nil {
		fmt.Printf("Columns:   %d\n", *meta.Columns)
	}
	if meta.FileSize != nil {
		fmt.Printf("File size: %d bytes\n", *meta.FileSize)
	}
	if meta.FinalFilePath != "" {
		fmt.Printf("File:      %s\n", meta.FinalFilePath)
	}

	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quarrydb/quarry/pkg/types"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a query for asynchronous execution",
	Long: `Submit a query described by a YAML file. The query is inserted as
pending and picked up by the processor on its next admission pass.

Example file:

  user_id: 42
  query_text: SELECT * FROM orders WHERE order_date > SYSDATE - 7
  db_username: reporting
  db_password: secret
  db_tns: db.example.com:1521/ORCL
  export_type: excel
  export_location: /srv/reports
  ssh_hostname: reports.example.com

Examples:
  # Submit a query
  quarry submit -f query.yaml`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringP("file", "f", "", "YAML file describing the query (required)")
	_ = submitCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(submitCmd)
}

// querySpec is the on-disk submission format
type querySpec struct {
	UserID         int64  `yaml:"user_id"`
	QueryText      string `yaml:"query_text"`
	DBUsername     string `yaml:"db_username"`
	DBPassword     string `yaml:"db_password"`
	DBTNS          string `yaml:"db_tns"`
	ExportLocation string `yaml:"export_location,omitempty"`
	ExportType     string `yaml:"export_type,omitempty"`
	ExportFilename string `yaml:"export_filename,omitempty"`
	SSHHostname    string `yaml:"ssh_hostname,omitempty"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}

	var spec querySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("failed to parse YAML: %v", err)
	}

	if spec.UserID <= 0 {
		return fmt.Errorf("user_id is required")
	}
	if spec.QueryText == "" {
		return fmt.Errorf("query_text is required")
	}
	if spec.DBTNS == "" {
		return fmt.Errorf("db_tns is required")
	}
	if spec.ExportType != "" && !types.ExportType(spec.ExportType).Valid() {
		return fmt.Errorf("unknown export type %q", spec.ExportType)
	}

	store, err := openStore(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to open query store: %v", err)
	}
	defer store.Close()

	id, err := store.InsertQuery(cmd.Context(), &types.Query{
		UserID:         spec.UserID,
		QueryText:      spec.QueryText,
		DBUsername:     spec.DBUsername,
		DBPassword:     spec.DBPassword,
		DBTNS:          spec.DBTNS,
		ExportLocation: spec.ExportLocation,
		ExportType:     types.ExportType(spec.ExportType),
		ExportFilename: spec.ExportFilename,
		SSHHostname:    spec.SSHHostname,
	})
	if err != nil {
		return fmt.Errorf("failed to submit query: %v", err)
	}

	fmt.Printf("✓ Query submitted (ID: %d)\n", id)
	return nil
}

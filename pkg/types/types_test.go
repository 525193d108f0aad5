package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStatusTransitions tests the lifecycle DAG edge validation
func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    QueryStatus
		to      QueryStatus
		allowed bool
	}{
		{"pending to running", StatusPending, StatusRunning, true},
		{"pending to queued", StatusPending, StatusQueued, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"queued to running", StatusQueued, StatusRunning, true},
		{"queued to failed", StatusQueued, StatusFailed, true},
		{"running to transferring", StatusRunning, StatusTransferring, true},
		{"running to failed", StatusRunning, StatusFailed, true},
		{"transferring to completed", StatusTransferring, StatusCompleted, true},
		{"transferring to failed", StatusTransferring, StatusFailed, true},
		{"pending to transferring skips running", StatusPending, StatusTransferring, false},
		{"pending to completed skips lifecycle", StatusPending, StatusCompleted, false},
		{"running to completed skips transferring", StatusRunning, StatusCompleted, false},
		{"completed is terminal", StatusCompleted, StatusFailed, false},
		{"failed is terminal", StatusFailed, StatusRunning, false},
		{"transferring back to running", StatusTransferring, StatusRunning, false},
		{"unknown source", QueryStatus("bogus"), StatusRunning, false},
		{"unknown target", StatusRunning, QueryStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusQueued.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
	assert.False(t, StatusTransferring.IsTerminal())
}

func TestExportTypeExtension(t *testing.T) {
	tests := []struct {
		exportType ExportType
		extension  string
	}{
		{ExportCSV, "csv"},
		{ExportExcel, "xlsx"},
		{ExportJSON, "json"},
		{ExportFeather, "feather"},
	}

	for _, tt := range tests {
		t.Run(string(tt.exportType), func(t *testing.T) {
			assert.True(t, tt.exportType.Valid())
			assert.Equal(t, tt.extension, tt.exportType.Extension())
		})
	}

	assert.False(t, ExportType("parquet").Valid())
}

// TestMetadataMerge verifies that a partial update never unsets
// previously recorded fields.
func TestMetadataMerge(t *testing.T) {
	rows := int64(120)
	cols := 4
	size := int64(2048)

	m := ResultMetadata{
		Rows:        &rows,
		Columns:     &cols,
		ColumnNames: []string{"id", "name", "amount", "ts"},
		FileSize:    &size,
		TmpFilePath: "/tmp/quarry/query_7_20250101_120000.csv",
	}

	m.Merge(ResultMetadata{FinalFilePath: "/data/exports/report.csv"})

	require.NotNil(t, m.Rows)
	assert.Equal(t, int64(120), *m.Rows)
	assert.Equal(t, []string{"id", "name", "amount", "ts"}, m.ColumnNames)
	assert.Equal(t, "/tmp/quarry/query_7_20250101_120000.csv", m.TmpFilePath)
	assert.Equal(t, "/data/exports/report.csv", m.FinalFilePath)
}

func TestMetadataMergeZeroRows(t *testing.T) {
	zero := int64(0)
	var m ResultMetadata
	m.Merge(ResultMetadata{Rows: &zero})

	require.NotNil(t, m.Rows)
	assert.Equal(t, int64(0), *m.Rows)

	// A later delta without rows leaves the recorded zero in place.
	m.Merge(ResultMetadata{FinalFilePath: "/data/out.csv"})
	require.NotNil(t, m.Rows)
	assert.Equal(t, int64(0), *m.Rows)
}

// TestMetadataJSON checks that the wire form only carries set fields,
// so a marshalled delta merges cleanly into a stored JSON object.
func TestMetadataJSON(t *testing.T) {
	delta := ResultMetadata{FinalFilePath: "/data/exports/out.csv"}
	raw, err := json.Marshal(delta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"final_file_path":"/data/exports/out.csv"}`, string(raw))

	assert.True(t, ResultMetadata{}.IsZero())
	assert.False(t, delta.IsZero())
}

package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/quarrydb/quarry/pkg/types"
)

var (
	testColumns = []string{"id", "name", "amount", "created"}
	testTime    = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	testRows    = [][]any{
		{int64(1), "alpha", 12.5, testTime},
		{int64(2), "beta", nil, testTime.Add(time.Hour)},
	}
)

func TestTmpFilename(t *testing.T) {
	tests := []struct {
		name string
		typ  types.ExportType
		want string
	}{
		{name: "csv", typ: types.ExportCSV, want: "query_42_20250601_120000.csv"},
		{name: "excel uses xlsx", typ: types.ExportExcel, want: "query_42_20250601_120000.xlsx"},
		{name: "json", typ: types.ExportJSON, want: "query_42_20250601_120000.json"},
		{name: "feather", typ: types.ExportFeather, want: "query_42_20250601_120000.feather"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TmpFilename(42, tt.typ, testTime))
		})
	}
}

func TestFinalFilename(t *testing.T) {
	tests := []struct {
		name   string
		custom string
		typ    types.ExportType
		want   string
	}{
		{
			name:   "generated when no custom name",
			custom: "",
			typ:    types.ExportCSV,
			want:   "query_7_query_20250601_120000.csv",
		},
		{
			name:   "custom name gains extension",
			custom: "weekly_report",
			typ:    types.ExportExcel,
			want:   "weekly_report.xlsx",
		},
		{
			name:   "custom name keeps existing extension",
			custom: "weekly_report.csv",
			typ:    types.ExportCSV,
			want:   "weekly_report.csv",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FinalFilename(7, tt.custom, tt.typ, testTime))
		})
	}
}

func TestMaterialiseCSV(t *testing.T) {
	dir := t.TempDir()

	path, size, err := Materialise(dir, 42, types.ExportCSV, testColumns, testRows, testTime)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "query_42_20250601_120000.csv"), path)
	assert.Greater(t, size, int64(0))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, testColumns, records[0])
	assert.Equal(t, []string{"1", "alpha", "12.5", "2025-06-01T12:00:00Z"}, records[1])
	// NULL renders as an empty cell.
	assert.Equal(t, []string{"2", "beta", "", "2025-06-01T13:00:00Z"}, records[2])
}

func TestMaterialiseCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "tmp")

	path, _, err := Materialise(dir, 1, types.ExportCSV, testColumns, nil, testTime)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jsonWriter{}.Write(&buf, testColumns, testRows))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)

	assert.Equal(t, float64(1), decoded[0]["id"])
	assert.Equal(t, "alpha", decoded[0]["name"])
	assert.Equal(t, 12.5, decoded[0]["amount"])
	assert.Nil(t, decoded[1]["amount"])
}

func TestJSONWriterEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jsonWriter{}.Write(&buf, testColumns, nil))
	assert.JSONEq(t, "[]", buf.String())
}

func TestExcelWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, excelWriter{}.Write(&buf, testColumns, testRows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	got, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "id", got)

	got, err = f.GetCellValue(sheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got)

	got, err = f.GetCellValue(sheet, "D2")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01T12:00:00Z", got)

	// NULL leaves the cell empty.
	got, err = f.GetCellValue(sheet, "C3")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestFeatherWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, featherWriter{}.Write(&buf, testColumns, testRows))

	fr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer fr.Close()

	schema := fr.Schema()
	require.Equal(t, 4, schema.NumFields())
	assert.Equal(t, arrow.INT64, schema.Field(0).Type.ID())
	assert.Equal(t, arrow.STRING, schema.Field(1).Type.ID())
	assert.Equal(t, arrow.FLOAT64, schema.Field(2).Type.ID())
	assert.Equal(t, arrow.TIMESTAMP, schema.Field(3).Type.ID())

	require.Equal(t, 1, fr.NumRecords())
	rec, err := fr.Record(0)
	require.NoError(t, err)
	require.Equal(t, int64(2), rec.NumRows())

	ids := rec.Column(0).(*array.Int64)
	assert.Equal(t, int64(1), ids.Value(0))
	assert.Equal(t, int64(2), ids.Value(1))

	names := rec.Column(1).(*array.String)
	assert.Equal(t, "alpha", names.Value(0))

	amounts := rec.Column(2).(*array.Float64)
	assert.Equal(t, 12.5, amounts.Value(0))
	assert.True(t, amounts.IsNull(1))

	created := rec.Column(3).(*array.Timestamp)
	assert.Equal(t, testTime.UnixMicro(), int64(created.Value(0)))
}

func TestInferKindAllNullColumn(t *testing.T) {
	rows := [][]any{{nil}, {nil}}
	assert.Equal(t, kindString, inferKind(rows, 0))
}

func TestCellString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "string", in: "x", want: "x"},
		{name: "int64", in: int64(-3), want: "-3"},
		{name: "float trims zeroes", in: 2.50, want: "2.5"},
		{name: "bool", in: true, want: "true"},
		{name: "bytes", in: []byte("raw"), want: "raw"},
		{name: "time in utc", in: testTime, want: "2025-06-01T12:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cellString(tt.in))
		})
	}
}

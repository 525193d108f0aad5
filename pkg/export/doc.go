/*
Package export materialises fetched result sets into files.

The worker hands this package a column list and fully fetched rows; it
gets back a file on local disk under the tmp export root, named
canonically and ready for transfer. Four formats are supported, chosen
per query with a per-user and then process-wide default:

	csv      encoding/csv, header row first          .csv
	excel    excelize, single sheet                  .xlsx
	json     array of objects keyed by column        .json
	feather  Arrow IPC file via arrow-go             .feather

# File Naming

Two names exist for every export. The working file written locally:

	query_{id}_{timestamp}.{ext}            e.g. query_42_20250601_120000.csv

and the delivered name used at the destination:

	query_{id}_query_{timestamp}.{ext}      generated form
	{export_filename}[.{ext}]               when the query names its file

A custom export_filename gains the format extension only when it does
not already end with it. Timestamps are UTC in yyyymmdd_hhmmss form.

# Value Rendering

Result values arrive as the normalised driver types (string, int64,
float64, bool, time.Time, nil). CSV and Excel render times as RFC 3339
UTC text and NULL as an empty cell. JSON carries NULL through as null.
Feather columns are typed from the first non-NULL value in each column
(int64, float64, bool, timestamp[us] or string) with NULLs preserved
as Arrow nulls; an all-NULL column falls back to string.

# Usage

	path, size, err := export.Materialise(
		cfg.TmpExportLocation, q.ID, exportType,
		rs.Columns, rs.Rows, time.Now(),
	)

Materialise creates the tmp directory on demand and removes the partial
file when a write fails, so the caller only ever cleans up the path it
was handed back.

# See Also

  - pkg/remotedb: produces the ResultSet consumed here
  - pkg/transfer: delivers the materialised file
*/
package export

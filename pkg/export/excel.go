package export

import (
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// excelWriter produces a single-sheet workbook with the column names
// in row 1
type excelWriter struct{}

func (excelWriter) Write(w io.Writer, columns []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &columns); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := make([]any, len(columns))
		for j := range columns {
			if j < len(row) {
				vals[j] = excelValue(row[j])
			}
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// excelValue keeps types excelize renders natively and stringifies the
// rest. Times become RFC 3339 text so cells read the same with or
// without a spreadsheet date style.
func excelValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, int, int32, int64, float32, float64:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []byte:
		return string(t)
	default:
		return cellString(t)
	}
}

package export

import (
	"encoding/json"
	"io"
)

// jsonWriter encodes the result set as an array of objects keyed by
// column name
type jsonWriter struct{}

func (jsonWriter) Write(w io.Writer, columns []string, rows [][]any) error {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(row) {
				obj[col] = jsonValue(row[i])
			} else {
				obj[col] = nil
			}
		}
		out = append(out, obj)
	}
	return json.NewEncoder(w).Encode(out)
}

func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

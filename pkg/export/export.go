package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/quarrydb/quarry/pkg/types"
)

// timestampLayout is the compact timestamp embedded in export file names
const timestampLayout = "20060102_150405"

// Writer materialises a fetched result set into one file format
type Writer interface {
	Write(w io.Writer, columns []string, rows [][]any) error
}

// ForType returns the writer for an export type. Unknown or empty
// types fall back to CSV.
func ForType(t types.ExportType) Writer {
	switch t {
	case types.ExportExcel:
		return excelWriter{}
	case types.ExportJSON:
		return jsonWriter{}
	case types.ExportFeather:
		return featherWriter{}
	default:
		return csvWriter{}
	}
}

// TmpFilename is the canonical name of the local working file:
// query_{id}_{timestamp}.{ext}
func TmpFilename(queryID int64, t types.ExportType, now time.Time) string {
	return fmt.Sprintf("query_%d_%s.%s", queryID, now.UTC().Format(timestampLayout), t.Extension())
}

// FinalFilename is the delivered file name. A custom name from the
// query wins, gaining the format extension when it lacks one;
// otherwise the generated form query_{id}_query_{timestamp}.{ext}
// is used.
func FinalFilename(queryID int64, custom string, t types.ExportType, now time.Time) string {
	if custom != "" {
		return EnsureExtension(custom, t)
	}
	return fmt.Sprintf("query_%d_query_%s.%s", queryID, now.UTC().Format(timestampLayout), t.Extension())
}

// EnsureExtension appends the format extension unless name already
// ends with it
func EnsureExtension(name string, t types.ExportType) string {
	ext := "." + t.Extension()
	if strings.HasSuffix(name, ext) {
		return name
	}
	return name + ext
}

// Materialise writes the result set into dir under the canonical tmp
// name and returns the file path and size. A failed write leaves no
// partial file behind.
func Materialise(dir string, queryID int64, t types.ExportType, columns []string, rows [][]any, now time.Time) (string, int64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create tmp export directory: %w", err)
	}

	path := filepath.Join(dir, TmpFilename(queryID, t, now))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create export file: %w", err)
	}
	if err := ForType(t).Write(f, columns, rows); err != nil {
		f.Close()
		os.Remove(path)
		return "", 0, fmt.Errorf("write %s export: %w", string(t), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("close export file: %w", err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stat export file: %w", err)
	}
	return path, fi.Size(), nil
}

// cellString renders one result value as text for the CSV and Excel
// writers. Times are RFC 3339 in UTC; NULL becomes the empty string.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

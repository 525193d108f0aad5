package export

import (
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// featherWriter emits the result set as an Arrow IPC file, the format
// pandas and polars read back with read_feather
type featherWriter struct{}

func (featherWriter) Write(w io.Writer, columns []string, rows [][]any) error {
	alloc := memory.NewGoAllocator()

	kinds := make([]colKind, len(columns))
	fields := make([]arrow.Field, len(columns))
	for i, name := range columns {
		kinds[i] = inferKind(rows, i)
		fields[i] = arrow.Field{Name: name, Type: kinds[i].dataType(), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(alloc, schema)
	defer b.Release()

	for _, row := range rows {
		for i := range columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			appendValue(b.Field(i), kinds[i], v)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(alloc))
	if err != nil {
		return err
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}

// colKind is the Arrow column type chosen for one result column
type colKind int

const (
	kindString colKind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
)

func (k colKind) dataType() arrow.DataType {
	switch k {
	case kindInt:
		return arrow.PrimitiveTypes.Int64
	case kindFloat:
		return arrow.PrimitiveTypes.Float64
	case kindBool:
		return arrow.FixedWidthTypes.Boolean
	case kindTime:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.BinaryTypes.String
	}
}

// inferKind picks the column type from the first non-NULL value.
// An all-NULL column becomes a string column.
func inferKind(rows [][]any, col int) colKind {
	for _, row := range rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		switch row[col].(type) {
		case int64, int32, int:
			return kindInt
		case float64, float32:
			return kindFloat
		case bool:
			return kindBool
		case time.Time:
			return kindTime
		default:
			return kindString
		}
	}
	return kindString
}

// appendValue adds one value to a column builder, coercing compatible
// numeric types and appending NULL for anything the column type cannot
// hold
func appendValue(b array.Builder, k colKind, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch k {
	case kindInt:
		ib := b.(*array.Int64Builder)
		switch t := v.(type) {
		case int64:
			ib.Append(t)
		case int32:
			ib.Append(int64(t))
		case int:
			ib.Append(int64(t))
		default:
			ib.AppendNull()
		}
	case kindFloat:
		fb := b.(*array.Float64Builder)
		switch t := v.(type) {
		case float64:
			fb.Append(t)
		case float32:
			fb.Append(float64(t))
		case int64:
			fb.Append(float64(t))
		case int:
			fb.Append(float64(t))
		default:
			fb.AppendNull()
		}
	case kindBool:
		bb := b.(*array.BooleanBuilder)
		if t, ok := v.(bool); ok {
			bb.Append(t)
		} else {
			bb.AppendNull()
		}
	case kindTime:
		tb := b.(*array.TimestampBuilder)
		if t, ok := v.(time.Time); ok {
			tb.Append(arrow.Timestamp(t.UTC().UnixMicro()))
		} else {
			tb.AppendNull()
		}
	default:
		b.(*array.StringBuilder).Append(cellString(v))
	}
}

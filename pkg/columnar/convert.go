package columnar

import (
	"fmt"
	"math"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ajitpratap0/mongoscan/pkg/document"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/schema"
)

// appendValue pushes v into b, which must have been created for dt.
// Missing and null values become nulls. Values from another type family
// are rejected; no cross-family coercion happens. After an error the
// builder may hold a partially appended nested value and must be discarded.
func appendValue(b array.Builder, dt schema.DataType, v document.Value, path string) error {
	if v.IsAbsent() {
		b.AppendNull()
		return nil
	}

	switch dt.ID {
	case schema.Boolean:
		if v.Kind() == document.KindBoolean {
			b.(*array.BooleanBuilder).Append(v.Bool())
			return nil
		}

	case schema.Int32:
		switch v.Kind() {
		case document.KindInt32:
			b.(*array.Int32Builder).Append(int32(v.Int()))
			return nil
		case document.KindInt64:
			if v.Int() >= math.MinInt32 && v.Int() <= math.MaxInt32 {
				b.(*array.Int32Builder).Append(int32(v.Int()))
				return nil
			}
			return conversionError(dt, v, path).WithDetail("reason", "int64 value overflows int32")
		}

	case schema.Int64:
		switch v.Kind() {
		case document.KindInt32, document.KindInt64:
			b.(*array.Int64Builder).Append(v.Int())
			return nil
		}

	case schema.Float64:
		switch v.Kind() {
		case document.KindDouble:
			b.(*array.Float64Builder).Append(v.Double())
			return nil
		case document.KindInt32, document.KindInt64:
			b.(*array.Float64Builder).Append(float64(v.Int()))
			return nil
		case document.KindDecimal128:
			f, err := strconv.ParseFloat(v.StringValue(), 64)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeConversion, "cannot read decimal128 as f64").
					WithDetail("column", path)
			}
			b.(*array.Float64Builder).Append(f)
			return nil
		}

	case schema.String:
		switch v.Kind() {
		case document.KindString, document.KindObjectID, document.KindSymbol,
			document.KindJavaScript, document.KindRegex:
			b.(*array.StringBuilder).Append(v.StringValue())
			return nil
		}

	case schema.Binary:
		if v.Kind() == document.KindBinary {
			b.(*array.BinaryBuilder).Append(v.Bytes())
			return nil
		}

	case schema.Datetime:
		switch v.Kind() {
		case document.KindDateTime, document.KindTimestamp:
			b.(*array.TimestampBuilder).Append(arrow.Timestamp(v.Time().UnixMilli()))
			return nil
		}

	case schema.List:
		if v.Kind() == document.KindArray {
			lb := b.(*array.ListBuilder)
			lb.Append(true)
			vb := lb.ValueBuilder()
			for i, item := range v.Array() {
				if err := appendValue(vb, *dt.Elem, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
			return nil
		}

	case schema.Struct:
		if v.Kind() == document.KindDocument {
			sb := b.(*array.StructBuilder)
			sb.Append(true)
			doc := v.Document()
			for i, f := range dt.Fields {
				if err := appendValue(sb.FieldBuilder(i), f.Type, doc.Get(f.Name), path+"."+f.Name); err != nil {
					return err
				}
			}
			return nil
		}
	}

	return conversionError(dt, v, path)
}

func conversionError(dt schema.DataType, v document.Value, path string) *errors.Error {
	return errors.Newf(errors.ErrorTypeConversion, "cannot append %s value to %s column %q", v.Kind(), dt, path).
		WithDetail("column", path).
		WithDetail("expected", dt.String()).
		WithDetail("actual", v.Kind().String())
}

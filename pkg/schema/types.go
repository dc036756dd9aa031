package schema

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// TypeID enumerates the column types a scan can produce.
type TypeID uint8

const (
	Null TypeID = iota
	Boolean
	Int32
	Int64
	Float64
	String
	Binary
	Datetime
	List
	Struct
)

var typeNames = [...]string{
	Null:     "null",
	Boolean:  "bool",
	Int32:    "i32",
	Int64:    "i64",
	Float64:  "f64",
	String:   "str",
	Binary:   "binary",
	Datetime: "datetime[ms]",
	List:     "list",
	Struct:   "struct",
}

func (id TypeID) String() string {
	if int(id) < len(typeNames) {
		return typeNames[id]
	}
	return fmt.Sprintf("type(%d)", uint8(id))
}

// DataType is a column type. Elem is set for List, Fields for Struct.
type DataType struct {
	ID     TypeID
	Elem   *DataType
	Fields []Field
}

// Primitive type values.
var (
	NullType     = DataType{ID: Null}
	BooleanType  = DataType{ID: Boolean}
	Int32Type    = DataType{ID: Int32}
	Int64Type    = DataType{ID: Int64}
	Float64Type  = DataType{ID: Float64}
	StringType   = DataType{ID: String}
	BinaryType   = DataType{ID: Binary}
	DatetimeType = DataType{ID: Datetime}
)

// ListOf returns a list type with the given element type.
func ListOf(elem DataType) DataType {
	return DataType{ID: List, Elem: &elem}
}

// StructOf returns a struct type with the given fields.
func StructOf(fields ...Field) DataType {
	return DataType{ID: Struct, Fields: fields}
}

// IsNumeric reports whether t is one of the numeric types.
func (t DataType) IsNumeric() bool {
	return t.ID == Int32 || t.ID == Int64 || t.ID == Float64
}

// Equal reports deep equality.
func (t DataType) Equal(o DataType) bool {
	if t.ID != o.ID {
		return false
	}
	switch t.ID {
	case List:
		return t.Elem.Equal(*o.Elem)
	case Struct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
	}
	return true
}

func (t DataType) String() string {
	switch t.ID {
	case List:
		return "list[" + t.Elem.String() + "]"
	case Struct:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.String()
		}
		return "struct[" + strings.Join(parts, ", ") + "]"
	default:
		return t.ID.String()
	}
}

// ToArrow maps t to the Arrow type used by the column builders. Datetimes
// are millisecond timestamps in UTC, the resolution BSON stores.
func (t DataType) ToArrow() arrow.DataType {
	switch t.ID {
	case Boolean:
		return arrow.FixedWidthTypes.Boolean
	case Int32:
		return arrow.PrimitiveTypes.Int32
	case Int64:
		return arrow.PrimitiveTypes.Int64
	case Float64:
		return arrow.PrimitiveTypes.Float64
	case String:
		return arrow.BinaryTypes.String
	case Binary:
		return arrow.BinaryTypes.Binary
	case Datetime:
		return &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: "UTC"}
	case List:
		return arrow.ListOf(t.Elem.ToArrow())
	case Struct:
		fields := make([]arrow.Field, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = f.ToArrow()
		}
		return arrow.StructOf(fields...)
	default:
		return arrow.Null
	}
}

package columnar

import (
	"math"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"

	"github.com/ajitpratap0/mongoscan/pkg/document"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/schema"
)

func TestAppendValue(t *testing.T) {
	tests := []struct {
		name  string
		dtype schema.DataType
		value document.Value
		ok    bool
	}{
		{"missing never fails", schema.Int64Type, document.Missing(), true},
		{"null never fails", schema.BooleanType, document.Null(), true},
		{"missing into null column", schema.NullType, document.Missing(), true},
		{"value into null column", schema.NullType, document.Int32(1), false},

		{"bool", schema.BooleanType, document.Bool(true), true},
		{"bool rejects string", schema.BooleanType, document.String("true"), false},

		{"i32", schema.Int32Type, document.Int32(1), true},
		{"i32 accepts small i64", schema.Int32Type, document.Int64(7), true},
		{"i32 rejects overflowing i64", schema.Int32Type, document.Int64(math.MaxInt32 + 1), false},
		{"i32 rejects double", schema.Int32Type, document.Double(1), false},

		{"i64 accepts i32", schema.Int64Type, document.Int32(1), true},
		{"i64 rejects double", schema.Int64Type, document.Double(1.5), false},
		{"i64 rejects string", schema.Int64Type, document.String("1"), false},

		{"f64 accepts ints", schema.Float64Type, document.Int64(1), true},
		{"f64 accepts decimal", schema.Float64Type, document.Decimal128("1.25E+2"), true},
		{"f64 rejects bad decimal", schema.Float64Type, document.Decimal128("one"), false},
		{"f64 rejects bool", schema.Float64Type, document.Bool(true), false},

		{"str", schema.StringType, document.String("x"), true},
		{"str accepts object id", schema.StringType, document.ObjectID([12]byte{}), true},
		{"str accepts symbol", schema.StringType, document.Symbol("s"), true},
		{"str rejects bool", schema.StringType, document.Bool(false), false},
		{"str rejects int", schema.StringType, document.Int32(1), false},
		{"str rejects decimal", schema.StringType, document.Decimal128("1.5"), false},

		{"binary", schema.BinaryType, document.Binary([]byte{1}), true},
		{"binary rejects string", schema.BinaryType, document.String("x"), false},

		{"datetime", schema.DatetimeType, document.DateTime(time.Now()), true},
		{"datetime accepts timestamp", schema.DatetimeType, document.Timestamp(1, 2), true},
		{"datetime rejects string", schema.DatetimeType, document.String("2024-01-01"), false},

		{"list", schema.ListOf(schema.Int64Type), document.Array(document.Int32(1), document.Null()), true},
		{"list rejects scalar", schema.ListOf(schema.Int64Type), document.Int64(1), false},
		{"list rejects bad element", schema.ListOf(schema.Int64Type), document.Array(document.String("x")), false},

		{"struct", schema.StructOf(schema.Field{Name: "a", Type: schema.StringType}), document.Embedded(document.D("a", document.String("x"))), true},
		{"struct rejects array", schema.StructOf(schema.Field{Name: "a", Type: schema.StringType}), document.Array(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer(memory.NewGoAllocator(), schema.Field{Name: "col", Type: tt.dtype}, 1)
			defer b.Release()

			err := b.Push(tt.value)
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, 1, b.Len())
				return
			}
			assert.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConversion), "got %v", err)
		})
	}
}

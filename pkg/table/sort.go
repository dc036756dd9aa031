package table

import (
	"bytes"
	"cmp"
	"context"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/mongoscan/pkg/errors"
)

// SortBy returns a single-chunk table ordered by the named column. The sort
// is stable and nulls go last regardless of direction.
func (t *Table) SortBy(ctx context.Context, mem memory.Allocator, column string, ascending bool) (*Table, error) {
	key, err := t.Column(mem, column)
	if err != nil {
		return nil, err
	}
	defer key.Release()

	less, err := comparator(key)
	if err != nil {
		return nil, err
	}

	order := make([]int64, key.Len())
	for i := range order {
		order[i] = int64(i)
	}
	slices.SortStableFunc(order, func(a, b int64) int {
		i, j := int(a), int(b)
		switch ni, nj := key.IsNull(i), key.IsNull(j); {
		case ni && nj:
			return 0
		case ni:
			return 1
		case nj:
			return -1
		}
		c := less(i, j)
		if !ascending {
			c = -c
		}
		return c
	})

	ib := array.NewInt64Builder(mem)
	defer ib.Release()
	ib.AppendValues(order, nil)
	indices := ib.NewInt64Array()
	defer indices.Release()

	ctx = compute.WithAllocator(ctx, mem)
	cols := make([]arrow.Array, t.schema.NumFields())
	defer releaseAll(cols)
	for i := range cols {
		col, err := t.concatColumn(mem, i)
		if err != nil {
			return nil, err
		}
		cols[i], err = compute.TakeArray(ctx, col, indices)
		col.Release()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to reorder column").
				WithDetail("column", t.schema.Field(i).Name)
		}
	}

	rec := array.NewRecord(t.schema, cols, int64(len(order)))
	return &Table{schema: t.schema, records: []arrow.Record{rec}, rows: rec.NumRows()}, nil
}

func comparator(arr arrow.Array) (func(i, j int) int, error) {
	switch a := arr.(type) {
	case *array.String:
		return func(i, j int) int { return cmp.Compare(a.Value(i), a.Value(j)) }, nil
	case *array.Int32:
		return func(i, j int) int { return cmp.Compare(a.Value(i), a.Value(j)) }, nil
	case *array.Int64:
		return func(i, j int) int { return cmp.Compare(a.Value(i), a.Value(j)) }, nil
	case *array.Float64:
		return func(i, j int) int { return cmp.Compare(a.Value(i), a.Value(j)) }, nil
	case *array.Timestamp:
		return func(i, j int) int { return cmp.Compare(a.Value(i), a.Value(j)) }, nil
	case *array.Binary:
		return func(i, j int) int { return bytes.Compare(a.Value(i), a.Value(j)) }, nil
	case *array.Boolean:
		return func(i, j int) int {
			x, y := a.Value(i), a.Value(j)
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}, nil
	case *array.Null:
		return func(i, j int) int { return 0 }, nil
	}
	return nil, errors.Newf(errors.ErrorTypeValidation, "cannot sort by column of type %s", arr.DataType())
}

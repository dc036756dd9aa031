package table

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/mongoscan/pkg/errors"
)

var testSchema = arrow.NewSchema([]arrow.Field{
	{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "tag", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// chunk builds a record; idValid marks which ids are non-null.
func chunk(t *testing.T, mem memory.Allocator, ids []int64, idValid []bool, tags []string) arrow.Record {
	t.Helper()
	b := array.NewRecordBuilder(mem, testSchema)
	defer b.Release()
	b.Field(0).(*array.Int64Builder).AppendValues(ids, idValid)
	b.Field(1).(*array.StringBuilder).AppendValues(tags, nil)
	return b.NewRecord()
}

func newTable(t *testing.T, records ...arrow.Record) *Table {
	t.Helper()
	tbl, err := New(testSchema, records)
	require.NoError(t, err)
	return tbl
}

func int64s(t *testing.T, tbl *Table, mem memory.Allocator, name string) []int64 {
	t.Helper()
	col, err := tbl.Column(mem, name)
	require.NoError(t, err)
	defer col.Release()
	out := make([]int64, col.Len())
	copy(out, col.(*array.Int64).Int64Values())
	return out
}

func strs(t *testing.T, tbl *Table, mem memory.Allocator, name string) []string {
	t.Helper()
	col, err := tbl.Column(mem, name)
	require.NoError(t, err)
	defer col.Release()
	s := col.(*array.String)
	out := make([]string, s.Len())
	for i := range out {
		out[i] = s.Value(i)
	}
	return out
}

func TestNewCountsRows(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := newTable(t,
		chunk(t, mem, []int64{1, 2}, nil, []string{"a", "b"}),
		chunk(t, mem, []int64{3}, nil, []string{"c"}))
	defer tbl.Release()

	assert.Equal(t, int64(3), tbl.NumRows())
	assert.Equal(t, 2, tbl.NumCols())
	assert.Equal(t, 2, tbl.NumChunks())
	assert.Equal(t, []string{"id", "tag"}, tbl.ColumnNames())
	assert.Equal(t, []int64{1, 2, 3}, int64s(t, tbl, mem, "id"))
}

func TestNewRejectsMismatchedSchema(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	other := arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.PrimitiveTypes.Int64}}, nil)
	rec := chunk(t, mem, []int64{1}, nil, []string{"a"})
	defer rec.Release()

	_, err := New(other, []arrow.Record{rec})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestEmpty(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := Empty(testSchema)
	defer tbl.Release()
	assert.Equal(t, int64(0), tbl.NumRows())
	assert.Equal(t, 0, tbl.NumChunks())

	col, err := tbl.Column(mem, "tag")
	require.NoError(t, err)
	defer col.Release()
	assert.Equal(t, 0, col.Len())
	assert.Equal(t, arrow.STRING, col.DataType().ID())
}

func TestColumnUnknown(t *testing.T) {
	tbl := Empty(testSchema)
	_, err := tbl.Column(memory.DefaultAllocator, "nope")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestConcatRetainsInputs(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	a := newTable(t, chunk(t, mem, []int64{1}, nil, []string{"a"}))
	b := newTable(t, chunk(t, mem, []int64{2, 3}, nil, []string{"b", "c"}))
	both, err := Concat(testSchema, a, b)
	require.NoError(t, err)
	a.Release()
	b.Release()
	defer both.Release()

	assert.Equal(t, int64(3), both.NumRows())
	assert.Equal(t, []string{"a", "b", "c"}, strs(t, both, mem, "tag"))
}

func TestRechunk(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := newTable(t,
		chunk(t, mem, []int64{1, 2}, nil, []string{"a", "b"}),
		chunk(t, mem, []int64{3}, nil, []string{"c"}),
		chunk(t, mem, []int64{4}, nil, []string{"d"}))
	defer tbl.Release()

	one, err := tbl.Rechunk(mem)
	require.NoError(t, err)
	defer one.Release()
	assert.Equal(t, 1, one.NumChunks())
	assert.Equal(t, int64(4), one.NumRows())
	assert.Equal(t, []int64{1, 2, 3, 4}, int64s(t, one, mem, "id"))

	again, err := one.Rechunk(mem)
	require.NoError(t, err)
	defer again.Release()
	assert.Same(t, one.Records()[0], again.Records()[0])
}

func TestSelectAndDrop(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := newTable(t, chunk(t, mem, []int64{1, 2}, nil, []string{"a", "b"}))
	defer tbl.Release()

	swapped, err := tbl.Select("tag", "id")
	require.NoError(t, err)
	defer swapped.Release()
	assert.Equal(t, []string{"tag", "id"}, swapped.ColumnNames())
	assert.Equal(t, int64(2), swapped.NumRows())

	dropped, err := tbl.Drop("id")
	require.NoError(t, err)
	defer dropped.Release()
	assert.Equal(t, []string{"tag"}, dropped.ColumnNames())

	same, err := tbl.Drop("missing")
	require.NoError(t, err)
	defer same.Release()
	assert.Equal(t, []string{"id", "tag"}, same.ColumnNames())

	_, err = tbl.Select("missing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestHead(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := newTable(t,
		chunk(t, mem, []int64{1, 2}, nil, []string{"a", "b"}),
		chunk(t, mem, []int64{3, 4}, nil, []string{"c", "d"}))
	defer tbl.Release()

	tests := []struct {
		n      int64
		ids    []int64
		chunks int
	}{
		{0, []int64{}, 0},
		{1, []int64{1}, 1},
		{3, []int64{1, 2, 3}, 2},
		{10, []int64{1, 2, 3, 4}, 2},
	}
	for _, tt := range tests {
		h := tbl.Head(tt.n)
		assert.Equal(t, int64(len(tt.ids)), h.NumRows())
		assert.Equal(t, tt.chunks, h.NumChunks())
		assert.Equal(t, tt.ids, int64s(t, h, mem, "id"))
		h.Release()
	}
}

func TestSortByIsStableWithNullsLast(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := newTable(t,
		chunk(t, mem, []int64{3, 1, 0}, []bool{true, true, false}, []string{"c", "a1", "n1"}),
		chunk(t, mem, []int64{2, 1}, nil, []string{"b", "a2"}))
	defer tbl.Release()

	asc, err := tbl.SortBy(context.Background(), mem, "id", true)
	require.NoError(t, err)
	defer asc.Release()
	assert.Equal(t, 1, asc.NumChunks())
	assert.Equal(t, []string{"a1", "a2", "b", "c", "n1"}, strs(t, asc, mem, "tag"))

	desc, err := tbl.SortBy(context.Background(), mem, "id", false)
	require.NoError(t, err)
	defer desc.Release()
	assert.Equal(t, []string{"c", "b", "a1", "a2", "n1"}, strs(t, desc, mem, "tag"))
}

func TestSortByString(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := newTable(t, chunk(t, mem, []int64{1, 2, 3}, nil, []string{"b", "c", "a"}))
	defer tbl.Release()

	sorted, err := tbl.SortBy(context.Background(), mem, "tag", true)
	require.NoError(t, err)
	defer sorted.Release()
	assert.Equal(t, []int64{3, 1, 2}, int64s(t, sorted, mem, "id"))
}

func TestWriteJSONLines(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := newTable(t,
		chunk(t, mem, []int64{1, 0}, []bool{true, false}, []string{"a", `q"uote`}))
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteJSONLines(&buf))
	assert.Equal(t, "{\"id\":1,\"tag\":\"a\"}\n{\"id\":null,\"tag\":\"q\\\"uote\"}\n", buf.String())
}

func TestWriteIPC(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	tbl := newTable(t,
		chunk(t, mem, []int64{1, 2}, nil, []string{"a", "b"}),
		chunk(t, mem, []int64{3}, nil, []string{"c"}))
	defer tbl.Release()

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteIPC(&buf, mem))

	r, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()), ipc.WithAllocator(mem))
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.Schema().Equal(testSchema))
	assert.Equal(t, 2, r.NumRecords())

	var rows int64
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		require.NoError(t, err)
		rows += rec.NumRows()
	}
	assert.Equal(t, int64(3), rows)
}

// Package table holds scan results: an Arrow schema plus an ordered list of
// record batches ("chunks") that all share it.
//
// Tables are reference counted through their records. Every function that
// returns a *Table returns a new owner; call Release when done.
package table

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/mongoscan/pkg/errors"
)

// Table is an immutable chunked table.
type Table struct {
	schema  *arrow.Schema
	records []arrow.Record
	rows    int64
}

// New takes ownership of records, which must all have schema s.
func New(s *arrow.Schema, records []arrow.Record) (*Table, error) {
	t := &Table{schema: s}
	for i, rec := range records {
		if !rec.Schema().Equal(s) {
			return nil, errors.Newf(errors.ErrorTypeInternal, "chunk %d schema does not match table schema", i).
				WithDetail("expected", s.String()).
				WithDetail("actual", rec.Schema().String())
		}
		t.rows += rec.NumRows()
	}
	t.records = records
	return t, nil
}

// Empty returns a table with the given columns and no rows.
func Empty(s *arrow.Schema) *Table {
	return &Table{schema: s}
}

// Concat stacks tables vertically in argument order. Inputs keep their own
// references and must still be released by the caller.
func Concat(s *arrow.Schema, tables ...*Table) (*Table, error) {
	var records []arrow.Record
	for _, t := range tables {
		for _, rec := range t.records {
			rec.Retain()
			records = append(records, rec)
		}
	}
	out, err := New(s, records)
	if err != nil {
		for _, rec := range records {
			rec.Release()
		}
		return nil, err
	}
	return out, nil
}

func (t *Table) Schema() *arrow.Schema { return t.schema }
func (t *Table) NumRows() int64        { return t.rows }
func (t *Table) NumCols() int          { return t.schema.NumFields() }
func (t *Table) NumChunks() int        { return len(t.records) }

// Records returns the chunks. The caller must Retain any record it keeps
// beyond the table's lifetime.
func (t *Table) Records() []arrow.Record { return t.records }

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, t.schema.NumFields())
	for i, f := range t.schema.Fields() {
		names[i] = f.Name
	}
	return names
}

// Column returns the named column as one contiguous array. The caller owns
// the result.
func (t *Table) Column(mem memory.Allocator, name string) (arrow.Array, error) {
	idx := t.schema.FieldIndices(name)
	if len(idx) == 0 {
		return nil, errors.Newf(errors.ErrorTypeValidation, "column %q not found", name)
	}
	return t.concatColumn(mem, idx[0])
}

func (t *Table) concatColumn(mem memory.Allocator, i int) (arrow.Array, error) {
	if len(t.records) == 0 {
		b := array.NewBuilder(mem, t.schema.Field(i).Type)
		defer b.Release()
		return b.NewArray(), nil
	}
	chunks := make([]arrow.Array, len(t.records))
	for j, rec := range t.records {
		chunks[j] = rec.Column(i)
	}
	if len(chunks) == 1 {
		chunks[0].Retain()
		return chunks[0], nil
	}
	arr, err := array.Concatenate(chunks, mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to concatenate column").
			WithDetail("column", t.schema.Field(i).Name)
	}
	return arr, nil
}

// Rechunk returns a table with at most one chunk.
func (t *Table) Rechunk(mem memory.Allocator) (*Table, error) {
	if len(t.records) <= 1 {
		return t.retained(), nil
	}
	cols := make([]arrow.Array, t.schema.NumFields())
	defer releaseAll(cols)
	for i := range cols {
		arr, err := t.concatColumn(mem, i)
		if err != nil {
			return nil, err
		}
		cols[i] = arr
	}
	rec := array.NewRecord(t.schema, cols, t.rows)
	return &Table{schema: t.schema, records: []arrow.Record{rec}, rows: t.rows}, nil
}

// Select returns a table with only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	indices := make([]int, len(names))
	fields := make([]arrow.Field, len(names))
	for i, n := range names {
		idx := t.schema.FieldIndices(n)
		if len(idx) == 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "column %q not found", n)
		}
		indices[i] = idx[0]
		fields[i] = t.schema.Field(idx[0])
	}
	s := arrow.NewSchema(fields, nil)

	records := make([]arrow.Record, len(t.records))
	for j, rec := range t.records {
		cols := make([]arrow.Array, len(indices))
		for i, idx := range indices {
			cols[i] = rec.Column(idx)
		}
		records[j] = array.NewRecord(s, cols, rec.NumRows())
	}
	return &Table{schema: s, records: records, rows: t.rows}, nil
}

// Drop returns a table without the named column. Dropping an unknown
// column is a no-op.
func (t *Table) Drop(name string) (*Table, error) {
	keep := make([]string, 0, t.schema.NumFields())
	for _, f := range t.schema.Fields() {
		if f.Name != name {
			keep = append(keep, f.Name)
		}
	}
	return t.Select(keep...)
}

// Head returns the first n rows.
func (t *Table) Head(n int64) *Table {
	if n >= t.rows {
		return t.retained()
	}
	out := &Table{schema: t.schema}
	for _, rec := range t.records {
		if n <= 0 {
			break
		}
		take := rec.NumRows()
		if take > n {
			take = n
		}
		out.records = append(out.records, rec.NewSlice(0, take))
		out.rows += take
		n -= take
	}
	return out
}

// Release drops the table's references to its records.
func (t *Table) Release() {
	for _, rec := range t.records {
		rec.Release()
	}
	t.records = nil
	t.rows = 0
}

func (t *Table) retained() *Table {
	for _, rec := range t.records {
		rec.Retain()
	}
	return &Table{
		schema:  t.schema,
		records: append([]arrow.Record(nil), t.records...),
		rows:    t.rows,
	}
}

// WriteIPC writes the table in the Arrow IPC file format.
func (t *Table) WriteIPC(w io.Writer, mem memory.Allocator) error {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(t.schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create Arrow writer: %w", err)
	}
	for _, rec := range t.records {
		if err := fw.Write(rec); err != nil {
			_ = fw.Close()
			return fmt.Errorf("failed to write record batch: %w", err)
		}
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close Arrow writer: %w", err)
	}
	return nil
}

// WriteJSONLines writes one JSON object per row, keys in column order.
func (t *Table) WriteJSONLines(w io.Writer) error {
	keys := make([][]byte, t.schema.NumFields())
	for i, f := range t.schema.Fields() {
		k, err := gojson.Marshal(f.Name)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	var line []byte
	for _, rec := range t.records {
		for row := 0; row < int(rec.NumRows()); row++ {
			line = append(line[:0], '{')
			for i := 0; i < int(rec.NumCols()); i++ {
				if i > 0 {
					line = append(line, ',')
				}
				line = append(line, keys[i]...)
				line = append(line, ':')
				v, err := gojson.Marshal(rec.Column(i).GetOneForMarshal(row))
				if err != nil {
					return fmt.Errorf("failed to encode column %s row %d: %w", t.schema.Field(i).Name, row, err)
				}
				line = append(line, v...)
			}
			line = append(line, '}', '\n')
			if _, err := w.Write(line); err != nil {
				return err
			}
		}
	}
	return nil
}

func releaseAll(arrs []arrow.Array) {
	for _, a := range arrs {
		if a != nil {
			a.Release()
		}
	}
}

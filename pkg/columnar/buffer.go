// Package columnar turns documents into Arrow record batches.
//
// A BufferSet holds one typed Arrow builder per schema column. Documents
// are routed column by column through the value converter; the schema is
// authoritative, so fields the schema does not name are ignored and fields
// a document lacks become nulls. Finalize consumes the set and produces a
// single arrow.Record whose columns all have the same length.
//
// A BufferSet is not safe for concurrent use. The scanner gives each
// partition its own set.
package columnar

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/mongoscan/pkg/document"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/schema"
)

// MaxReserve caps up-front capacity so a huge row estimate cannot allocate
// the whole partition before the first document arrives.
const MaxReserve = 1 << 16

// Buffer is a growable, typed column builder.
type Buffer struct {
	field   schema.Field
	builder array.Builder
}

// NewBuffer creates a buffer for f with room for capacity values.
func NewBuffer(mem memory.Allocator, f schema.Field, capacity int) *Buffer {
	b := array.NewBuilder(mem, f.Type.ToArrow())
	if capacity > MaxReserve {
		capacity = MaxReserve
	}
	if capacity > 0 {
		b.Reserve(capacity)
	}
	return &Buffer{field: f, builder: b}
}

// Push appends v, failing with a conversion error if v does not belong to
// the column's type family.
func (b *Buffer) Push(v document.Value) error {
	return appendValue(b.builder, b.field.Type, v, b.field.Name)
}

// PushNull appends a null.
func (b *Buffer) PushNull() { b.builder.AppendNull() }

func (b *Buffer) Len() int             { return b.builder.Len() }
func (b *Buffer) Field() schema.Field { return b.field }

// NewArray moves the buffered values into an array and resets the buffer.
func (b *Buffer) NewArray() arrow.Array { return b.builder.NewArray() }

func (b *Buffer) Release() { b.builder.Release() }

// BufferSet holds one Buffer per schema column.
type BufferSet struct {
	schema    schema.Schema
	buffers   []*Buffer
	rows      int
	finalized bool

	// scratch space reused across Add calls
	values []document.Value
	seen   []bool
}

// NewBufferSet creates buffers for every column of s, each pre-sized for
// estimatedRows values.
func NewBufferSet(mem memory.Allocator, s schema.Schema, estimatedRows int) *BufferSet {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	bs := &BufferSet{
		schema:  s,
		buffers: make([]*Buffer, s.Len()),
		values:  make([]document.Value, s.Len()),
		seen:    make([]bool, s.Len()),
	}
	for i, f := range s.Fields() {
		bs.buffers[i] = NewBuffer(mem, f, estimatedRows)
	}
	return bs
}

// Add appends one row. On error the set is left in an undefined state and
// should only be released.
func (bs *BufferSet) Add(doc document.Document) error {
	if bs.finalized {
		return errors.New(errors.ErrorTypeInternal, "buffer set already finalized")
	}

	for i := range bs.values {
		bs.values[i] = document.Missing()
		bs.seen[i] = false
	}
	for _, e := range doc {
		i := bs.schema.Index(e.Key)
		if i < 0 || bs.seen[i] {
			continue
		}
		bs.values[i] = e.Value
		bs.seen[i] = true
	}

	for i, buf := range bs.buffers {
		if err := buf.Push(bs.values[i]); err != nil {
			if e, ok := err.(*errors.Error); ok {
				e.WithDetail("row", bs.rows)
			}
			return err
		}
	}
	bs.rows++
	return nil
}

// Len returns the number of rows added so far.
func (bs *BufferSet) Len() int { return bs.rows }

// Schema returns the schema the set was built for.
func (bs *BufferSet) Schema() schema.Schema { return bs.schema }

// Finalize builds the record. The set is consumed; the caller owns the
// returned record and must Release it.
func (bs *BufferSet) Finalize() (arrow.Record, error) {
	if bs.finalized {
		return nil, errors.New(errors.ErrorTypeInternal, "buffer set already finalized")
	}
	bs.finalized = true
	defer bs.releaseBuffers()

	cols := make([]arrow.Array, len(bs.buffers))
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for i, buf := range bs.buffers {
		cols[i] = buf.NewArray()
		if cols[i].Len() != bs.rows {
			return nil, errors.Newf(errors.ErrorTypeInternal,
				"column %q has %d values, expected %d", buf.field.Name, cols[i].Len(), bs.rows).
				WithDetail("column", buf.field.Name)
		}
	}

	return array.NewRecord(bs.schema.ToArrow(), cols, int64(bs.rows)), nil
}

// Release frees the builders. It is safe after Finalize.
func (bs *BufferSet) Release() {
	if !bs.finalized {
		bs.finalized = true
		bs.releaseBuffers()
	}
}

func (bs *BufferSet) releaseBuffers() {
	for _, b := range bs.buffers {
		b.Release()
	}
}

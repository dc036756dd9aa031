// Package lazy is a minimal lazy query frame over opaque scan sources.
//
// A source implements AnonymousScan and declares which operations it can
// push down. Frame records a projection and a row limit, and only touches
// the source when Schema or Collect is called. Anything the source cannot
// push down is applied to the returned table instead.
package lazy

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/schema"
	"github.com/ajitpratap0/mongoscan/pkg/table"
)

// ScanArgs is what a source receives at execution time.
type ScanArgs struct {
	// Schema is the full resolved schema of the source.
	Schema schema.Schema
	// OutputSchema is the projected schema when projection is pushed down.
	OutputSchema *schema.Schema
	// NRows is the row bound, if any.
	NRows *int
}

// AnonymousScan is an opaque, possibly pushdown-capable data source.
type AnonymousScan interface {
	Scan(ctx context.Context, args ScanArgs) (*table.Table, error)
	Schema(ctx context.Context, inferSchemaLength int) (schema.Schema, error)
	AllowsPredicatePushdown() bool
	AllowsProjectionPushdown() bool
	AllowsSlicePushdown() bool
}

// ScanArgsAnonymous configures a frame over a source.
type ScanArgsAnonymous struct {
	Name              string
	InferSchemaLength int
	// NRows bounds the scan before any Head.
	NRows *int
	// Schema skips inference when set.
	Schema *schema.Schema
}

// Frame is an immutable lazy query. Select and Head return new frames.
type Frame struct {
	src        AnonymousScan
	args       ScanArgsAnonymous
	projection []string
	head       *int
	mem        memory.Allocator
}

// NewFrame wraps src. No I/O happens until Schema or Collect.
func NewFrame(src AnonymousScan, args ScanArgsAnonymous) *Frame {
	return &Frame{src: src, args: args, mem: memory.DefaultAllocator}
}

// Name returns the frame's source name.
func (f *Frame) Name() string { return f.args.Name }

// WithAllocator sets the allocator used for operations applied locally.
func (f *Frame) WithAllocator(mem memory.Allocator) *Frame {
	c := f.clone()
	c.mem = mem
	return c
}

// Select keeps only the named columns, in the given order.
func (f *Frame) Select(columns ...string) *Frame {
	c := f.clone()
	c.projection = append([]string(nil), columns...)
	return c
}

// Head keeps at most n rows. Repeated calls keep the smallest bound.
func (f *Frame) Head(n int) *Frame {
	c := f.clone()
	if c.head == nil || n < *c.head {
		c.head = &n
	}
	return c
}

// Schema resolves the output schema, inferring it from the source if none
// was supplied.
func (f *Frame) Schema(ctx context.Context) (schema.Schema, error) {
	full, err := f.fullSchema(ctx)
	if err != nil {
		return schema.Schema{}, err
	}
	return f.project(full)
}

// Collect executes the query. The caller owns the returned table.
func (f *Frame) Collect(ctx context.Context) (*table.Table, error) {
	full, err := f.fullSchema(ctx)
	if err != nil {
		return nil, err
	}
	out, err := f.project(full)
	if err != nil {
		return nil, err
	}

	args := ScanArgs{Schema: full, NRows: f.args.NRows}
	pushedProjection := len(f.projection) > 0 && f.src.AllowsProjectionPushdown()
	if pushedProjection {
		args.OutputSchema = &out
	}
	pushedSlice := f.head != nil && f.src.AllowsSlicePushdown()
	if pushedSlice {
		args.NRows = minRows(args.NRows, *f.head)
	}

	result, err := f.src.Scan(ctx, args)
	if err != nil {
		return nil, err
	}

	if len(f.projection) > 0 && !pushedProjection {
		projected, err := result.Select(f.projection...)
		result.Release()
		if err != nil {
			return nil, err
		}
		result = projected
	}
	if f.head != nil && !pushedSlice {
		limited := result.Head(int64(*f.head))
		result.Release()
		result = limited
	}
	return result, nil
}

func (f *Frame) fullSchema(ctx context.Context) (schema.Schema, error) {
	if f.args.Schema != nil {
		return *f.args.Schema, nil
	}
	return f.src.Schema(ctx, f.args.InferSchemaLength)
}

func (f *Frame) project(full schema.Schema) (schema.Schema, error) {
	if len(f.projection) == 0 {
		return full, nil
	}
	out, err := full.Select(f.projection...)
	if err != nil {
		return schema.Schema{}, errors.Wrap(err, errors.ErrorTypeValidation, "invalid selection").
			WithDetail("frame", f.args.Name)
	}
	return out, nil
}

func (f *Frame) clone() *Frame {
	c := *f
	return &c
}

func minRows(bound *int, n int) *int {
	if bound != nil && *bound < n {
		return bound
	}
	return &n
}

// Package scan reads a collection into a table by splitting it into
// contiguous skip/limit partitions that are fetched concurrently.
//
// Each partition opens its own collection handle, drains its cursor into a
// private columnar.BufferSet and finalizes one record batch. Batches are
// concatenated in partition order. A bounded ("top-N") scan fetches in
// descending _id order and re-sorts the result ascending, so it returns the
// N documents with the largest _id in natural order.
package scan

import (
	"context"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/mongoscan/pkg/columnar"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/logger"
	"github.com/ajitpratap0/mongoscan/pkg/metrics"
	"github.com/ajitpratap0/mongoscan/pkg/observability"
	"github.com/ajitpratap0/mongoscan/pkg/schema"
	"github.com/ajitpratap0/mongoscan/pkg/store"
	"github.com/ajitpratap0/mongoscan/pkg/table"
	"github.com/ajitpratap0/mongoscan/pkg/workerpool"
)

// closeTimeout bounds cleanup calls made after the scan context is done.
const closeTimeout = 5 * time.Second

// Request describes one scan.
type Request struct {
	// Schema is authoritative for column types.
	Schema schema.Schema
	// NRows bounds the scan to the N documents with the largest _id. Nil
	// reads the whole collection.
	NRows *int
	// Projection selects output columns. Empty keeps every schema column.
	Projection []string
	// Threads is the partition count hint. Zero uses the pool size.
	Threads   int
	BatchSize int32
	// Rechunk compacts the result into a single record batch.
	Rechunk bool
}

// Config holds the scanner's collaborators. Zero values get defaults.
type Config struct {
	Pool      *workerpool.Pool
	Allocator memory.Allocator
	Logger    *zap.Logger
	Metrics   *metrics.Collector
}

// Scanner runs partitioned scans against one store.
type Scanner struct {
	store   store.Store
	pool    *workerpool.Pool
	mem     memory.Allocator
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  *observability.ScanTracer
}

// New creates a scanner for st.
func New(st store.Store, cfg Config) *Scanner {
	if cfg.Pool == nil {
		cfg.Pool = workerpool.New(0)
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.DefaultAllocator
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}
	return &Scanner{
		store:   st,
		pool:    cfg.Pool,
		mem:     cfg.Allocator,
		logger:  cfg.Logger.With(zap.String(string(logger.CollectionKey), st.Name())),
		metrics: cfg.Metrics,
		tracer:  observability.NewScanTracer(st.Name()),
	}
}

// Scan reads the collection described by req. The caller owns the returned
// table. Any partition failure fails the whole scan.
func (s *Scanner) Scan(ctx context.Context, req Request) (_ *table.Table, err error) {
	timer := metrics.NewTimer()
	ctx = logger.ContextWithScanID(ctx, uuid.NewString())
	log := logger.FromContext(ctx, s.logger)
	ctx, span := s.tracer.StartSpan(ctx, "scan")

	var rows int64
	defer func() {
		span.SetAttribute("scan.rows", rows)
		span.End(err)
		s.metrics.ObserveScan(s.store.Name(), rows, timer.Stop(), err)
	}()

	out, err := s.outputSchema(req)
	if err != nil {
		return nil, err
	}
	if req.NRows != nil && *req.NRows <= 0 {
		log.Debug("zero rows requested, skipping query")
		return table.Empty(out.ToArrow()), nil
	}

	bounded := req.NRows != nil
	read := out
	idAdded := false
	if bounded && out.Index(store.IDField) < 0 {
		id, ok := req.Schema.Field(store.IDField)
		if !ok {
			return nil, errors.New(errors.ErrorTypeValidation, "a bounded scan needs _id in the schema")
		}
		read = out.With(id)
		idAdded = true
	}

	nRows, err := s.effectiveRows(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeScan, "failed to resolve row count")
	}

	threads := req.Threads
	if threads <= 0 {
		threads = s.pool.Size()
	}
	plan := NewPlan(nRows, threads, bounded)
	span.SetAttribute("scan.partitions", len(plan))
	span.SetAttribute("scan.planned_rows", plan.Rows())
	log.Debug("planned scan",
		zap.Int64("rows", nRows),
		zap.Int("partitions", len(plan)),
		zap.Bool("bounded", bounded))

	find := store.FindOptions{BatchSize: req.BatchSize}
	if len(req.Projection) > 0 {
		find.Projection = read.Names()
	}
	if bounded {
		find.Sort = store.IDDescending
	}

	arrowSchema := read.ToArrow()
	parts := make([]*table.Table, len(plan))
	defer func() {
		for _, part := range parts {
			if part != nil {
				part.Release()
			}
		}
	}()
	err = s.pool.Run(ctx, len(plan), func(ctx context.Context, i int) error {
		rec, err := s.readPartition(ctx, plan[i], read, find)
		if err == nil {
			parts[i], err = table.New(arrowSchema, []arrow.Record{rec})
			if err != nil {
				rec.Release()
			}
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeScan, "partition failed").
				WithDetail("partition", i).
				WithDetail("collection", s.store.Name())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result, err := table.Concat(arrowSchema, parts...)
	if err != nil {
		return nil, err
	}

	if bounded {
		if result, err = s.restoreOrder(ctx, result, idAdded); err != nil {
			return nil, err
		}
	}
	if req.Rechunk && result.NumChunks() > 1 {
		compact, err := result.Rechunk(s.mem)
		result.Release()
		if err != nil {
			return nil, err
		}
		result = compact
	}

	rows = result.NumRows()
	log.Info("scan complete",
		zap.Int64("rows", rows),
		zap.Int("partitions", len(plan)),
		zap.Duration("duration", timer.Stop()))
	return result, nil
}

func (s *Scanner) outputSchema(req Request) (schema.Schema, error) {
	if req.Schema.IsEmpty() {
		return schema.Schema{}, errors.New(errors.ErrorTypeValidation, "scan schema is empty")
	}
	if len(req.Projection) == 0 {
		return req.Schema, nil
	}
	out, err := req.Schema.Select(req.Projection...)
	if err != nil {
		return schema.Schema{}, errors.Wrap(err, errors.ErrorTypeValidation, "invalid projection")
	}
	return out, nil
}

func (s *Scanner) effectiveRows(ctx context.Context, req Request) (int64, error) {
	if req.NRows != nil {
		return int64(*req.NRows), nil
	}
	coll, err := s.store.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer s.closeCollection(coll)
	return coll.EstimatedDocumentCount(ctx)
}

// restoreOrder sorts a descending top-N result ascending by _id and drops
// _id again when only the sort needed it.
func (s *Scanner) restoreOrder(ctx context.Context, t *table.Table, dropID bool) (*table.Table, error) {
	defer t.Release()
	sorted, err := t.SortBy(ctx, s.mem, store.IDField, true)
	if err != nil {
		return nil, err
	}
	if !dropID {
		return sorted, nil
	}
	defer sorted.Release()
	return sorted.Drop(store.IDField)
}

func (s *Scanner) readPartition(ctx context.Context, p Partition, sch schema.Schema, find store.FindOptions) (rec arrow.Record, err error) {
	log := logger.FromContext(ctx, s.logger)
	done := s.metrics.PartitionStarted(s.store.Name())
	ctx, span := s.tracer.StartSpan(ctx, "partition")
	span.SetAttribute("partition.index", p.Index)
	span.SetAttribute("partition.skip", p.Skip)
	span.SetAttribute("partition.limit", p.Limit)

	var rows int64
	defer func() {
		span.SetAttribute("partition.rows", rows)
		d := span.End(err)
		done(rows, err)
		if err == nil {
			log.Debug("partition complete",
				zap.Stringer("partition", p),
				zap.Int64("rows", rows),
				zap.Duration("duration", d))
		}
	}()

	coll, err := s.store.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer s.closeCollection(coll)

	find.Skip = p.Skip
	find.Limit = p.Limit
	cur, err := coll.Find(ctx, find)
	if err != nil {
		return nil, err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if cerr := cur.Close(cctx); cerr != nil {
			log.Warn("failed to close cursor", zap.Stringer("partition", p), zap.Error(cerr))
		}
	}()

	bs := columnar.NewBufferSet(s.mem, sch, int(p.Expected))
	defer bs.Release()
	for cur.Next(ctx) {
		doc, err := cur.Document()
		if err != nil {
			return nil, err
		}
		if err := bs.Add(doc); err != nil {
			return nil, err
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	// a cancelled context ends Next without a cursor error
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows = int64(bs.Len())
	rec, err = bs.Finalize()
	if err != nil {
		return nil, err
	}
	span.AddEvent("finalized",
		attribute.Int64("rows", rows),
		attribute.Int64("columns", rec.NumCols()))
	return rec, nil
}

func (s *Scanner) closeCollection(coll store.Collection) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := coll.Close(ctx); err != nil {
		s.logger.Warn("failed to close collection handle", zap.Error(err))
	}
}

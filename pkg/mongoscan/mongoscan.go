// Package mongoscan exposes a MongoDB collection as a lazy, pushdown-capable
// table source.
//
// Typical use goes through ScanMongoCollection, which returns a lazy.Frame:
//
//	n := 129
//	frame, err := mongoscan.ScanMongoCollection(config.ScanOptions{
//	    ConnectionStr: "mongodb://localhost:27017",
//	    DB:            "shop",
//	    Collection:    "orders",
//	    NRows:         &n,
//	})
//	tbl, err := frame.Select("_id", "total").Collect(ctx)
//	defer tbl.Release()
//
// The schema is inferred from a sample of the collection on first use
// unless one is supplied. Projection and row limits are pushed down to the
// query; filters are not, and are reported as unsupported.
package mongoscan

import (
	"context"
	"iter"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ajitpratap0/mongoscan/pkg/config"
	"github.com/ajitpratap0/mongoscan/pkg/document"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/lazy"
	"github.com/ajitpratap0/mongoscan/pkg/logger"
	"github.com/ajitpratap0/mongoscan/pkg/metrics"
	"github.com/ajitpratap0/mongoscan/pkg/observability"
	"github.com/ajitpratap0/mongoscan/pkg/scan"
	"github.com/ajitpratap0/mongoscan/pkg/schema"
	"github.com/ajitpratap0/mongoscan/pkg/store"
	"github.com/ajitpratap0/mongoscan/pkg/store/mongostore"
	"github.com/ajitpratap0/mongoscan/pkg/table"
	"github.com/ajitpratap0/mongoscan/pkg/workerpool"
)

// FrameName is the source name frames report.
const FrameName = "MONGO SCAN"

// closeTimeout bounds cleanup of the sampling cursor and handle.
const closeTimeout = 5 * time.Second

// MongoScan is a scan source bound to one collection.
type MongoScan struct {
	store     store.Store
	batchSize *int
	rechunk   bool
	threads   int
	pool      *workerpool.Pool
	mem       memory.Allocator
	logger    *zap.Logger
	metrics   *metrics.Collector
}

var _ lazy.AnonymousScan = (*MongoScan)(nil)

// Option configures a MongoScan.
type Option func(*MongoScan)

// WithThreads sets the partition count. Zero uses the pool size.
func WithThreads(n int) Option { return func(m *MongoScan) { m.threads = n } }

// WithPool shares a worker pool between scans.
func WithPool(p *workerpool.Pool) Option { return func(m *MongoScan) { m.pool = p } }

func WithLogger(l *zap.Logger) Option { return func(m *MongoScan) { m.logger = l } }

func WithAllocator(mem memory.Allocator) Option { return func(m *MongoScan) { m.mem = mem } }

func WithMetrics(c *metrics.Collector) Option { return func(m *MongoScan) { m.metrics = c } }

// New returns a source for db.collection at connStr. The connection string
// is parsed here; a malformed one is a connection error. No connection is
// made until the first Schema or Scan call.
func New(connStr, db, collection string, opts ...Option) (*MongoScan, error) {
	m := &MongoScan{}
	m.apply(opts)
	st, err := mongostore.New(connStr, db, collection, m.logger)
	if err != nil {
		return nil, err
	}
	m.store = st
	return m, nil
}

// NewWithStore returns a source over any store implementation.
func NewWithStore(st store.Store, opts ...Option) *MongoScan {
	m := &MongoScan{store: st}
	m.apply(opts)
	return m
}

func (m *MongoScan) apply(opts []Option) {
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get()
	}
	if m.pool == nil {
		m.pool = workerpool.New(m.threads)
	}
	if m.mem == nil {
		m.mem = memory.DefaultAllocator
	}
}

// WithBatchSize returns a copy that asks the server for n documents per
// round trip. Nil restores the driver default.
func (m *MongoScan) WithBatchSize(n *int) *MongoScan {
	c := *m
	c.batchSize = n
	return &c
}

// WithRechunk returns a copy that compacts results into one record batch.
func (m *MongoScan) WithRechunk(rechunk bool) *MongoScan {
	c := *m
	c.rechunk = rechunk
	return &c
}

// Name identifies the underlying collection.
func (m *MongoScan) Name() string { return m.store.Name() }

// Schema infers the collection schema from its first inferLength documents.
// Zero or less uses schema.DefaultInferLength.
func (m *MongoScan) Schema(ctx context.Context, inferLength int) (s schema.Schema, err error) {
	if inferLength <= 0 {
		inferLength = schema.DefaultInferLength
	}
	ctx, span := observability.NewScanTracer(m.store.Name()).StartSpan(ctx, "infer_schema")
	span.SetAttribute("infer.length", inferLength)
	defer func() {
		span.SetAttribute("schema.columns", s.Len())
		span.End(err)
	}()

	coll, err := m.store.Open(ctx)
	if err != nil {
		return schema.Schema{}, errors.Wrap(err, errors.ErrorTypeSchemaInference, "failed to open collection")
	}
	defer m.closeQuietly("collection handle", coll.Close)

	cur, err := coll.Find(ctx, store.FindOptions{Limit: int64(inferLength), BatchSize: m.batchSize32()})
	if err != nil {
		return schema.Schema{}, errors.Wrap(err, errors.ErrorTypeSchemaInference, "failed to query sample")
	}
	defer m.closeQuietly("sample cursor", cur.Close)

	s, err = schema.Infer(cursorSeq(ctx, cur), inferLength)
	if err != nil {
		return schema.Schema{}, err
	}
	m.logger.Debug("inferred schema",
		zap.String(string(logger.CollectionKey), m.store.Name()),
		zap.Strings("columns", s.Names()))
	return s, nil
}

// closeQuietly runs a cleanup call under closeTimeout and logs its failure.
func (m *MongoScan) closeQuietly(what string, closeFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := closeFn(ctx); err != nil {
		m.logger.Warn("failed to close "+what,
			zap.String(string(logger.CollectionKey), m.store.Name()),
			zap.Error(err))
	}
}

// cursorSeq yields documents and ends with the cursor error, if any.
func cursorSeq(ctx context.Context, cur store.Cursor) iter.Seq2[document.Document, error] {
	return func(yield func(document.Document, error) bool) {
		for cur.Next(ctx) {
			doc, err := cur.Document()
			if !yield(doc, err) || err != nil {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, err)
			return
		}
		if err := ctx.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Scan reads the collection. A projected OutputSchema restricts the fields
// fetched from the server; NRows selects the newest N documents by _id.
func (m *MongoScan) Scan(ctx context.Context, args lazy.ScanArgs) (*table.Table, error) {
	req := scan.Request{
		Schema:    args.Schema,
		NRows:     args.NRows,
		Threads:   m.threads,
		BatchSize: m.batchSize32(),
		Rechunk:   m.rechunk,
	}
	if args.OutputSchema != nil {
		req.Projection = args.OutputSchema.Names()
	}
	return m.scanner().Scan(ctx, req)
}

func (m *MongoScan) scanner() *scan.Scanner {
	return scan.New(m.store, scan.Config{
		Pool:      m.pool,
		Allocator: m.mem,
		Logger:    m.logger,
		Metrics:   m.metrics,
	})
}

func (m *MongoScan) batchSize32() int32 {
	if m.batchSize == nil || *m.batchSize <= 0 {
		return 0
	}
	return int32(*m.batchSize)
}

// AllowsPredicatePushdown is false: filters are applied by the caller.
func (m *MongoScan) AllowsPredicatePushdown() bool { return false }

// AllowsProjectionPushdown is true: projections become a field filter.
func (m *MongoScan) AllowsProjectionPushdown() bool { return true }

// AllowsSlicePushdown is true: a head-N slice becomes the row bound.
func (m *MongoScan) AllowsSlicePushdown() bool { return true }

// ScanMongoCollection validates opts and returns a lazy frame over the
// collection. Nothing is read until the frame is collected.
func ScanMongoCollection(opts config.ScanOptions, extra ...Option) (*lazy.Frame, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	all := append([]Option{WithThreads(opts.Threads)}, extra...)
	m, err := New(opts.ConnectionStr, opts.DB, opts.Collection, all...)
	if err != nil {
		return nil, err
	}
	return FrameFor(m.WithBatchSize(opts.BatchSize).WithRechunk(opts.Rechunk), opts), nil
}

// FrameFor wraps an existing source in a frame configured by opts.
func FrameFor(m *MongoScan, opts config.ScanOptions) *lazy.Frame {
	frame := lazy.NewFrame(m, lazy.ScanArgsAnonymous{
		Name:              FrameName,
		InferSchemaLength: opts.InferSchemaLength,
		NRows:             opts.NRows,
	})
	return frame.WithAllocator(m.mem)
}

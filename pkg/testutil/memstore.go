package testutil

import (
	"bytes"
	"cmp"
	"context"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/mongoscan/pkg/document"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/store"
)

// MemStore is an in-memory store.Store. Natural order is insertion order.
type MemStore struct {
	name string
	docs []document.Document

	// OpenErr, when set, is returned by Open.
	OpenErr error
	// FailAt, when positive, makes every cursor fail on its FailAt-th document
	// with FailErr.
	FailAt  int
	FailErr error
	// CursorCloseErr, when set, is returned by every cursor's Close.
	CursorCloseErr error

	opened atomic.Int64
	closed atomic.Int64

	mu    sync.Mutex
	finds []store.FindOptions
}

// NewMemStore creates a store over docs.
func NewMemStore(name string, docs []document.Document) *MemStore {
	return &MemStore{name: name, docs: docs}
}

// SequentialDocs returns n documents with _id 0..n-1 and a few typed fields.
func SequentialDocs(n int) []document.Document {
	docs := make([]document.Document, n)
	for i := range docs {
		docs[i] = document.D(
			"_id", document.Int64(int64(i)),
			"name", document.String("doc"),
			"score", document.Double(float64(i)/2),
		)
	}
	return docs
}

func (m *MemStore) Name() string { return m.name }

func (m *MemStore) Open(_ context.Context) (store.Collection, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.opened.Add(1)
	return &memCollection{store: m}, nil
}

// Opened returns the number of handles opened so far.
func (m *MemStore) Opened() int64 { return m.opened.Load() }

// Closed returns the number of handles closed so far.
func (m *MemStore) Closed() int64 { return m.closed.Load() }

// Finds returns every FindOptions received, in call order.
func (m *MemStore) Finds() []store.FindOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.FindOptions(nil), m.finds...)
}

type memCollection struct {
	store  *MemStore
	closed atomic.Bool
}

func (c *memCollection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(c.store.docs)), nil
}

func (c *memCollection) Find(ctx context.Context, o store.FindOptions) (store.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, errors.New(errors.ErrorTypeConnection, "collection closed")
	}
	c.store.mu.Lock()
	c.store.finds = append(c.store.finds, o)
	c.store.mu.Unlock()

	docs := append([]document.Document(nil), c.store.docs...)
	switch o.Sort {
	case store.IDAscending:
		slices.SortStableFunc(docs, compareIDs)
	case store.IDDescending:
		slices.SortStableFunc(docs, func(a, b document.Document) int { return compareIDs(b, a) })
	}

	start := min(o.Skip, int64(len(docs)))
	end := int64(len(docs))
	if o.Limit > 0 {
		end = min(start+o.Limit, end)
	}
	docs = docs[start:end]
	if len(o.Projection) > 0 {
		for i := range docs {
			docs[i] = docs[i].Project(o.Projection)
		}
	}
	return &memCursor{
		docs:     docs,
		failAt:   c.store.FailAt,
		failErr:  c.store.FailErr,
		closeErr: c.store.CursorCloseErr,
		pos:      -1,
	}, nil
}

func (c *memCollection) Close(_ context.Context) error {
	if c.closed.CompareAndSwap(false, true) {
		c.store.closed.Add(1)
	}
	return nil
}

type memCursor struct {
	docs    []document.Document
	pos     int
	failAt  int
	failErr  error
	closeErr error
	err      error
}

func (c *memCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	c.pos++
	if c.failAt > 0 && c.pos+1 == c.failAt {
		c.err = c.failErr
		if c.err == nil {
			c.err = errors.New(errors.ErrorTypeScan, "injected cursor failure")
		}
		return false
	}
	return c.pos < len(c.docs)
}

func (c *memCursor) Document() (document.Document, error) {
	return c.docs[c.pos], nil
}

func (c *memCursor) Err() error { return c.err }

func (c *memCursor) Close(ctx context.Context) error {
	if c.closeErr != nil {
		return c.closeErr
	}
	return ctx.Err()
}

func compareIDs(a, b document.Document) int {
	return compareValues(a.Get(store.IDField), b.Get(store.IDField))
}

// compareValues orders numbers before strings before object ids, which is
// enough for the _id values tests use.
func compareValues(a, b document.Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 1:
		return cmp.Compare(number(a), number(b))
	case 2:
		return cmp.Compare(a.StringValue(), b.StringValue())
	case 3:
		return bytes.Compare([]byte(a.StringValue()), []byte(b.StringValue()))
	}
	return 0
}

func rank(v document.Value) int {
	switch v.Kind() {
	case document.KindInt32, document.KindInt64, document.KindDouble, document.KindDecimal128:
		return 1
	case document.KindString, document.KindSymbol:
		return 2
	case document.KindObjectID:
		return 3
	}
	return 0
}

func number(v document.Value) float64 {
	switch v.Kind() {
	case document.KindDouble:
		return v.Double()
	case document.KindDecimal128:
		f, _ := strconv.ParseFloat(v.StringValue(), 64)
		return f
	}
	return float64(v.Int())
}

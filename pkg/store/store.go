// Package store abstracts the document database a scan reads from.
//
// The scanner only needs four things from a collection: an estimated size,
// a cursor over a skip/limit window, an optional _id ordering, and a field
// projection. Keeping that surface small lets tests run the full scan path
// against an in-memory store, while mongostore implements it on top of the
// official MongoDB driver.
package store

import (
	"context"

	"github.com/ajitpratap0/mongoscan/pkg/document"
)

// IDField is the primary key every document carries.
const IDField = "_id"

// Store opens independent handles on one collection.
type Store interface {
	// Open returns a new handle. Each handle may own its own connection, so
	// callers must Close it.
	Open(ctx context.Context) (Collection, error)
	// Name identifies the collection in logs and metrics, e.g. "db.coll".
	Name() string
}

// Collection is an open handle on a collection.
type Collection interface {
	EstimatedDocumentCount(ctx context.Context) (int64, error)
	Find(ctx context.Context, opts FindOptions) (Cursor, error)
	Close(ctx context.Context) error
}

// Cursor iterates query results in server order.
type Cursor interface {
	Next(ctx context.Context) bool
	Document() (document.Document, error)
	Err() error
	Close(ctx context.Context) error
}

// Sort selects the order documents are returned in.
type Sort int

const (
	// Natural leaves ordering to the server.
	Natural Sort = iota
	// IDAscending orders by _id, smallest first.
	IDAscending
	// IDDescending orders by _id, largest first.
	IDDescending
)

func (s Sort) String() string {
	switch s {
	case IDAscending:
		return "_id asc"
	case IDDescending:
		return "_id desc"
	default:
		return "natural"
	}
}

// FindOptions describes one window of a collection.
type FindOptions struct {
	Skip int64
	// Limit of 0 means no limit.
	Limit int64
	Sort  Sort
	// BatchSize hints the server round-trip size. 0 uses the server default.
	BatchSize int32
	// Projection restricts returned fields. Empty returns every field.
	Projection []string
}

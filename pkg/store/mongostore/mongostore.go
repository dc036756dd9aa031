// Package mongostore implements store.Store with the official MongoDB driver.
package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ajitpratap0/mongoscan/pkg/document"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/store"
)

const appName = "mongoscan"

// Store opens one client per handle against a single collection.
type Store struct {
	clientOpts *options.ClientOptions
	database   string
	collection string
	logger     *zap.Logger
}

// New validates the connection string without dialing. A malformed string
// yields a connection error.
func New(connStr, database, collection string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := options.Client().ApplyURI(connStr).SetAppName(appName)
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "invalid connection string")
	}
	if database == "" || collection == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "database and collection are required").
			WithDetail("db", database).
			WithDetail("collection", collection)
	}
	return &Store{
		clientOpts: opts,
		database:   database,
		collection: collection,
		logger:     logger.With(zap.String("collection", database+"."+collection)),
	}, nil
}

func (s *Store) Name() string { return s.database + "." + s.collection }

// Open connects a fresh client and pings the deployment.
func (s *Store) Open(ctx context.Context) (store.Collection, error) {
	client, err := mongo.Connect(ctx, s.clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to MongoDB")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to ping MongoDB")
	}
	s.logger.Debug("opened connection")
	return &collection{
		client: client,
		coll:   client.Database(s.database).Collection(s.collection),
		logger: s.logger,
	}, nil
}

type collection struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

func (c *collection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	n, err := c.coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeScan, "failed to estimate document count")
	}
	return n, nil
}

func (c *collection) Find(ctx context.Context, o store.FindOptions) (store.Cursor, error) {
	cur, err := c.coll.Find(ctx, bson.D{}, findOptions(o))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeScan, "find failed").
			WithDetail("skip", o.Skip).
			WithDetail("limit", o.Limit)
	}
	return &cursor{cur: cur}, nil
}

func (c *collection) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		c.logger.Warn("failed to disconnect", zap.Error(err))
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to disconnect")
	}
	return nil
}

func findOptions(o store.FindOptions) *options.FindOptions {
	fo := options.Find()
	if o.Skip > 0 {
		fo.SetSkip(o.Skip)
	}
	if o.Limit > 0 {
		fo.SetLimit(o.Limit)
	}
	if o.BatchSize > 0 {
		fo.SetBatchSize(o.BatchSize)
	}
	switch o.Sort {
	case store.IDAscending:
		fo.SetSort(bson.D{{Key: store.IDField, Value: 1}})
	case store.IDDescending:
		fo.SetSort(bson.D{{Key: store.IDField, Value: -1}})
	}
	if len(o.Projection) > 0 {
		fo.SetProjection(projection(o.Projection))
	}
	return fo
}

// projection builds an inclusion projection. _id is always returned by the
// server unless excluded, so it is excluded when not asked for.
func projection(fields []string) bson.D {
	p := make(bson.D, 0, len(fields)+1)
	hasID := false
	for _, f := range fields {
		if f == store.IDField {
			hasID = true
		}
		p = append(p, bson.E{Key: f, Value: 1})
	}
	if !hasID {
		p = append(p, bson.E{Key: store.IDField, Value: 0})
	}
	return p
}

type cursor struct {
	cur *mongo.Cursor
}

func (c *cursor) Next(ctx context.Context) bool { return c.cur.Next(ctx) }

func (c *cursor) Document() (document.Document, error) {
	var raw bson.D
	if err := c.cur.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeScan, "failed to decode document")
	}
	doc, err := document.FromBSON(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConversion, "failed to convert document")
	}
	return doc, nil
}

func (c *cursor) Err() error {
	if err := c.cur.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeScan, "cursor failed")
	}
	return nil
}

func (c *cursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }

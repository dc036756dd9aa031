package mongostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/mongoscan/pkg/document"
	"github.com/ajitpratap0/mongoscan/pkg/errors"
	"github.com/ajitpratap0/mongoscan/pkg/store"
	"github.com/ajitpratap0/mongoscan/pkg/testutil"
)

func TestNewRejectsMalformedURI(t *testing.T) {
	_, err := New("postgres://localhost", "db", "coll", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestNewRequiresNames(t *testing.T) {
	_, err := New("mongodb://localhost:27017", "", "coll", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestNewDoesNotDial(t *testing.T) {
	s, err := New("mongodb://127.0.0.1:1", "shop", "orders", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "shop.orders", s.Name())
}

func TestFindOptions(t *testing.T) {
	fo := findOptions(store.FindOptions{
		Skip:       10,
		Limit:      5,
		Sort:       store.IDDescending,
		BatchSize:  100,
		Projection: []string{"a", "b"},
	})
	require.NotNil(t, fo.Skip)
	assert.Equal(t, int64(10), *fo.Skip)
	require.NotNil(t, fo.Limit)
	assert.Equal(t, int64(5), *fo.Limit)
	require.NotNil(t, fo.BatchSize)
	assert.Equal(t, int32(100), *fo.BatchSize)
	assert.Equal(t, bson.D{{Key: "_id", Value: -1}}, fo.Sort)
	assert.Equal(t, bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 1}, {Key: "_id", Value: 0}}, fo.Projection)
}

func TestFindOptionsOpenEnded(t *testing.T) {
	fo := findOptions(store.FindOptions{})
	assert.Nil(t, fo.Skip)
	assert.Nil(t, fo.Limit)
	assert.Nil(t, fo.Sort)
	assert.Nil(t, fo.Projection)
}

func TestProjectionKeepsRequestedID(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "_id", Value: 1}, {Key: "x", Value: 1}}, projection([]string{"_id", "x"}))
}

type storeSuite struct {
	testutil.MongoSuite
}

// TestMongoStore runs against a live deployment when MONGOSCAN_TEST_URI is set.
func TestMongoStore(t *testing.T) {
	suite.Run(t, new(storeSuite))
}

func (s *storeSuite) TestFindAgainstServer() {
	docs := make([]document.Document, 20)
	for i := range docs {
		docs[i] = document.D("_id", document.Int32(int32(i)), "n", document.Int64(int64(i*2)))
	}
	s.Seed("find", docs)
	ctx := s.Context()

	st, err := New(s.URI(), s.Database(), "find", zaptest.NewLogger(s.T()))
	s.Require().NoError(err)
	h, err := st.Open(ctx)
	s.Require().NoError(err)
	defer func() { s.NoError(h.Close(context.Background())) }()

	n, err := h.EstimatedDocumentCount(ctx)
	s.Require().NoError(err)
	s.Equal(int64(20), n)

	cur, err := h.Find(ctx, store.FindOptions{Skip: 2, Limit: 3, Sort: store.IDDescending, Projection: []string{"n"}})
	s.Require().NoError(err)
	defer cur.Close(ctx)

	var got []document.Document
	for cur.Next(ctx) {
		d, err := cur.Document()
		s.Require().NoError(err)
		got = append(got, d)
	}
	s.Require().NoError(cur.Err())
	s.Require().Len(got, 3)
	s.Equal(document.D("n", document.Int64(34)), got[0])
	s.Equal(document.KindMissing, got[0].Get("_id").Kind())
}

func (s *storeSuite) TestOpenUnreachable() {
	st, err := New("mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200", "db", "c", nil)
	s.Require().NoError(err)
	_, err = st.Open(s.Context())
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeConnection))
}

package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ajitpratap0/mongoscan/pkg/document"
)

// IntegrationURIEnv names the variable holding a live deployment's URI.
const IntegrationURIEnv = "MONGOSCAN_TEST_URI"

// MongoSuite runs against a live deployment and skips when IntegrationURIEnv
// is unset. Each suite gets its own database, dropped on teardown.
type MongoSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	client    *mongo.Client
	uri       string
	db        string
	startTime time.Time
}

// SetupSuite connects and picks a fresh database name.
func (s *MongoSuite) SetupSuite() {
	s.uri = os.Getenv(IntegrationURIEnv)
	if s.uri == "" {
		s.T().Skipf("%s not set", IntegrationURIEnv)
	}
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	client, err := mongo.Connect(s.ctx, options.Client().ApplyURI(s.uri))
	require.NoError(s.T(), err)
	require.NoError(s.T(), client.Ping(s.ctx, nil))
	s.client = client
	s.db = fmt.Sprintf("mongoscan_test_%d", time.Now().UnixNano())

	s.T().Logf("integration suite using database %s", s.db)
}

// TearDownSuite drops the suite database and disconnects.
func (s *MongoSuite) TearDownSuite() {
	if s.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.client.Database(s.db).Drop(ctx); err != nil {
			s.T().Logf("failed to drop %s: %v", s.db, err)
		}
		_ = s.client.Disconnect(ctx)
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.T().Logf("integration suite completed in %v", time.Since(s.startTime))
}

func (s *MongoSuite) Context() context.Context { return s.ctx }
func (s *MongoSuite) URI() string              { return s.uri }
func (s *MongoSuite) Database() string         { return s.db }

// Seed replaces collection with docs.
func (s *MongoSuite) Seed(collection string, docs []document.Document) {
	coll := s.client.Database(s.db).Collection(collection)
	require.NoError(s.T(), coll.Drop(s.ctx))
	if len(docs) == 0 {
		require.NoError(s.T(), s.client.Database(s.db).CreateCollection(s.ctx, collection))
		return
	}
	batch := make([]interface{}, len(docs))
	for i, d := range docs {
		batch[i] = document.ToBSON(d)
	}
	_, err := coll.InsertMany(s.ctx, batch)
	require.NoError(s.T(), err)
}

package testutil

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/mongoscan/pkg/document"
	"github.com/ajitpratap0/mongoscan/pkg/store"
)

func drain(t *testing.T, ctx context.Context, c store.Collection, o store.FindOptions) ([]document.Document, error) {
	t.Helper()
	cur, err := c.Find(ctx, o)
	require.NoError(t, err)
	defer cur.Close(ctx)
	var out []document.Document
	for cur.Next(ctx) {
		d, err := cur.Document()
		require.NoError(t, err)
		out = append(out, d)
	}
	return out, cur.Err()
}

func ids(docs []document.Document) []int64 {
	out := make([]int64, len(docs))
	for i, d := range docs {
		out[i] = d.Get("_id").Int()
	}
	return out
}

func TestMemStoreFind(t *testing.T) {
	ctx := TestContext(t)
	docs := []document.Document{
		document.D("_id", document.Int64(3)),
		document.D("_id", document.Int64(1)),
		document.D("_id", document.Int64(2)),
	}
	st := NewMemStore("db.c", docs)
	c, err := st.Open(ctx)
	require.NoError(t, err)
	defer c.Close(ctx)

	n, err := c.EstimatedDocumentCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := drain(t, ctx, c, store.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids(got))

	got, err = drain(t, ctx, c, store.FindOptions{Sort: store.IDAscending})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(got))

	got, err = drain(t, ctx, c, store.FindOptions{Sort: store.IDDescending, Skip: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(got))

	assert.Len(t, st.Finds(), 3)
}

func TestMemStoreProjection(t *testing.T) {
	ctx := TestContext(t)
	st := NewMemStore("db.c", SequentialDocs(2))
	c, err := st.Open(ctx)
	require.NoError(t, err)
	defer c.Close(ctx)

	got, err := drain(t, ctx, c, store.FindOptions{Projection: []string{"score"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"score"}, got[1].Keys())
}

func TestMemStoreFailures(t *testing.T) {
	ctx := TestContext(t)
	boom := stderrors.New("boom")

	st := NewMemStore("db.c", SequentialDocs(5))
	st.FailAt = 3
	st.FailErr = boom
	c, err := st.Open(ctx)
	require.NoError(t, err)
	got, err := drain(t, ctx, c, store.FindOptions{})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, got, 2)
	require.NoError(t, c.Close(ctx))

	_, err = c.Find(ctx, store.FindOptions{})
	assert.Error(t, err)
	assert.Equal(t, int64(1), st.Opened())
	assert.Equal(t, int64(1), st.Closed())

	st.OpenErr = boom
	_, err = st.Open(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestCompareValuesOrdersByType(t *testing.T) {
	oid := document.ObjectID([12]byte{1})
	assert.Negative(t, compareValues(document.Int32(5), document.Double(5.5)))
	assert.Negative(t, compareValues(document.Int64(100), document.String("a")))
	assert.Negative(t, compareValues(document.String("z"), oid))
	assert.Zero(t, compareValues(document.Int32(2), document.Int64(2)))
}

package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/ordering"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/store"
	"github.com/roach88/listorder/internal/store/memory"
)

func setup(t *testing.T) (*prometheus.Registry, *Metrics, store.DocumentCollection) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	coll, err := memory.New().Collection("tasks")
	require.NoError(t, err)
	return reg, m, m.Wrap(coll)
}

func TestNew_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestWrap_CountsOperations(t *testing.T) {
	reg, m, coll := setup(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, coll.Insert(ctx, &ir.Document{ID: string(rune('a' + i)), Fields: ir.Object{"pos": ir.Int(i)}}))
	}
	_, err := coll.Get(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := coll.IncrementField(ctx, query.Compare{Field: "pos", Op: query.Gte, Value: 2}, "pos")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.StoreOpsTotal.WithLabelValues("tasks", "insert", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOpsTotal.WithLabelValues("tasks", "get", "not_found")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ShiftedTotal.WithLabelValues("tasks", "down")))

	summary, err := Summary(reg)
	require.NoError(t, err)
	assert.Equal(t, []OpCount{
		{Collection: "tasks", Op: "get", Status: "not_found", Count: 1},
		{Collection: "tasks", Op: "increment_field", Status: "ok", Count: 1},
		{Collection: "tasks", Op: "insert", Status: "ok", Count: 3},
	}, summary)
}

func TestWrap_DrivesOrderingEngine(t *testing.T) {
	reg, m, coll := setup(t)
	ctx := context.Background()
	list, err := ordering.New(coll, ordering.Config{Column: "pos"})
	require.NoError(t, err)

	var docs []*ir.Document
	for _, id := range []string{"a", "b", "c"} {
		doc := ir.NewDocument(id)
		require.NoError(t, list.BeforeCreate(ctx, doc))
		require.NoError(t, coll.Insert(ctx, doc))
		docs = append(docs, doc)
	}
	require.NoError(t, list.MoveToTop(ctx, docs[2]))

	// Three bottom lookups, one shift of two records, one final write.
	assert.Equal(t, 3.0, testutil.ToFloat64(m.StoreOpsTotal.WithLabelValues("tasks", "find_one", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ShiftedTotal.WithLabelValues("tasks", "down")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOpsTotal.WithLabelValues("tasks", "set_field", "ok")))
	// One latency series per operation: find_one, insert, increment_field, set_field.
	assert.Equal(t, 4, testutil.CollectAndCount(m.StoreOpDuration))

	_, err = Summary(reg)
	require.NoError(t, err)
}

type indexing struct {
	store.DocumentCollection
	fields []string
}

func (i *indexing) EnsureIndex(_ context.Context, field string) error {
	i.fields = append(i.fields, field)
	return nil
}

func TestWrap_KeepsIndexer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	base, err := memory.New().Collection("tasks")
	require.NoError(t, err)

	_, ok := m.Wrap(base).(store.Indexer)
	assert.False(t, ok, "memory collections do not index")

	inner := &indexing{DocumentCollection: base}
	wrapped := m.Wrap(inner)
	idx, ok := wrapped.(store.Indexer)
	require.True(t, ok)
	require.NoError(t, idx.EnsureIndex(context.Background(), "pos"))
	assert.Equal(t, []string{"pos"}, inner.fields)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOpsTotal.WithLabelValues("tasks", "ensure_index", "ok")))
}

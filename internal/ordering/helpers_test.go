package ordering

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/store"
	"github.com/roach88/listorder/internal/store/memory"
)

// fixture bundles a list with the collection behind it.
type fixture struct {
	t    *testing.T
	ctx  context.Context
	list *List
	coll store.DocumentCollection
	seq  int
}

// newFixture mirrors the classic test model: position column "pos",
// scope "parent_id".
func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	coll, err := memory.New().Collection("list_mixins")
	require.NoError(t, err)
	list, err := New(coll, cfg, opts...)
	require.NoError(t, err)
	return &fixture{t: t, ctx: context.Background(), list: list, coll: coll}
}

func defaultConfig() Config {
	return Config{Column: "pos", Scope: []string{"parent_id"}}
}

// create runs the before-create hook and inserts the record, the way the
// repository does.
func (f *fixture) create(fields ir.Object) *ir.Document {
	f.t.Helper()
	f.seq++
	doc := &ir.Document{ID: fmt.Sprintf("doc-%03d", f.seq), Fields: fields.Clone()}
	if doc.Fields == nil {
		doc.Fields = ir.Object{}
	}
	require.NoError(f.t, f.list.BeforeCreate(f.ctx, doc))
	require.NoError(f.t, f.coll.Insert(f.ctx, doc))
	return doc
}

// seed creates n records in parent scope with original_id 1..n.
func (f *fixture) seed(parent int64, n int) {
	f.t.Helper()
	for i := 1; i <= n; i++ {
		f.create(ir.Object{"parent_id": ir.Int(parent), "original_id": ir.Int(int64(i))})
	}
}

// byOriginal fetches the record with the given original_id.
func (f *fixture) byOriginal(id int64) *ir.Document {
	f.t.Helper()
	doc, err := f.coll.FindOne(f.ctx, query.Query{Filter: query.Equals{Field: "original_id", Value: ir.Int(id)}})
	require.NoError(f.t, err)
	require.NotNil(f.t, doc, "original_id %d", id)
	return doc
}

func (f *fixture) reload(doc *ir.Document) *ir.Document {
	f.t.Helper()
	fresh, err := f.coll.Get(f.ctx, doc.ID)
	require.NoError(f.t, err)
	return fresh
}

// order lists original_ids of the in-list records of parent by position.
func (f *fixture) order(parent int64) []int64 {
	f.t.Helper()
	docs, err := f.coll.Find(f.ctx, query.Query{
		Filter: query.All(query.Equals{Field: "parent_id", Value: ir.Int(parent)}, query.Exists{Field: f.list.Column()}),
		Sort:   []query.Order{query.Asc(f.list.Column())},
	})
	require.NoError(f.t, err)
	out := make([]int64, len(docs))
	for i, d := range docs {
		out[i], _ = d.Int("original_id")
	}
	return out
}

// positions returns the sorted positions of in-list records matching filter.
func (f *fixture) positions(filter query.Predicate) []int64 {
	f.t.Helper()
	docs, err := f.coll.Find(f.ctx, query.Query{
		Filter: query.All(filter, query.Exists{Field: f.list.Column()}),
		Sort:   []query.Order{query.Asc(f.list.Column())},
	})
	require.NoError(f.t, err)
	out := make([]int64, len(docs))
	for i, d := range docs {
		out[i], _ = d.Int(f.list.Column())
	}
	return out
}

// requireDense asserts positions under filter are exactly 1..N.
func (f *fixture) requireDense(filter query.Predicate) {
	f.t.Helper()
	got := f.positions(filter)
	for i, p := range got {
		require.Equal(f.t, int64(i+1), p, "positions %v are not dense", got)
	}
}

func (f *fixture) destroy(doc *ir.Document) {
	f.t.Helper()
	require.NoError(f.t, f.list.BeforeDestroy(f.ctx, doc))
	require.NoError(f.t, f.coll.Delete(f.ctx, doc.ID))
}

// recordingCollection counts calls and can fail a chosen operation.
type recordingCollection struct {
	store.Collection
	calls  []string
	failOn string
	err    error
}

var errInjected = errors.New("injected store failure")

func (r *recordingCollection) record(op string) error {
	r.calls = append(r.calls, op)
	if op == r.failOn {
		return r.err
	}
	return nil
}

func (r *recordingCollection) FindOne(ctx context.Context, q query.Query) (*ir.Document, error) {
	if err := r.record("find_one"); err != nil {
		return nil, err
	}
	return r.Collection.FindOne(ctx, q)
}

func (r *recordingCollection) SetField(ctx context.Context, id, field string, v ir.Value) error {
	if err := r.record("set_field"); err != nil {
		return err
	}
	return r.Collection.SetField(ctx, id, field, v)
}

func (r *recordingCollection) IncrementField(ctx context.Context, filter query.Predicate, field string) (int64, error) {
	if err := r.record("increment_field"); err != nil {
		return 0, err
	}
	return r.Collection.IncrementField(ctx, filter, field)
}

func (r *recordingCollection) DecrementField(ctx context.Context, filter query.Predicate, field string) (int64, error) {
	if err := r.record("decrement_field"); err != nil {
		return 0, err
	}
	return r.Collection.DecrementField(ctx, filter, field)
}

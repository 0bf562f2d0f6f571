// Package storetest is the conformance suite every store backend runs. It
// pins each backend to the filter and sort semantics of query.Match and
// query.SortDocuments.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/store"
)

// Factory returns an empty collection. It is called once per subtest.
type Factory func(t *testing.T) store.DocumentCollection

// Run executes the conformance suite against collections from newCollection.
func Run(t *testing.T, newCollection Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, c store.DocumentCollection)
	}{
		{"InsertGetDelete", testInsertGetDelete},
		{"GetReturnsCopy", testGetReturnsCopy},
		{"SetField", testSetField},
		{"FindOneEmpty", testFindOneEmpty},
		{"FindOneSorted", testFindOneSorted},
		{"FindFilters", testFindFilters},
		{"FindValueKinds", testFindValueKinds},
		{"IncrementDecrement", testIncrementDecrement},
		{"IncrementSkipsNonIntegers", testIncrementSkipsNonIntegers},
		{"RejectsInvalidFields", testRejectsInvalidFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newCollection(t))
		})
	}
}

func insert(t *testing.T, c store.DocumentCollection, id string, fields ir.Object) {
	t.Helper()
	require.NoError(t, c.Insert(context.Background(), &ir.Document{ID: id, Fields: fields}))
}

func position(t *testing.T, c store.DocumentCollection, id string) (int64, bool) {
	t.Helper()
	doc, err := c.Get(context.Background(), id)
	require.NoError(t, err)
	return doc.Int("position")
}

func ids(docs []*ir.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func testInsertGetDelete(t *testing.T, c store.DocumentCollection) {
	ctx := context.Background()
	insert(t, c, "a", ir.Object{"position": ir.Int(1), "title": ir.String("first")})

	doc, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", doc.ID)
	assert.True(t, ir.Equal(ir.Object{"position": ir.Int(1), "title": ir.String("first")}, doc.Fields))

	err = c.Insert(ctx, &ir.Document{ID: "a", Fields: ir.Object{}})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, c.Delete(ctx, "a"), store.ErrNotFound)
}

func testGetReturnsCopy(t *testing.T, c store.DocumentCollection) {
	ctx := context.Background()
	original := &ir.Document{ID: "a", Fields: ir.Object{"position": ir.Int(1)}}
	require.NoError(t, c.Insert(ctx, original))
	original.Set("position", ir.Int(99))

	doc, err := c.Get(ctx, "a")
	require.NoError(t, err)
	doc.Set("position", ir.Int(42))

	n, ok := position(t, c, "a")
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func testSetField(t *testing.T, c store.DocumentCollection) {
	ctx := context.Background()
	insert(t, c, "a", ir.Object{"position": ir.Int(1)})

	require.NoError(t, c.SetField(ctx, "a", "position", ir.Int(7)))
	n, ok := position(t, c, "a")
	require.True(t, ok)
	assert.Equal(t, int64(7), n)

	require.NoError(t, c.SetField(ctx, "a", "tags", ir.Array{ir.String("x")}))
	doc, err := c.Get(ctx, "a")
	require.NoError(t, err)
	tags, _ := doc.Get("tags")
	assert.True(t, ir.Equal(ir.Array{ir.String("x")}, tags))

	require.NoError(t, c.SetField(ctx, "a", "position", nil))
	_, ok = position(t, c, "a")
	assert.False(t, ok, "nil value removes the field")

	// Removing an absent field is not an error.
	require.NoError(t, c.SetField(ctx, "a", "position", nil))

	err = c.SetField(ctx, "missing", "position", ir.Int(1))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testFindOneEmpty(t *testing.T, c store.DocumentCollection) {
	doc, err := c.FindOne(context.Background(), query.Query{Filter: query.Exists{Field: "position"}})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func testFindOneSorted(t *testing.T, c store.DocumentCollection) {
	ctx := context.Background()
	insert(t, c, "c", ir.Object{"position": ir.Int(2)})
	insert(t, c, "b", ir.Object{"position": ir.Int(2)})
	insert(t, c, "a", ir.Object{})
	insert(t, c, "d", ir.Object{"position": ir.Int(10)})
	insert(t, c, "e", ir.Object{"position": ir.Int(9)})

	top, err := c.FindOne(ctx, query.Query{Sort: []query.Order{query.Desc("position")}})
	require.NoError(t, err)
	require.NotNil(t, top)
	assert.Equal(t, "d", top.ID, "integers sort numerically, not lexically")

	first, err := c.FindOne(ctx, query.Query{
		Filter: query.Exists{Field: "position"},
		Sort:   []query.Order{query.Asc("position")},
	})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "b", first.ID, "ties break on id")

	all, err := c.Find(ctx, query.Query{Sort: []query.Order{query.Asc("position")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "e", "d", "a"}, ids(all), "absent fields sort last")

	all, err = c.Find(ctx, query.Query{Sort: []query.Order{query.Desc("position")}})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "e", "b", "c", "a"}, ids(all), "absent fields sort last descending too")
}

func testFindFilters(t *testing.T, c store.DocumentCollection) {
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d"} {
		insert(t, c, id, ir.Object{"position": ir.Int(int64(i + 1)), "parent_id": ir.Int(1)})
	}
	insert(t, c, "x", ir.Object{"position": ir.Int(1), "parent_id": ir.Int(2)})
	insert(t, c, "y", ir.Object{"parent_id": ir.Int(1)})

	scope := query.Equals{Field: "parent_id", Value: ir.Int(1)}
	tests := []struct {
		name   string
		filter query.Predicate
		want   []string
	}{
		{"scope", scope, []string{"a", "b", "c", "d", "y"}},
		{"lt", query.All(scope, query.Compare{Field: "position", Op: query.Lt, Value: 3}), []string{"a", "b"}},
		{"lte", query.All(scope, query.Compare{Field: "position", Op: query.Lte, Value: 3}), []string{"a", "b", "c"}},
		{"gt", query.All(scope, query.Compare{Field: "position", Op: query.Gt, Value: 3}), []string{"d"}},
		{"gte", query.All(scope, query.Compare{Field: "position", Op: query.Gte, Value: 3}), []string{"c", "d"}},
		{"exists", query.All(scope, query.Exists{Field: "position"}), []string{"a", "b", "c", "d"}},
		{"not id", query.All(scope, query.Exists{Field: "position"}, query.NotID{ID: "b"}), []string{"a", "c", "d"}},
		{"no filter", nil, []string{"a", "b", "c", "d", "x", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := c.Find(ctx, query.Query{Filter: tt.filter})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(docs))
		})
	}
}

func testFindValueKinds(t *testing.T, c store.DocumentCollection) {
	ctx := context.Background()
	insert(t, c, "int", ir.Object{"k": ir.Int(5)})
	insert(t, c, "str", ir.Object{"k": ir.String("5")})
	insert(t, c, "bool", ir.Object{"k": ir.Bool(true)})
	insert(t, c, "one", ir.Object{"k": ir.Int(1)})
	insert(t, c, "arr", ir.Object{"k": ir.Array{ir.Int(1), ir.Int(2)}})

	tests := []struct {
		name  string
		value ir.Value
		want  []string
	}{
		{"int", ir.Int(5), []string{"int"}},
		{"string", ir.String("5"), []string{"str"}},
		{"bool is not one", ir.Bool(true), []string{"bool"}},
		{"one is not bool", ir.Int(1), []string{"one"}},
		{"array", ir.Array{ir.Int(1), ir.Int(2)}, []string{"arr"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := c.Find(ctx, query.Query{Filter: query.Equals{Field: "k", Value: tt.value}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(docs))
		})
	}
}

func testIncrementDecrement(t *testing.T, c store.DocumentCollection) {
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		insert(t, c, id, ir.Object{"position": ir.Int(int64(i + 1))})
	}

	n, err := c.IncrementField(ctx, query.Compare{Field: "position", Op: query.Gte, Value: 2}, "position")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got := map[string]int64{}
	for _, id := range []string{"a", "b", "c"} {
		got[id], _ = position(t, c, id)
	}
	assert.Equal(t, map[string]int64{"a": 1, "b": 3, "c": 4}, got)

	n, err = c.DecrementField(ctx, query.Compare{Field: "position", Op: query.Gt, Value: 1}, "position")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []string{"a", "b", "c"} {
		got[id], _ = position(t, c, id)
	}
	assert.Equal(t, map[string]int64{"a": 1, "b": 2, "c": 3}, got)

	n, err = c.IncrementField(ctx, query.Compare{Field: "position", Op: query.Gt, Value: 100}, "position")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testIncrementSkipsNonIntegers(t *testing.T, c store.DocumentCollection) {
	ctx := context.Background()
	insert(t, c, "int", ir.Object{"position": ir.Int(1), "g": ir.Int(1)})
	insert(t, c, "absent", ir.Object{"g": ir.Int(1)})
	insert(t, c, "text", ir.Object{"position": ir.String("x"), "g": ir.Int(1)})

	n, err := c.IncrementField(ctx, query.Equals{Field: "g", Value: ir.Int(1)}, "position")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok := position(t, c, "absent")
	assert.False(t, ok, "increment never creates the field")

	doc, err := c.Get(ctx, "text")
	require.NoError(t, err)
	v, _ := doc.Get("position")
	assert.Equal(t, ir.String("x"), v)
}

func testRejectsInvalidFields(t *testing.T, c store.DocumentCollection) {
	ctx := context.Background()
	insert(t, c, "a", ir.Object{"position": ir.Int(1)})

	_, err := c.Find(ctx, query.Query{Filter: query.Exists{Field: "a'b"}})
	assert.ErrorIs(t, err, query.ErrInvalidQuery)

	_, err = c.IncrementField(ctx, nil, "bad field")
	assert.ErrorIs(t, err, query.ErrInvalidQuery)

	err = c.SetField(ctx, "a", "$set", ir.Int(1))
	assert.ErrorIs(t, err, query.ErrInvalidQuery)
}

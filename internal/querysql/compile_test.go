package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
)

func TestCompile_SQLiteScopeAndPosition(t *testing.T) {
	c := New(SQLite)
	coll := c.Bind("tasks")

	where, err := c.Predicate(query.All(
		query.Equals{Field: "parent_id", Value: ir.Int(5)},
		query.Compare{Field: "position", Op: query.Gt, Value: 2},
	))
	require.NoError(t, err)

	assert.Equal(t, "?", coll)
	assert.Equal(t,
		"(json_type(body, '$.parent_id') = 'integer' AND json_extract(body, '$.parent_id') = ?) AND "+
			"(json_type(body, '$.position') = 'integer' AND json_extract(body, '$.position') > ?)",
		where)
	assert.Equal(t, []any{"tasks", int64(5), int64(2)}, c.Params())
}

func TestCompile_PostgresNumbersPlaceholders(t *testing.T) {
	c := New(Postgres)
	coll := c.Bind("tasks")

	where, err := c.Predicate(query.All(
		query.Equals{Field: "parent_id", Value: ir.Int(5)},
		query.Compare{Field: "position", Op: query.Lte, Value: 7},
		query.NotID{ID: "abc"},
	))
	require.NoError(t, err)

	assert.Equal(t, "$1", coll)
	assert.Equal(t,
		"body->'parent_id' = $2::jsonb AND "+
			"(jsonb_typeof(body->'position') = 'number' AND body->'position' <= $3::jsonb) AND "+
			"id <> $4",
		where)
	assert.Equal(t, []any{"tasks", "5", "7", "abc"}, c.Params())
}

func TestCompile_ValuesNeverInterpolated(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		t.Run(d.String(), func(t *testing.T) {
			c := New(d)
			where, err := c.Predicate(query.Equals{Field: "title", Value: ir.String("'; DROP TABLE documents; --")})
			require.NoError(t, err)
			assert.NotContains(t, where, "DROP")
			assert.Len(t, c.Params(), 1)
		})
	}
}

func TestCompile_SQLiteValueKinds(t *testing.T) {
	tests := []struct {
		name   string
		value  ir.Value
		want   string
		params []any
	}{
		{"string", ir.String("a"), "(json_type(body, '$.f') = 'text' AND json_extract(body, '$.f') = ?)", []any{"a"}},
		{"bool", ir.Bool(true), "json_type(body, '$.f') = ?", []any{"true"}},
		{"array", ir.Array{ir.Int(1), ir.Int(2)}, "json_extract(body, '$.f') = json(?)", []any{"[1,2]"}},
		{"object", ir.Object{"b": ir.Int(1), "a": ir.Int(2)}, "json_extract(body, '$.f') = json(?)", []any{`{"a":2,"b":1}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(SQLite)
			where, err := c.Predicate(query.Equals{Field: "f", Value: tt.value})
			require.NoError(t, err)
			assert.Equal(t, tt.want, where)
			assert.Equal(t, tt.params, c.Params())
		})
	}
}

func TestCompile_ExistsAndEmpty(t *testing.T) {
	c := New(SQLite)
	where, err := c.Predicate(query.Exists{Field: "position"})
	require.NoError(t, err)
	assert.Equal(t, "json_type(body, '$.position') IS NOT NULL", where)

	where, err = c.Predicate(nil)
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", where)

	where, err = c.Predicate(query.And{})
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", where)

	pg := New(Postgres)
	where, err = pg.Predicate(query.Exists{Field: "position"})
	require.NoError(t, err)
	assert.Equal(t, "jsonb_typeof(body->'position') IS NOT NULL", where)
}

func TestOrderBy_MandatoryTiebreaker(t *testing.T) {
	assert.Equal(t, "id COLLATE BINARY ASC", New(SQLite).OrderBy(nil))
	assert.Equal(t, "id ASC", New(Postgres).OrderBy(nil))

	assert.Equal(t,
		"json_extract(body, '$.position') DESC NULLS LAST, id COLLATE BINARY ASC",
		New(SQLite).OrderBy([]query.Order{query.Desc("position")}))
	assert.Equal(t,
		"body->'position' ASC NULLS LAST, id ASC",
		New(Postgres).OrderBy([]query.Order{query.Asc("position")}))
}

func TestCompile_Paths(t *testing.T) {
	assert.Equal(t, "'$.position'", New(SQLite).Path("position"))
	assert.Equal(t, "'{position}'", New(Postgres).Path("position"))
}

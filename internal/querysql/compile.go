// Package querysql compiles query predicates into parameterized SQL over a
// documents table whose body column holds JSON.
//
// CRITICAL: values are never interpolated; every literal becomes a bind
// parameter. Field names are interpolated into JSON paths, so queries must
// pass query.Validate first.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
)

// Dialect selects the JSON functions and placeholder style.
type Dialect int

const (
	// SQLite uses the JSON1 functions and "?" placeholders.
	SQLite Dialect = iota
	// Postgres uses JSONB operators and "$n" placeholders.
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// Compiler accumulates bind parameters for one statement. Fragments must be
// produced in the order they appear in the final SQL text, since SQLite
// placeholders are positional.
type Compiler struct {
	dialect Dialect
	params  []any
}

// New returns a compiler for one statement.
func New(d Dialect) *Compiler {
	return &Compiler{dialect: d}
}

// Params returns the bind parameters collected so far.
func (c *Compiler) Params() []any {
	return c.params
}

// Bind records v as the next parameter and returns its placeholder.
func (c *Compiler) Bind(v any) string {
	c.params = append(c.params, v)
	if c.dialect == Postgres {
		return "$" + strconv.Itoa(len(c.params))
	}
	return "?"
}

// Path returns the dialect's JSON path literal for a top-level field:
// '$.field' for SQLite, '{field}' for Postgres.
func (c *Compiler) Path(field string) string {
	if c.dialect == Postgres {
		return "'{" + field + "}'"
	}
	return "'$." + field + "'"
}

// Field returns an expression extracting field from body. In Postgres the
// result is JSONB; in SQLite it is the SQL value of the JSON member.
func (c *Compiler) Field(field string) string {
	if c.dialect == Postgres {
		return "body->'" + field + "'"
	}
	return "json_extract(body, " + c.Path(field) + ")"
}

// typeOf returns an expression naming the JSON type of field.
func (c *Compiler) typeOf(field string) string {
	if c.dialect == Postgres {
		return "jsonb_typeof(body->'" + field + "')"
	}
	return "json_type(body, " + c.Path(field) + ")"
}

// JSONParam binds v encoded as JSON and returns an expression that yields
// a JSON value in the dialect.
func (c *Compiler) JSONParam(v ir.Value) (string, error) {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return "", fmt.Errorf("encode parameter: %w", err)
	}
	ph := c.Bind(string(data))
	if c.dialect == Postgres {
		return ph + "::jsonb", nil
	}
	return "json(" + ph + ")", nil
}

// Predicate compiles p into a WHERE fragment. A nil predicate compiles to
// an always-true condition.
func (c *Compiler) Predicate(p query.Predicate) (string, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil
	case query.Equals:
		return c.compileEquals(pred)
	case query.Compare:
		return c.compileCompare(pred), nil
	case query.Exists:
		return c.typeOf(pred.Field) + " IS NOT NULL", nil
	case query.NotID:
		return "id <> " + c.Bind(pred.ID), nil
	case query.And:
		return c.compileAnd(pred)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileEquals(eq query.Equals) (string, error) {
	if c.dialect == Postgres {
		// JSONB equality is type-aware for every value kind.
		rhs, err := c.JSONParam(eq.Value)
		if err != nil {
			return "", fmt.Errorf("equals %s: %w", eq.Field, err)
		}
		return c.Field(eq.Field) + " = " + rhs, nil
	}

	switch val := eq.Value.(type) {
	case ir.String:
		return "(" + c.typeOf(eq.Field) + " = 'text' AND " + c.Field(eq.Field) + " = " + c.Bind(string(val)) + ")", nil
	case ir.Int:
		return "(" + c.typeOf(eq.Field) + " = 'integer' AND " + c.Field(eq.Field) + " = " + c.Bind(int64(val)) + ")", nil
	case ir.Bool:
		// json_extract returns 0/1 for booleans; compare the JSON type instead.
		return c.typeOf(eq.Field) + " = " + c.Bind(strconv.FormatBool(bool(val))), nil
	case ir.Array, ir.Object:
		rhs, err := c.JSONParam(val)
		if err != nil {
			return "", fmt.Errorf("equals %s: %w", eq.Field, err)
		}
		return c.Field(eq.Field) + " = " + rhs, nil
	default:
		return "", fmt.Errorf("equals %s: unsupported value type %T", eq.Field, eq.Value)
	}
}

func (c *Compiler) compileCompare(cmp query.Compare) string {
	if c.dialect == Postgres {
		return "(" + c.typeOf(cmp.Field) + " = 'number' AND " + c.Field(cmp.Field) + " " + cmp.Op.String() + " " +
			c.Bind(strconv.FormatInt(cmp.Value, 10)) + "::jsonb)"
	}
	return "(" + c.typeOf(cmp.Field) + " = 'integer' AND " + c.Field(cmp.Field) + " " + cmp.Op.String() + " " +
		c.Bind(cmp.Value) + ")"
}

func (c *Compiler) compileAnd(and query.And) (string, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, 0, len(and.Predicates))
	for _, sub := range and.Predicates {
		frag, err := c.Predicate(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, frag)
	}
	return strings.Join(parts, " AND "), nil
}

// OrderBy compiles sort keys into an ORDER BY list.
//
// MANDATORY: the list always ends with "id ASC" so that results are
// deterministic. Missing fields sort last in both directions.
func (c *Compiler) OrderBy(sort []query.Order) string {
	parts := make([]string, 0, len(sort)+1)
	for _, o := range sort {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		parts = append(parts, c.Field(o.Field)+" "+dir+" NULLS LAST")
	}
	if c.dialect == Postgres {
		parts = append(parts, "id ASC")
	} else {
		parts = append(parts, "id COLLATE BINARY ASC")
	}
	return strings.Join(parts, ", ")
}

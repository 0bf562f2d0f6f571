package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/lib/pq"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/querysql"
	"github.com/roach88/listorder/internal/store"
)

const uniqueViolation = "23505"

// Collection is one named collection inside the documents table.
type Collection struct {
	db   *sql.DB
	name string
}

var (
	_ store.DocumentCollection = (*Collection)(nil)
	_ store.Indexer            = (*Collection)(nil)
)

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

func validField(field string) error {
	if !query.ValidField(field) {
		return fmt.Errorf("%w: field %q is not an identifier", query.ErrInvalidQuery, field)
	}
	return nil
}

// Insert stores doc.
func (c *Collection) Insert(ctx context.Context, doc *ir.Document) error {
	fields := doc.Fields
	if fields == nil {
		fields = ir.Object{}
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("insert %s: marshal body: %w", doc.ID, err)
	}

	_, err = c.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)",
		c.name, doc.ID, string(body))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert %s: %w", doc.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns the document identified by id.
func (c *Collection) Get(ctx context.Context, id string) (*ir.Document, error) {
	var body []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = $1 AND id = $2",
		c.name, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	doc, err := unmarshalDocument(id, body)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes the document identified by id.
func (c *Collection) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = $1 AND id = $2",
		c.name, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return expectRow(res, "delete", id)
}

// Find returns every document matching q.
func (c *Collection) Find(ctx context.Context, q query.Query) ([]*ir.Document, error) {
	docs, err := c.find(ctx, q, false)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return docs, nil
}

// FindOne returns the first document matching q, or nil.
func (c *Collection) FindOne(ctx context.Context, q query.Query) (*ir.Document, error) {
	docs, err := c.find(ctx, q, true)
	if err != nil {
		return nil, fmt.Errorf("find one: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (c *Collection) find(ctx context.Context, q query.Query, first bool) ([]*ir.Document, error) {
	if err := query.Validate(q); err != nil {
		return nil, err
	}

	comp := querysql.New(querysql.Postgres)
	coll := comp.Bind(c.name)
	where, err := comp.Predicate(q.Filter)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SELECT id, body FROM documents WHERE collection = %s AND (%s) ORDER BY %s",
		coll, where, comp.OrderBy(q.Sort))
	if first {
		stmt += " LIMIT 1"
	}

	rows, err := c.db.QueryContext(ctx, stmt, comp.Params()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*ir.Document, 0)
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		doc, err := unmarshalDocument(id, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return docs, nil
}

// SetField writes one field of one document in place.
func (c *Collection) SetField(ctx context.Context, id, field string, v ir.Value) error {
	if err := validField(field); err != nil {
		return fmt.Errorf("set field: %w", err)
	}

	comp := querysql.New(querysql.Postgres)
	var expr string
	if v == nil {
		expr = "body - '" + field + "'"
	} else {
		param, err := comp.JSONParam(v)
		if err != nil {
			return fmt.Errorf("set field %s: %w", id, err)
		}
		expr = "jsonb_set(body, " + comp.Path(field) + ", " + param + ")"
	}
	stmt := fmt.Sprintf("UPDATE documents SET body = %s WHERE collection = %s AND id = %s",
		expr, comp.Bind(c.name), comp.Bind(id))

	res, err := c.db.ExecContext(ctx, stmt, comp.Params()...)
	if err != nil {
		return fmt.Errorf("set field %s: %w", id, err)
	}
	return expectRow(res, "set field", id)
}

// IncrementField adds one to field on every matching document.
func (c *Collection) IncrementField(ctx context.Context, filter query.Predicate, field string) (int64, error) {
	n, err := c.add(ctx, filter, field, 1)
	if err != nil {
		return 0, fmt.Errorf("increment field: %w", err)
	}
	return n, nil
}

// DecrementField subtracts one from field on every matching document.
func (c *Collection) DecrementField(ctx context.Context, filter query.Predicate, field string) (int64, error) {
	n, err := c.add(ctx, filter, field, -1)
	if err != nil {
		return 0, fmt.Errorf("decrement field: %w", err)
	}
	return n, nil
}

func (c *Collection) add(ctx context.Context, filter query.Predicate, field string, delta int64) (int64, error) {
	if err := validField(field); err != nil {
		return 0, err
	}
	if err := query.Validate(query.Query{Filter: filter}); err != nil {
		return 0, err
	}

	comp := querysql.New(querysql.Postgres)
	set := fmt.Sprintf("jsonb_set(body, %s, to_jsonb((body->>'%s')::bigint + %s::bigint))",
		comp.Path(field), field, comp.Bind(delta))
	coll := comp.Bind(c.name)
	// Comparing against MinInt64 restricts the update to numeric fields.
	where, err := comp.Predicate(query.All(
		query.Compare{Field: field, Op: query.Gte, Value: math.MinInt64},
		filter,
	))
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("UPDATE documents SET body = %s WHERE collection = %s AND %s", set, coll, where)

	res, err := c.db.ExecContext(ctx, stmt, comp.Params()...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// EnsureIndex creates an expression index on (collection, body->field).
func (c *Collection) EnsureIndex(ctx context.Context, field string) error {
	if err := validField(field); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	stmt := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_documents_%s ON documents (collection, (body->'%s'))",
		field, field)
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("ensure index %s: %w", field, err)
	}
	return nil
}

func expectRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, id, store.ErrNotFound)
	}
	return nil
}

func unmarshalDocument(id string, body []byte) (*ir.Document, error) {
	var fields ir.Object
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal body of %s: %w", id, err)
	}
	return &ir.Document{ID: id, Fields: fields}, nil
}

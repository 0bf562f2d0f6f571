package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/querysql"
	"github.com/roach88/listorder/internal/store"
)

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

// Insert stores doc. The body is written with sorted keys.
func (c *Collection) Insert(ctx context.Context, doc *ir.Document) error {
	body, err := marshalBody(doc.Fields)
	if err != nil {
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	}

	_, err = c.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)",
		c.name, doc.ID, body)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("insert %s: %w", doc.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns the document identified by id.
func (c *Collection) Get(ctx context.Context, id string) (*ir.Document, error) {
	var body string
	err := c.db.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND id = ?",
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
		"DELETE FROM documents WHERE collection = ? AND id = ?",
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

	comp := querysql.New(querysql.SQLite)
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
		var id, body string
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

	comp := querysql.New(querysql.SQLite)
	var expr string
	if v == nil {
		expr = "json_remove(body, " + comp.Path(field) + ")"
	} else {
		param, err := comp.JSONParam(v)
		if err != nil {
			return fmt.Errorf("set field %s: %w", id, err)
		}
		expr = "json_set(body, " + comp.Path(field) + ", " + param + ")"
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

	comp := querysql.New(querysql.SQLite)
	path := comp.Path(field)
	set := fmt.Sprintf("json_set(body, %s, json_extract(body, %s) + %s)", path, path, comp.Bind(delta))
	coll := comp.Bind(c.name)
	// Comparing against MinInt64 restricts the update to integer fields.
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

func marshalBody(fields ir.Object) (string, error) {
	if fields == nil {
		fields = ir.Object{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal body: %w", err)
	}
	return string(data), nil
}

func unmarshalDocument(id, body string) (*ir.Document, error) {
	var fields ir.Object
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal body of %s: %w", id, err)
	}
	return &ir.Document{ID: id, Fields: fields}, nil
}

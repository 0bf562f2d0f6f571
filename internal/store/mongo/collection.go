package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/store"
)

// Collection wraps one Mongo collection.
type Collection struct {
	coll *mongo.Collection
}

var (
	_ store.DocumentCollection = (*Collection)(nil)
	_ store.Indexer            = (*Collection)(nil)
)

// Name returns the collection name.
func (c *Collection) Name() string { return c.coll.Name() }

func validField(field string) error {
	if !query.ValidField(field) || field == "_id" {
		return fmt.Errorf("%w: field %q is not an identifier", query.ErrInvalidQuery, field)
	}
	return nil
}

// Insert stores doc.
func (c *Collection) Insert(ctx context.Context, doc *ir.Document) error {
	raw, err := fromDocument(doc)
	if err != nil {
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	}
	if _, err := c.coll.InsertOne(ctx, raw); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert %s: %w", doc.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns the document identified by id.
func (c *Collection) Get(ctx context.Context, id string) (*ir.Document, error) {
	var raw bson.D
	err := c.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("get %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	doc, err := toDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return doc, nil
}

// Delete removes the document identified by id.
func (c *Collection) Delete(ctx context.Context, id string) error {
	res, err := c.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// Find returns every document matching q.
func (c *Collection) Find(ctx context.Context, q query.Query) ([]*ir.Document, error) {
	docs, err := c.find(ctx, q, 0)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return docs, nil
}

// FindOne returns the first document matching q, or nil.
func (c *Collection) FindOne(ctx context.Context, q query.Query) (*ir.Document, error) {
	docs, err := c.find(ctx, q, 1)
	if err != nil {
		return nil, fmt.Errorf("find one: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (c *Collection) find(ctx context.Context, q query.Query, limit int64) ([]*ir.Document, error) {
	if err := query.Validate(q); err != nil {
		return nil, err
	}
	stages, err := pipeline(q, limit)
	if err != nil {
		return nil, err
	}

	cursor, err := c.coll.Aggregate(ctx, stages)
	if err != nil {
		return nil, err
	}
	var raws []bson.D
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	docs := make([]*ir.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := toDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SetField writes one field of one document with $set, or removes it
// with $unset when v is nil.
func (c *Collection) SetField(ctx context.Context, id, field string, v ir.Value) error {
	if err := validField(field); err != nil {
		return fmt.Errorf("set field: %w", err)
	}

	update := bson.D{{Key: "$unset", Value: bson.D{{Key: field, Value: ""}}}}
	if v != nil {
		update = bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: toBSON(v)}}}}
	}
	res, err := c.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return fmt.Errorf("set field %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("set field %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// IncrementField applies $inc 1 to every matching document.
func (c *Collection) IncrementField(ctx context.Context, filter query.Predicate, field string) (int64, error) {
	n, err := c.add(ctx, filter, field, 1)
	if err != nil {
		return 0, fmt.Errorf("increment field: %w", err)
	}
	return n, nil
}

// DecrementField applies $inc -1 to every matching document.
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
	// $inc would create a missing field; only numeric fields qualify.
	f, err := compileFilter(query.All(
		query.Compare{Field: field, Op: query.Gte, Value: math.MinInt64},
		filter,
	))
	if err != nil {
		return 0, err
	}

	res, err := c.coll.UpdateMany(ctx, f, bson.D{{Key: "$inc", Value: bson.D{{Key: field, Value: delta}}}})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// EnsureIndex creates an ascending index on field.
func (c *Collection) EnsureIndex(ctx context.Context, field string) error {
	if err := validField(field); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}})
	if err != nil {
		return fmt.Errorf("ensure index %s: %w", field, err)
	}
	return nil
}

// Package repository persists ordered records. It stands where a host
// framework's lifecycle callbacks would: Create runs the before-create
// hook and inserts, Destroy runs the before-destroy hook and deletes, and
// Apply reloads a record under its scope lock before an operation runs.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/logger"
	"github.com/roach88/listorder/internal/ordering"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/store"
)

// Repository couples a document collection with the list that orders it.
type Repository struct {
	coll  store.DocumentCollection
	list  *ordering.List
	newID func() string
	log   *slog.Logger
}

// New builds the list for cfg over coll. Options are passed to the list.
func New(coll store.DocumentCollection, cfg ordering.Config, opts ...ordering.Option) (*Repository, error) {
	list, err := ordering.New(coll, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Repository{
		coll:  coll,
		list:  list,
		newID: newID,
		log:   logger.WithComponent("repository"),
	}, nil
}

// newID returns a UUIDv7 string. Identifiers created in sequence sort in
// creation order.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// List returns the ordering engine.
func (r *Repository) List() *ordering.List { return r.list }

// Collection returns the underlying collection.
func (r *Repository) Collection() store.DocumentCollection { return r.coll }

// EnsureIndexes indexes the position and scope fields when the collection
// supports it. Collections without index support are left alone.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	idx, ok := r.coll.(store.Indexer)
	if !ok {
		return nil
	}
	cfg := r.list.Config()
	for _, field := range append([]string{cfg.Column}, cfg.Scope...) {
		if err := idx.EnsureIndex(ctx, field); err != nil {
			return fmt.Errorf("ensure index on %s: %w", field, err)
		}
	}
	return nil
}

// Create inserts a new record built from fields and places it in its
// list. A position present in fields is overwritten.
func (r *Repository) Create(ctx context.Context, fields ir.Object) (*ir.Document, error) {
	doc := &ir.Document{ID: r.newID(), Fields: fields.Clone()}
	if doc.Fields == nil {
		doc.Fields = ir.Object{}
	}
	doc.Unset(r.list.Column())

	err := r.list.Locked(ctx, doc, func(ctx context.Context) error {
		if err := r.list.BeforeCreate(ctx, doc); err != nil {
			return err
		}
		return r.coll.Insert(ctx, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("create: %w", err)
	}
	r.log.Debug("created record", "collection", r.coll.Name(), "id", doc.ID)
	return doc, nil
}

// Destroy removes the record from its list and deletes it. The stored
// state is reloaded under the scope lock first, and doc is updated to it.
func (r *Repository) Destroy(ctx context.Context, doc *ir.Document) error {
	err := r.list.Locked(ctx, doc, func(ctx context.Context) error {
		fresh, err := r.coll.Get(ctx, doc.ID)
		if err != nil {
			return err
		}
		if err := r.list.BeforeDestroy(ctx, fresh); err != nil {
			return err
		}
		if err := r.coll.Delete(ctx, fresh.ID); err != nil {
			return err
		}
		doc.Fields = fresh.Fields
		return nil
	})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", doc.ID, err)
	}
	r.log.Debug("destroyed record", "collection", r.coll.Name(), "id", doc.ID)
	return nil
}

// Get loads a record by id.
func (r *Repository) Get(ctx context.Context, id string) (*ir.Document, error) {
	doc, err := r.coll.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return doc, nil
}

// Reload returns the stored state of doc.
func (r *Repository) Reload(ctx context.Context, doc *ir.Document) (*ir.Document, error) {
	return r.Get(ctx, doc.ID)
}

// Apply loads the record identified by id, takes its scope lock, reloads
// it and runs fn on the fresh copy. It returns the record as fn left it.
func (r *Repository) Apply(ctx context.Context, id string, fn func(ctx context.Context, doc *ir.Document) error) (*ir.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var result *ir.Document
	err = r.list.Locked(ctx, doc, func(ctx context.Context) error {
		fresh, err := r.coll.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, fresh); err != nil {
			return err
		}
		result = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Ordered returns the in-list records matching scope, by position. A nil
// or empty scope returns every in-list record of the collection.
func (r *Repository) Ordered(ctx context.Context, scope ir.Object) ([]*ir.Document, error) {
	column := r.list.Column()
	docs, err := r.coll.Find(ctx, query.Query{
		Filter: query.All(query.FromScope(scope), query.Exists{Field: column}),
		Sort:   []query.Order{query.Asc(column)},
	})
	if err != nil {
		return nil, fmt.Errorf("ordered: %w", err)
	}
	return docs, nil
}

// Unlisted returns the records matching scope that have no position.
func (r *Repository) Unlisted(ctx context.Context, scope ir.Object) ([]*ir.Document, error) {
	docs, err := r.coll.Find(ctx, query.Query{Filter: query.FromScope(scope)})
	if err != nil {
		return nil, fmt.Errorf("unlisted: %w", err)
	}
	out := docs[:0]
	for _, d := range docs {
		if !r.list.InList(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// IsNotFound reports whether err means a record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

package store

import (
	"context"
	"errors"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
)

var (
	// ErrNotFound is returned when a document identifier does not exist in
	// the collection.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicate is returned by Insert when the identifier is taken.
	ErrDuplicate = errors.New("duplicate document id")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Collection is the narrow contract the ordering engine needs: a point
// query, bulk increment and decrement of an integer field, and a targeted
// single-field write.
//
// Implementations must evaluate filters with the semantics of query.Match
// and sort with the semantics of query.SortDocuments.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// FindOne returns the first document matching q in sort order, or
	// (nil, nil) when nothing matches.
	FindOne(ctx context.Context, q query.Query) (*ir.Document, error)

	// SetField writes v to field of the document identified by id. A nil v
	// removes the field. Returns ErrNotFound when id does not exist.
	SetField(ctx context.Context, id, field string, v ir.Value) error

	// IncrementField adds one to field on every document matching filter
	// whose field holds an integer, and reports how many were changed.
	IncrementField(ctx context.Context, filter query.Predicate, field string) (int64, error)

	// DecrementField subtracts one, otherwise like IncrementField.
	DecrementField(ctx context.Context, filter query.Predicate, field string) (int64, error)
}

// DocumentCollection adds the whole-document operations the repository
// layer uses to persist and delete records.
type DocumentCollection interface {
	Collection

	// Insert stores a new document. Returns ErrDuplicate when the
	// identifier already exists.
	Insert(ctx context.Context, doc *ir.Document) error

	// Get returns the document identified by id or ErrNotFound.
	Get(ctx context.Context, id string) (*ir.Document, error)

	// Delete removes the document identified by id or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Find returns every document matching q in sort order.
	Find(ctx context.Context, q query.Query) ([]*ir.Document, error)
}

// Indexer is implemented by collections that can index a body field.
// Repositories call it for the position field when a list is opened.
type Indexer interface {
	EnsureIndex(ctx context.Context, field string) error
}

// Store hands out collections backed by one database connection.
type Store interface {
	Collection(name string) (DocumentCollection, error)
	Close() error
}

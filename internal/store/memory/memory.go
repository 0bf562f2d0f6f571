// Package memory is an in-process document store. Every collection is a
// map guarded by the store's read/write mutex, and documents are copied on
// the way in and out so callers never alias stored state.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/store"
)

// Store holds collections in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*ir.Document
	closed      bool
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]*ir.Document)}
}

// Collection returns a handle on the named collection, creating it lazily.
func (s *Store) Collection(name string) (store.DocumentCollection, error) {
	if name == "" {
		return nil, fmt.Errorf("memory: empty collection name")
	}
	return &collection{store: s, name: name}, nil
}

// Close releases the stored documents. Later operations return
// store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = nil
	s.closed = true
	return nil
}

type collection struct {
	store *Store
	name  string
}

var _ store.DocumentCollection = (*collection)(nil)

func (c *collection) Name() string { return c.name }

// docs returns the collection map. Callers hold the store lock.
func (c *collection) docs(create bool) (map[string]*ir.Document, error) {
	if c.store.closed {
		return nil, store.ErrClosed
	}
	docs, ok := c.store.collections[c.name]
	if !ok && create {
		docs = make(map[string]*ir.Document)
		c.store.collections[c.name] = docs
	}
	return docs, nil
}

func (c *collection) Insert(ctx context.Context, doc *ir.Document) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.docs(true)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if _, exists := docs[doc.ID]; exists {
		return fmt.Errorf("insert %s: %w", doc.ID, store.ErrDuplicate)
	}
	docs[doc.ID] = doc.Clone()
	return nil
}

func (c *collection) Get(ctx context.Context, id string) (*ir.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	docs, err := c.docs(false)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	doc, ok := docs[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, store.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.docs(false)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if _, ok := docs[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, store.ErrNotFound)
	}
	delete(docs, id)
	return nil
}

func (c *collection) Find(ctx context.Context, q query.Query) ([]*ir.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	if err := query.Validate(q); err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	docs, err := c.docs(false)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	out := make([]*ir.Document, 0)
	for _, doc := range docs {
		if query.Match(q.Filter, doc) {
			out = append(out, doc.Clone())
		}
	}
	query.SortDocuments(out, q.Sort)
	return out, nil
}

func (c *collection) FindOne(ctx context.Context, q query.Query) (*ir.Document, error) {
	docs, err := c.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find one: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (c *collection) SetField(ctx context.Context, id, field string, v ir.Value) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("set field: %w", err)
	}
	if !query.ValidField(field) {
		return fmt.Errorf("set field: %w: field %q is not an identifier", query.ErrInvalidQuery, field)
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.docs(false)
	if err != nil {
		return fmt.Errorf("set field: %w", err)
	}
	doc, ok := docs[id]
	if !ok {
		return fmt.Errorf("set field %s: %w", id, store.ErrNotFound)
	}
	doc.Set(field, v)
	return nil
}

func (c *collection) IncrementField(ctx context.Context, filter query.Predicate, field string) (int64, error) {
	n, err := c.add(ctx, filter, field, 1)
	if err != nil {
		return 0, fmt.Errorf("increment field: %w", err)
	}
	return n, nil
}

func (c *collection) DecrementField(ctx context.Context, filter query.Predicate, field string) (int64, error) {
	n, err := c.add(ctx, filter, field, -1)
	if err != nil {
		return 0, fmt.Errorf("decrement field: %w", err)
	}
	return n, nil
}

func (c *collection) add(ctx context.Context, filter query.Predicate, field string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := query.Validate(query.Query{Filter: query.All(filter, query.Exists{Field: field})}); err != nil {
		return 0, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.docs(false)
	if err != nil {
		return 0, err
	}
	var changed int64
	for _, doc := range docs {
		n, ok := doc.Int(field)
		if !ok || !query.Match(filter, doc) {
			continue
		}
		doc.Set(field, ir.Int(n+delta))
		changed++
	}
	return changed, nil
}

package ordering

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/lock"
	"github.com/roach88/listorder/internal/logger"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/store"
)

// List is the ordering engine for one configured list. It holds no record
// state; it is safe for concurrent use to the extent its Locker allows.
type List struct {
	cfg    Config
	coll   store.Collection
	locker lock.Locker
	log    *slog.Logger
}

// Option customises a List.
type Option func(*List)

// WithLocker serialises mutating operations per scope partition.
func WithLocker(l lock.Locker) Option {
	return func(list *List) {
		if l != nil {
			list.locker = l
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(list *List) {
		if l != nil {
			list.log = l
		}
	}
}

// New returns a list over coll. It fails with ErrInvalidConfig when a
// field name cannot be used.
func New(coll store.Collection, cfg Config, opts ...Option) (*List, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	l := &List{
		cfg:    cfg,
		coll:   coll,
		locker: lock.Noop{},
		log:    logger.WithComponent("ordering"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the normalised configuration.
func (l *List) Config() Config {
	cfg := l.cfg
	cfg.Scope = append([]string(nil), l.cfg.Scope...)
	return cfg
}

// Column returns the position field name.
func (l *List) Column() string { return l.cfg.Column }

// Collection returns the store collection the list operates on.
func (l *List) Collection() store.Collection { return l.coll }

// Position returns the record's position and whether it is in the list.
func (l *List) Position(doc *ir.Document) (int64, bool) {
	return doc.Int(l.cfg.Column)
}

// InList reports whether the record has a position.
func (l *List) InList(doc *ir.Document) bool {
	_, ok := l.Position(doc)
	return ok
}

// ScopeCondition derives the scope filter from the record's current
// values. Scope fields the record lacks are omitted.
func (l *List) ScopeCondition(doc *ir.Document) ir.Object {
	cond := ir.Object{}
	for _, f := range l.cfg.Scope {
		if v, ok := doc.Get(f); ok {
			cond[f] = v
		}
	}
	return cond
}

// ScopeKey identifies the record's partition across processes.
func (l *List) ScopeKey(doc *ir.Document) (string, error) {
	return ir.ScopeKey(l.coll.Name(), l.ScopeCondition(doc))
}

// siblings returns the scope filter conjoined with extra predicates.
func (l *List) siblings(doc *ir.Document, extra ...query.Predicate) query.And {
	return query.All(append([]query.Predicate{query.FromScope(l.ScopeCondition(doc))}, extra...)...)
}

func (l *List) position(op query.Op, n int64) query.Compare {
	return query.Compare{Field: l.cfg.Column, Op: op, Value: n}
}

// heldLock marks a scope lock held by the current call chain.
type heldLock struct {
	key    string
	parent *heldLock
}

type heldLockKey struct{}

func holds(ctx context.Context, key string) bool {
	for h, _ := ctx.Value(heldLockKey{}).(*heldLock); h != nil; h = h.parent {
		if h.key == key {
			return true
		}
	}
	return false
}

// Locked runs fn while holding the record's scope lock. Hooks do not lock
// on their own; callers that persist a record around a hook, or reload a
// record before acting on it, wrap those steps in Locked. Operations
// called with the context passed to fn do not lock the same scope again.
func (l *List) Locked(ctx context.Context, doc *ir.Document, fn func(ctx context.Context) error) error {
	key, err := l.ScopeKey(doc)
	if err != nil {
		return err
	}
	if holds(ctx, key) {
		return fn(ctx)
	}
	release, err := l.locker.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("lock scope: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			l.log.Warn("release scope lock", "id", doc.ID, "error", err)
		}
	}()
	parent, _ := ctx.Value(heldLockKey{}).(*heldLock)
	return fn(context.WithValue(ctx, heldLockKey{}, &heldLock{key: key, parent: parent}))
}

func (l *List) logMove(op string, doc *ir.Document, from, to any) {
	l.log.Debug("list operation",
		"op", op,
		"collection", l.coll.Name(),
		"id", doc.ID,
		"from", from,
		"to", to,
	)
}

// positionOrNil formats a position for logs.
func positionOrNil(n int64, ok bool) any {
	if !ok {
		return nil
	}
	return n
}

package ordering

import (
	"context"
	"fmt"
	"math"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
)

// BottomItem returns the in-list record with the highest position in the
// record's partition, skipping except when it is non-nil. Returns nil for
// an empty partition. Non-integer positions are not candidates.
func (l *List) BottomItem(ctx context.Context, doc, except *ir.Document) (*ir.Document, error) {
	filter := l.siblings(doc, query.Compare{Field: l.cfg.Column, Op: query.Gte, Value: math.MinInt64})
	if except != nil {
		filter = query.All(filter, query.NotID{ID: except.ID})
	}
	item, err := l.coll.FindOne(ctx, query.Query{
		Filter: filter,
		Sort:   []query.Order{query.Desc(l.cfg.Column)},
	})
	if err != nil {
		return nil, fmt.Errorf("bottom item: %w", err)
	}
	return item, nil
}

// BottomPosition returns the highest position in the record's partition,
// or 0 when the partition is empty.
func (l *List) BottomPosition(ctx context.Context, doc, except *ir.Document) (int64, error) {
	item, err := l.BottomItem(ctx, doc, except)
	if err != nil {
		return 0, err
	}
	if item == nil {
		return 0, nil
	}
	n, ok := l.Position(item)
	if !ok {
		return 0, nil
	}
	return n, nil
}

// HigherItem returns the nearest record above this one (the largest
// position below it), or nil.
func (l *List) HigherItem(ctx context.Context, doc *ir.Document) (*ir.Document, error) {
	pos, ok := l.Position(doc)
	if !ok {
		return nil, nil
	}
	item, err := l.coll.FindOne(ctx, query.Query{
		Filter: l.siblings(doc, l.position(query.Lt, pos)),
		Sort:   []query.Order{query.Desc(l.cfg.Column)},
	})
	if err != nil {
		return nil, fmt.Errorf("higher item: %w", err)
	}
	return item, nil
}

// LowerItem returns the nearest record below this one (the smallest
// position above it), or nil.
func (l *List) LowerItem(ctx context.Context, doc *ir.Document) (*ir.Document, error) {
	pos, ok := l.Position(doc)
	if !ok {
		return nil, nil
	}
	item, err := l.coll.FindOne(ctx, query.Query{
		Filter: l.siblings(doc, l.position(query.Gt, pos)),
		Sort:   []query.Order{query.Asc(l.cfg.Column)},
	})
	if err != nil {
		return nil, fmt.Errorf("lower item: %w", err)
	}
	return item, nil
}

// IsFirst reports whether the record is in the list at position 1.
func (l *List) IsFirst(doc *ir.Document) bool {
	pos, ok := l.Position(doc)
	return ok && pos == 1
}

// IsLast reports whether the record is in the list at the bottom
// position of its partition.
func (l *List) IsLast(ctx context.Context, doc *ir.Document) (bool, error) {
	pos, ok := l.Position(doc)
	if !ok {
		return false, nil
	}
	bottom, err := l.BottomPosition(ctx, doc, nil)
	if err != nil {
		return false, err
	}
	return pos == bottom, nil
}

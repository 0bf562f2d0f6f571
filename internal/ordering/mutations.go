package ordering

import (
	"context"
	"fmt"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/query"
)

// AppendToBottom sets the record's in-memory position to one past the
// bottom of its partition. Nothing is written; the caller persists the
// record afterwards.
func (l *List) AppendToBottom(ctx context.Context, doc *ir.Document) error {
	bottom, err := l.BottomPosition(ctx, doc, nil)
	if err != nil {
		return fmt.Errorf("append to bottom: %w", err)
	}
	doc.Set(l.cfg.Column, ir.Int(bottom+1))
	l.logMove("append_to_bottom", doc, nil, bottom+1)
	return nil
}

// AddToTop shifts every in-list record of the partition down by one and
// sets the record's in-memory position to 1. The caller persists the
// record afterwards.
func (l *List) AddToTop(ctx context.Context, doc *ir.Document) error {
	if _, err := l.coll.IncrementField(ctx, l.siblings(doc, query.Exists{Field: l.cfg.Column}), l.cfg.Column); err != nil {
		return fmt.Errorf("add to top: %w", err)
	}
	doc.Set(l.cfg.Column, ir.Int(1))
	l.logMove("add_to_top", doc, nil, 1)
	return nil
}

// BeforeCreate places a record that is about to be inserted, according to
// the configured placement. It does not lock; see Locked.
func (l *List) BeforeCreate(ctx context.Context, doc *ir.Document) error {
	if l.cfg.Placement == Top {
		return l.AddToTop(ctx, doc)
	}
	return l.AppendToBottom(ctx, doc)
}

// BeforeDestroy removes a record that is about to be deleted from its
// list. A record already out of the list is left alone, so the gap is
// never closed twice. It does not lock; see Locked.
func (l *List) BeforeDestroy(ctx context.Context, doc *ir.Document) error {
	return l.removeFromList(ctx, doc)
}

// InsertAt moves the record to target, shifting records at target and
// below down by one. A record outside the list joins it at target.
//
// target is not validated: a value past bottom+1 leaves a gap, and values
// below 1 break the sequence.
func (l *List) InsertAt(ctx context.Context, doc *ir.Document, target int64) error {
	return l.Locked(ctx, doc, func(ctx context.Context) error {
		from, wasIn := l.Position(doc)
		if wasIn {
			if err := l.decrementLowerItems(ctx, doc, from); err != nil {
				return fmt.Errorf("insert at %d: %w", target, err)
			}
		}
		// The record keeps its old stored position until the final write,
		// so it is excluded from the shift explicitly.
		if _, err := l.coll.IncrementField(ctx,
			l.siblings(doc, l.position(query.Gte, target), query.NotID{ID: doc.ID}),
			l.cfg.Column); err != nil {
			return fmt.Errorf("insert at %d: %w", target, err)
		}
		if err := l.setPosition(ctx, doc, ir.Int(target)); err != nil {
			return fmt.Errorf("insert at %d: %w", target, err)
		}
		l.logMove("insert_at", doc, positionOrNil(from, wasIn), target)
		return nil
	})
}

// MoveToTop moves the record to position 1, shifting the records above it
// down by one.
func (l *List) MoveToTop(ctx context.Context, doc *ir.Document) error {
	if !l.InList(doc) {
		return nil
	}
	return l.Locked(ctx, doc, func(ctx context.Context) error {
		from, _ := l.Position(doc)
		if _, err := l.coll.IncrementField(ctx, l.siblings(doc, l.position(query.Lt, from)), l.cfg.Column); err != nil {
			return fmt.Errorf("move to top: %w", err)
		}
		if err := l.setPosition(ctx, doc, ir.Int(1)); err != nil {
			return fmt.Errorf("move to top: %w", err)
		}
		l.logMove("move_to_top", doc, from, 1)
		return nil
	})
}

// MoveToBottom moves the record after the last one, shifting the records
// below it up by one.
func (l *List) MoveToBottom(ctx context.Context, doc *ir.Document) error {
	if !l.InList(doc) {
		return nil
	}
	return l.Locked(ctx, doc, func(ctx context.Context) error {
		from, _ := l.Position(doc)
		if err := l.decrementLowerItems(ctx, doc, from); err != nil {
			return fmt.Errorf("move to bottom: %w", err)
		}
		bottom, err := l.BottomPosition(ctx, doc, doc)
		if err != nil {
			return fmt.Errorf("move to bottom: %w", err)
		}
		if err := l.setPosition(ctx, doc, ir.Int(bottom+1)); err != nil {
			return fmt.Errorf("move to bottom: %w", err)
		}
		l.logMove("move_to_bottom", doc, from, bottom+1)
		return nil
	})
}

// MoveHigher swaps the record with its higher neighbour: the neighbour
// moves down one and the record moves up one. No-op at the top.
func (l *List) MoveHigher(ctx context.Context, doc *ir.Document) error {
	if !l.InList(doc) {
		return nil
	}
	return l.Locked(ctx, doc, func(ctx context.Context) error {
		higher, err := l.HigherItem(ctx, doc)
		if err != nil {
			return fmt.Errorf("move higher: %w", err)
		}
		if higher == nil {
			return nil
		}
		from, _ := l.Position(doc)
		if err := l.step(ctx, higher, 1); err != nil {
			return fmt.Errorf("move higher: %w", err)
		}
		if err := l.step(ctx, doc, -1); err != nil {
			return fmt.Errorf("move higher: %w", err)
		}
		l.logMove("move_higher", doc, from, from-1)
		return nil
	})
}

// MoveLower swaps the record with its lower neighbour: the neighbour moves
// up one and the record moves down one. No-op at the bottom.
func (l *List) MoveLower(ctx context.Context, doc *ir.Document) error {
	if !l.InList(doc) {
		return nil
	}
	return l.Locked(ctx, doc, func(ctx context.Context) error {
		lower, err := l.LowerItem(ctx, doc)
		if err != nil {
			return fmt.Errorf("move lower: %w", err)
		}
		if lower == nil {
			return nil
		}
		from, _ := l.Position(doc)
		if err := l.step(ctx, lower, -1); err != nil {
			return fmt.Errorf("move lower: %w", err)
		}
		if err := l.step(ctx, doc, 1); err != nil {
			return fmt.Errorf("move lower: %w", err)
		}
		l.logMove("move_lower", doc, from, from+1)
		return nil
	})
}

// RemoveFromList closes the gap the record leaves and clears its position.
// Calling it on a record already out of the list does nothing.
func (l *List) RemoveFromList(ctx context.Context, doc *ir.Document) error {
	if !l.InList(doc) {
		return nil
	}
	return l.Locked(ctx, doc, func(ctx context.Context) error {
		return l.removeFromList(ctx, doc)
	})
}

func (l *List) removeFromList(ctx context.Context, doc *ir.Document) error {
	from, ok := l.Position(doc)
	if !ok {
		return nil
	}
	if err := l.decrementLowerItems(ctx, doc, from); err != nil {
		return fmt.Errorf("remove from list: %w", err)
	}
	if err := l.setPosition(ctx, doc, nil); err != nil {
		return fmt.Errorf("remove from list: %w", err)
	}
	l.logMove("remove_from_list", doc, from, nil)
	return nil
}

// IncrementPosition moves the record down by one without touching any
// other record.
func (l *List) IncrementPosition(ctx context.Context, doc *ir.Document) error {
	if !l.InList(doc) {
		return nil
	}
	return l.Locked(ctx, doc, func(ctx context.Context) error {
		if err := l.step(ctx, doc, 1); err != nil {
			return fmt.Errorf("increment position: %w", err)
		}
		return nil
	})
}

// DecrementPosition moves the record up by one without touching any other
// record.
func (l *List) DecrementPosition(ctx context.Context, doc *ir.Document) error {
	if !l.InList(doc) {
		return nil
	}
	return l.Locked(ctx, doc, func(ctx context.Context) error {
		if err := l.step(ctx, doc, -1); err != nil {
			return fmt.Errorf("decrement position: %w", err)
		}
		return nil
	})
}

// step writes the record's position plus delta. Records out of the list
// are skipped.
func (l *List) step(ctx context.Context, doc *ir.Document, delta int64) error {
	pos, ok := l.Position(doc)
	if !ok {
		return nil
	}
	return l.setPosition(ctx, doc, ir.Int(pos+delta))
}

// decrementLowerItems shifts every record below pos up by one.
func (l *List) decrementLowerItems(ctx context.Context, doc *ir.Document, pos int64) error {
	_, err := l.coll.DecrementField(ctx, l.siblings(doc, l.position(query.Gt, pos)), l.cfg.Column)
	return err
}

// setPosition writes v (nil clears) to the store, then to memory.
func (l *List) setPosition(ctx context.Context, doc *ir.Document, v ir.Value) error {
	if err := l.coll.SetField(ctx, doc.ID, l.cfg.Column, v); err != nil {
		return err
	}
	doc.Set(l.cfg.Column, v)
	return nil
}

package query

import (
	"slices"
	"strings"

	"github.com/roach88/listorder/internal/ir"
)

// Match evaluates p against doc in memory. A nil predicate matches.
func Match(p Predicate, doc *ir.Document) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		v, ok := doc.Get(pred.Field)
		return ok && ir.Equal(v, pred.Value)
	case Compare:
		n, ok := doc.Int(pred.Field)
		return ok && pred.Op.Eval(n, pred.Value)
	case Exists:
		_, ok := doc.Get(pred.Field)
		return ok
	case NotID:
		return doc.ID != pred.ID
	case And:
		for _, sub := range pred.Predicates {
			if !Match(sub, doc) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// SortDocuments orders docs in place by the sort keys followed by id
// ascending. Absent fields sort last regardless of direction.
func SortDocuments(docs []*ir.Document, sort []Order) {
	slices.SortStableFunc(docs, func(a, b *ir.Document) int {
		for _, o := range sort {
			av, aok := a.Get(o.Field)
			bv, bok := b.Get(o.Field)
			switch {
			case !aok && !bok:
				continue
			case !aok:
				return 1
			case !bok:
				return -1
			}
			c := compareValues(av, bv)
			if c == 0 {
				continue
			}
			if o.Descending {
				return -c
			}
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// typeRank orders values of different types: booleans, then numbers,
// then strings, then arrays, then objects.
func typeRank(v ir.Value) int {
	switch v.(type) {
	case ir.Bool:
		return 0
	case ir.Int:
		return 1
	case ir.String:
		return 2
	case ir.Array:
		return 3
	default:
		return 4
	}
}

func compareValues(a, b ir.Value) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch av := a.(type) {
	case ir.Int:
		bv := b.(ir.Int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case ir.String:
		return strings.Compare(string(av), string(b.(ir.String)))
	case ir.Bool:
		bv := b.(ir.Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		}
		return 1
	default:
		return 0
	}
}

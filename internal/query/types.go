package query

import (
	"fmt"

	"github.com/roach88/listorder/internal/ir"
)

// Predicate is a filter condition over a document.
//
// This is a sealed interface: only types in this package implement it,
// which lets backends switch over predicates exhaustively.
type Predicate interface {
	predicateNode()
}

// Equals matches documents whose Field holds exactly Value.
//
// Value must not be nil. Values of different types never compare equal,
// so Int(5) does not match String("5").
type Equals struct {
	Field string
	Value ir.Value
}

func (Equals) predicateNode() {}

// Op is an integer comparison operator.
type Op int

const (
	Lt Op = iota + 1
	Lte
	Gt
	Gte
)

func (o Op) String() string {
	switch o {
	case Lt:
		return "<"
	case Lte:
		return "<="
	case Gt:
		return ">"
	case Gte:
		return ">="
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Eval applies the operator to a and b.
func (o Op) Eval(a, b int64) bool {
	switch o {
	case Lt:
		return a < b
	case Lte:
		return a <= b
	case Gt:
		return a > b
	case Gte:
		return a >= b
	default:
		return false
	}
}

// Compare matches documents whose Field is an integer satisfying
// "Field Op Value". Non-integer and absent fields never match.
type Compare struct {
	Field string
	Op    Op
	Value int64
}

func (Compare) predicateNode() {}

// Exists matches documents where Field is present.
type Exists struct {
	Field string
}

func (Exists) predicateNode() {}

// NotID matches every document except the one identified by ID.
type NotID struct {
	ID string
}

func (NotID) predicateNode() {}

// And matches documents satisfying all of Predicates. An empty And
// matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Order is one sort key.
type Order struct {
	Field      string
	Descending bool
}

// Asc sorts by field ascending.
func Asc(field string) Order { return Order{Field: field} }

// Desc sorts by field descending.
func Desc(field string) Order { return Order{Field: field, Descending: true} }

// Query selects documents of one collection. A nil Filter matches every
// document.
type Query struct {
	Filter Predicate
	Sort   []Order
}

// All combines predicates into a single conjunction, flattening nested
// Ands and dropping nils.
func All(preds ...Predicate) And {
	out := And{}
	for _, p := range preds {
		switch pred := p.(type) {
		case nil:
		case And:
			out.Predicates = append(out.Predicates, All(pred.Predicates...).Predicates...)
		default:
			out.Predicates = append(out.Predicates, pred)
		}
	}
	return out
}

// FromScope turns a scope filter into one Equals predicate per field, in
// sorted key order.
func FromScope(scope ir.Object) And {
	out := And{}
	for _, k := range scope.SortedKeys() {
		out.Predicates = append(out.Predicates, Equals{Field: k, Value: scope[k]})
	}
	return out
}

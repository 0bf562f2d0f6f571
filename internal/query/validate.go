package query

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidQuery is wrapped by every error Validate returns.
var ErrInvalidQuery = errors.New("invalid query")

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidField reports whether name can be used as a document field name.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// Validate checks that every field name in q is an identifier and that
// every predicate is well formed.
//
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	if q.Filter != nil {
		if err := validatePredicate(q.Filter); err != nil {
			return err
		}
	}
	for i, o := range q.Sort {
		if !ValidField(o.Field) {
			return fmt.Errorf("%w: sort[%d]: field %q is not an identifier", ErrInvalidQuery, i, o.Field)
		}
	}
	return nil
}

func validatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case Equals:
		if !ValidField(pred.Field) {
			return fmt.Errorf("%w: equals: field %q is not an identifier", ErrInvalidQuery, pred.Field)
		}
		if pred.Value == nil {
			return fmt.Errorf("%w: equals %s: nil value", ErrInvalidQuery, pred.Field)
		}
	case Compare:
		if !ValidField(pred.Field) {
			return fmt.Errorf("%w: compare: field %q is not an identifier", ErrInvalidQuery, pred.Field)
		}
		if pred.Op < Lt || pred.Op > Gte {
			return fmt.Errorf("%w: compare %s: unknown operator %s", ErrInvalidQuery, pred.Field, pred.Op)
		}
	case Exists:
		if !ValidField(pred.Field) {
			return fmt.Errorf("%w: exists: field %q is not an identifier", ErrInvalidQuery, pred.Field)
		}
	case NotID:
		// any identifier is acceptable
	case And:
		for _, sub := range pred.Predicates {
			if sub == nil {
				continue
			}
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: unsupported predicate type %T", ErrInvalidQuery, p)
	}
	return nil
}

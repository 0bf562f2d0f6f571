package harness

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/repository"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(ctx context.Context, h *Harness, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := h.evaluate(ctx, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertOrder:
		return h.assertOrder(ctx, a)
	case AssertPosition:
		return h.assertPosition(ctx, a)
	case AssertNotInList:
		return h.assertNotInList(ctx, a)
	case AssertDense:
		return h.assertDense(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) assertOrder(ctx context.Context, a Assertion) error {
	scope, err := ir.ObjectFromMap(a.Scope)
	if err != nil {
		return err
	}
	docs, err := h.repo.Ordered(ctx, scope)
	if err != nil {
		return err
	}
	got := make([]string, len(docs))
	for i, d := range docs {
		got[i] = h.ref(d.ID)
	}
	want := a.Refs
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertOrder,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func (h *Harness) assertPosition(ctx context.Context, a Assertion) error {
	doc, err := h.repo.Get(ctx, h.ids[a.Ref])
	if err != nil {
		return err
	}
	pos, ok := h.repo.List().Position(doc)
	if !ok {
		return &AssertionError{
			Type:     AssertPosition,
			Expected: fmt.Sprintf("%s at %d", a.Ref, a.Position),
			Actual:   fmt.Sprintf("%s not in list", a.Ref),
		}
	}
	if pos != a.Position {
		return &AssertionError{
			Type:     AssertPosition,
			Expected: fmt.Sprintf("%s at %d", a.Ref, a.Position),
			Actual:   fmt.Sprintf("%s at %d", a.Ref, pos),
		}
	}
	return nil
}

func (h *Harness) assertNotInList(ctx context.Context, a Assertion) error {
	doc, err := h.repo.Get(ctx, h.ids[a.Ref])
	if repository.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if pos, ok := h.repo.List().Position(doc); ok {
		return &AssertionError{
			Type:     AssertNotInList,
			Expected: fmt.Sprintf("%s without a position", a.Ref),
			Actual:   fmt.Sprintf("%s at %d", a.Ref, pos),
		}
	}
	return nil
}

func (h *Harness) assertDense(ctx context.Context, a Assertion) error {
	scope, err := ir.ObjectFromMap(a.Scope)
	if err != nil {
		return err
	}
	report, err := h.repo.CheckIntegrity(ctx, scope)
	if err != nil {
		return err
	}
	if !report.OK() {
		return &AssertionError{
			Type:     AssertDense,
			Expected: fmt.Sprintf("positions 1..%d", report.Count),
			Actual:   fmt.Sprintf("gaps %v, duplicates %v, out of range %v", report.Gaps, report.Duplicates, report.OutOfRange),
		}
	}
	return nil
}

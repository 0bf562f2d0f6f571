package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/listorder/internal/ir"
)

// Duplicate is a position held by more than one record.
type Duplicate struct {
	Position int64    `json:"position"`
	IDs      []string `json:"ids"`
}

// IntegrityReport describes how far a partition is from the dense 1..N
// sequence. It is diagnostic only; nothing is repaired.
type IntegrityReport struct {
	Scope      ir.Object   `json:"scope"`
	Count      int         `json:"count"`
	Bottom     int64       `json:"bottom"`
	Gaps       []int64     `json:"gaps,omitempty"`
	Duplicates []Duplicate `json:"duplicates,omitempty"`
	// OutOfRange lists ids whose position is below 1.
	OutOfRange []string `json:"out_of_range,omitempty"`
}

// OK reports whether the partition holds exactly positions 1..Count.
func (r IntegrityReport) OK() bool {
	return len(r.Gaps) == 0 && len(r.Duplicates) == 0 && len(r.OutOfRange) == 0
}

// CheckIntegrity inspects the in-list records matching scope.
func (r *Repository) CheckIntegrity(ctx context.Context, scope ir.Object) (IntegrityReport, error) {
	docs, err := r.Ordered(ctx, scope)
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("check integrity: %w", err)
	}
	report := IntegrityReport{Scope: scope.Clone(), Count: len(docs)}
	if report.Scope == nil {
		report.Scope = ir.Object{}
	}

	holders := make(map[int64][]string)
	for _, d := range docs {
		pos, _ := r.list.Position(d)
		if pos < 1 {
			report.OutOfRange = append(report.OutOfRange, d.ID)
			continue
		}
		holders[pos] = append(holders[pos], d.ID)
		if pos > report.Bottom {
			report.Bottom = pos
		}
	}

	for pos := int64(1); pos <= report.Bottom; pos++ {
		ids, ok := holders[pos]
		switch {
		case !ok:
			report.Gaps = append(report.Gaps, pos)
		case len(ids) > 1:
			sort.Strings(ids)
			report.Duplicates = append(report.Duplicates, Duplicate{Position: pos, IDs: ids})
		}
	}
	return report, nil
}

// CheckAll checks every partition that has at least one in-list record.
// Reports are ordered by the canonical JSON of their scope.
func (r *Repository) CheckAll(ctx context.Context) ([]IntegrityReport, error) {
	docs, err := r.Ordered(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("check integrity: %w", err)
	}
	scopes := make(map[string]ir.Object)
	for _, d := range docs {
		cond := r.list.ScopeCondition(d)
		key, err := ir.MarshalCanonical(cond)
		if err != nil {
			return nil, fmt.Errorf("check integrity: %w", err)
		}
		scopes[string(key)] = cond
	}
	keys := make([]string, 0, len(scopes))
	for k := range scopes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	reports := make([]IntegrityReport, 0, len(keys))
	for _, k := range keys {
		report, err := r.CheckIntegrity(ctx, scopes[k])
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

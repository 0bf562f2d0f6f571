package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/listorder/internal/ir"
	"github.com/roach88/listorder/internal/ordering"
	"github.com/roach88/listorder/internal/query"
	"github.com/roach88/listorder/internal/repository"
	"github.com/roach88/listorder/internal/store"
)

// Harness runs one scenario against one collection.
type Harness struct {
	repo *repository.Repository
	coll store.DocumentCollection
	ids  map[string]string // ref -> id
	refs map[string]string // id -> ref
}

// Run executes the scenario on coll, which should be empty, and returns
// the snapshots and assertion outcome. Errors from the engine or the
// store abort the run.
func Run(ctx context.Context, scenario *Scenario, coll store.DocumentCollection) (*Result, error) {
	cfg, err := scenario.List.Ordering()
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := repository.New(coll, cfg, ordering.WithLogger(quiet))
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	h := &Harness{
		repo: repo,
		coll: coll,
		ids:  make(map[string]string),
		refs: make(map[string]string),
	}
	result := NewResult()

	for i, step := range scenario.Setup {
		if err := h.apply(ctx, step); err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step, err)
		}
	}
	if err := h.record(ctx, result, 0, "setup"); err != nil {
		return nil, err
	}

	for i, step := range scenario.Flow {
		if err := h.apply(ctx, step); err != nil {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, step, err)
		}
		if err := h.record(ctx, result, i+1, step.String()); err != nil {
			return nil, err
		}
	}

	for _, msg := range EvaluateAssertions(ctx, h, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) apply(ctx context.Context, step Step) error {
	list := h.repo.List()
	switch step.Op {
	case OpCreate:
		fields, err := ir.ObjectFromMap(step.Fields)
		if err != nil {
			return err
		}
		doc, err := h.repo.Create(ctx, fields)
		if err != nil {
			return err
		}
		h.ids[step.Ref] = doc.ID
		h.refs[doc.ID] = step.Ref
		return nil
	case OpDestroy:
		doc, err := h.repo.Get(ctx, h.ids[step.Ref])
		if err != nil {
			return err
		}
		return h.repo.Destroy(ctx, doc)
	}

	var op func(context.Context, *ir.Document) error
	switch step.Op {
	case OpInsertAt:
		op = func(ctx context.Context, doc *ir.Document) error {
			return list.InsertAt(ctx, doc, step.target())
		}
	case OpMoveToTop:
		op = list.MoveToTop
	case OpMoveToBottom:
		op = list.MoveToBottom
	case OpMoveHigher:
		op = list.MoveHigher
	case OpMoveLower:
		op = list.MoveLower
	case OpRemoveFromList:
		op = list.RemoveFromList
	case OpIncrementPosition:
		op = list.IncrementPosition
	case OpDecrementPosition:
		op = list.DecrementPosition
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	_, err := h.repo.Apply(ctx, h.ids[step.Ref], op)
	return err
}

// record appends a snapshot of every partition in the collection.
func (h *Harness) record(ctx context.Context, result *Result, seq int, label string) error {
	docs, err := h.coll.Find(ctx, query.Query{})
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	list := h.repo.List()

	type entry struct {
		ref string
		pos int64
	}
	groups := make(map[string][]entry)
	var unlisted []string
	for _, d := range docs {
		ref := h.ref(d.ID)
		pos, ok := list.Position(d)
		if !ok {
			unlisted = append(unlisted, ref)
			continue
		}
		key, err := ir.MarshalCanonical(list.ScopeCondition(d))
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		groups[string(key)] = append(groups[string(key)], entry{ref: ref, pos: pos})
	}

	snap := Snapshot{Seq: seq, Step: label, Partitions: []Partition{}}
	for scope, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].pos != entries[j].pos {
				return entries[i].pos < entries[j].pos
			}
			return entries[i].ref < entries[j].ref
		})
		p := Partition{Scope: scope}
		for _, e := range entries {
			p.Entries = append(p.Entries, fmt.Sprintf("%s=%d", e.ref, e.pos))
		}
		snap.Partitions = append(snap.Partitions, p)
	}
	sort.Slice(snap.Partitions, func(i, j int) bool {
		return snap.Partitions[i].Scope < snap.Partitions[j].Scope
	})
	sort.Strings(unlisted)
	snap.Unlisted = unlisted

	result.Snapshots = append(result.Snapshots, snap)
	return nil
}

// ref names a record id, falling back to the id itself.
func (h *Harness) ref(id string) string {
	if r, ok := h.refs[id]; ok {
		return r
	}
	return id
}

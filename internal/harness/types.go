package harness

import (
	"fmt"
	"strings"
)

// Partition is the state of one scope partition in a snapshot.
type Partition struct {
	// Scope is the canonical JSON of the scope condition.
	Scope string `json:"scope"`
	// Entries are "ref=position" in position order.
	Entries []string `json:"entries"`
}

// Snapshot is the collection state after one step.
type Snapshot struct {
	Seq        int         `json:"seq"`
	Step       string      `json:"step"`
	Partitions []Partition `json:"partitions"`
	Unlisted   []string    `json:"unlisted,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Snapshots has one entry for setup and one per flow step.
	Snapshots []Snapshot `json:"snapshots"`

	// Errors holds assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Snapshots: []Snapshot{},
		Errors:    []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Text renders the snapshots in the golden file format.
func (r *Result) Text(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", name)
	for _, s := range r.Snapshots {
		fmt.Fprintf(&b, "[%d] %s\n", s.Seq, s.Step)
		for _, p := range s.Partitions {
			fmt.Fprintf(&b, "  %s  %s\n", p.Scope, strings.Join(p.Entries, " "))
		}
		if len(s.Unlisted) > 0 {
			fmt.Fprintf(&b, "  unlisted  %s\n", strings.Join(s.Unlisted, " "))
		}
	}
	return b.String()
}

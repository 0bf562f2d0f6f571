// Package harness replays ordering scenarios against a document store and
// snapshots the resulting lists for golden comparison.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: reorder
//	description: "Classic four record reordering"
//	list:
//	  column: pos
//	  scope: parent_id
//	setup:
//	  - op: create
//	    ref: a
//	    fields: { parent_id: 5 }
//	flow:
//	  - op: move_lower
//	    ref: a
//	  - op: insert_at
//	    ref: a
//	    position: 1
//	assertions:
//	  - type: order
//	    scope: { parent_id: 5 }
//	    refs: [a]
//
// Records are named by ref; identifiers are generated by the repository and
// never appear in snapshots, so the same golden file holds for every
// backend.
//
// # Operations
//
// create, destroy, insert_at, move_to_top, move_to_bottom, move_higher,
// move_lower, remove_from_list, increment_position, decrement_position.
// Every operation other than create and destroy runs through
// repository.Apply, so it sees the stored state of the record.
//
// # Assertion Types
//
//   - order: the refs of the in-list records of scope, by position
//   - position: the stored position of ref
//   - not_in_list: ref has no position
//   - dense: the positions of scope are exactly 1..N
//
// # Snapshots
//
// After setup and after each flow step the harness records every partition
// of the collection, keyed by the canonical JSON of its scope condition:
//
//	[1] move_lower a
//	  {"parent_id":5}  b=1 a=2
//
// Records outside the list are listed on an "unlisted" line.
package harness

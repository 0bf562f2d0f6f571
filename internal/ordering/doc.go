// Package ordering keeps a dense 1..N position field on the documents of
// a collection, partitioned by scope.
//
// A List is configured once with the position field, the scope fields and
// the placement of new records. Every operation takes the record it acts
// on, reads the record's position and scope values from memory, issues a
// short sequence of store calls, and then updates the in-memory record to
// match what it wrote.
//
// # Scope
//
// The scope filter of a record maps each configured scope field to the
// record's value. A field the record lacks is left out of the filter, so
// such a record shares a list with every sibling regardless of that field.
//
// # Consistency
//
// A shift (bulk increment or decrement) and the final position write are
// separate store calls. A failure between them leaves a gap or duplicate
// in the partition; nothing repairs it automatically, and the error from
// the failing call is returned as is. Repository.CheckIntegrity reports
// such damage.
//
// Concurrent writers to one partition are not coordinated unless the List
// is given a Locker (see WithLocker). Reads never lock.
//
// # Operations on records outside a list
//
// Records whose position is absent are not in any list. Moves, removal
// and neighbour lookups on them are no-ops that return no error.
package ordering

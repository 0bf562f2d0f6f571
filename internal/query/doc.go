// Package query provides the filter and sort representation shared by the
// ordering engine and every store backend.
//
// The engine never speaks a backend's query language. It builds a Query
// from sealed predicates and hands it to a store.Collection; each backend
// translates it (querysql for SQLite and Postgres, bson for Mongo, Match
// and SortDocuments for the in-memory store).
//
// PREDICATES:
//
//	Equals{Field, Value}     field holds exactly Value (scope filters)
//	Compare{Field, Op, N}    field is an integer and compares to N
//	Exists{Field}            field is present
//	NotID{ID}                document identifier differs from ID
//	And{Predicates}          conjunction; empty is always true
//
// An absent field never satisfies Equals or Compare. Backends must agree
// with Match on every predicate; the store contract tests hold them to it.
//
// SORTING:
//
// Every backend appends "id ASC" after the requested sort keys so that
// ties resolve the same way everywhere. Documents missing a sort field
// come last in both directions.
//
// FIELD NAMES:
//
// Field names are interpolated into JSON paths by the SQL backends, so
// Validate only admits identifiers ([A-Za-z_][A-Za-z0-9_]*).
package query

// Package store defines the document-store contract the ordering engine
// and the repository are written against.
//
// Backends live in subpackages:
//   - memory: in-process maps, for tests and throwaway lists
//   - sqlite: one JSON documents table (mattn/go-sqlite3)
//   - postgres: one JSONB documents table (lib/pq)
//   - mongo: native collections (mongo-driver v2)
//
// storetest holds the conformance suite every backend runs.
//
// # Contract
//
//   - Documents are ir.Document values: an identifier plus a body of
//     fields. Bodies never contain null; a removed field is absent.
//   - Filters and sorts are query.Query values and follow query.Match and
//     query.SortDocuments exactly, including the trailing id tiebreak.
//   - Bulk increments only touch documents whose field holds an integer.
//   - Documents returned to callers are copies; mutating them does not
//     change the store.
//
// Every error from a backend is wrapped with the operation name using %w,
// so errors.Is still reaches driver errors and the sentinels below.
package store

// Package ir holds the value model shared by every other package: the
// sealed field values a document body is made of, the Document type, and
// canonical JSON used to derive stable scope keys.
//
// ir imports nothing internal, so stores, queries and the ordering engine
// can all depend on it without cycles.
//
// Constraints:
//   - no floats; numbers are int64 so positions compare exactly
//   - a field missing from a body is "absent"; JSON null decodes to absent
//   - canonical JSON follows RFC 8785 (UTF-16 key order, NFC strings)
package ir

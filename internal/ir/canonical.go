package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical encodes v as RFC 8785 canonical JSON: keys in UTF-16
// order, strings NFC-normalised, no HTML escaping, no insignificant
// whitespace. Two scope filters that select the same partition always
// produce the same bytes, which is what lock keys rely on.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case String:
		return writeCanonicalString(buf, string(val))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
		return nil
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("field %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
		return nil
	case nil:
		return fmt.Errorf("null is not representable in canonical JSON")
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte("\n"))

	// encoding/json escapes U+2028 and U+2029; RFC 8785 keeps them literal.
	out = unescapeLineSeparators(out)
	buf.Write(out)
	return nil
}

// unescapeLineSeparators rewrites \u2028 and \u2029 escapes to the literal
// runes. An escape preceded by an odd run of backslashes is a literal
// backslash followed by text and is left untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') && precedingBackslashes(data, i)%2 == 0 {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i])
	}
	return out
}

func precedingBackslashes(data []byte, i int) int {
	n := 0
	for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
		n++
	}
	return n
}

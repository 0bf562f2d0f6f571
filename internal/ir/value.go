package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the field values a document may carry.
// Only String, Int, Bool, Array and Object implement it. Floats are not
// representable: positions are integers and scope values compare exactly.
type Value interface {
	value()
}

// String is a string field value.
type String string

func (String) value() {}

// Int is an integer field value. Positions are always Int.
type Int int64

func (Int) value() {}

// Bool is a boolean field value.
type Bool bool

func (Bool) value() {}

// Array is an ordered list of values.
type Array []Value

func (Array) value() {}

// Object maps field names to values. A document body is an Object.
// A key that is missing from the map is an absent field.
type Object map[string]Value

func (Object) value() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// Clone returns a deep copy of obj.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case Object:
		return val.Clone()
	default:
		return v
	}
}

// Equal reports whether a and b hold the same value.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}

// FromAny converts a decoded Go value into a Value. It accepts the shapes
// produced by encoding/json (with UseNumber), yaml.v3 and the Mongo driver.
// A nil input reports ok=false: null fields are treated as absent.
func FromAny(v any) (val Value, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return nil, false, nil
	case Value:
		return x, true, nil
	case string:
		return String(x), true, nil
	case bool:
		return Bool(x), true, nil
	case int:
		return Int(x), true, nil
	case int32:
		return Int(x), true, nil
	case int64:
		return Int(x), true, nil
	case uint:
		return Int(x), true, nil
	case uint32:
		return Int(x), true, nil
	case json.Number:
		s := x.String()
		if strings.ContainsAny(s, ".eE") {
			return nil, false, fmt.Errorf("floats are not valid field values: %s", s)
		}
		n, err := x.Int64()
		if err != nil {
			return nil, false, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), true, nil
	case float64:
		if x != float64(int64(x)) {
			return nil, false, fmt.Errorf("floats are not valid field values: %v", x)
		}
		return Int(int64(x)), true, nil
	case []any:
		arr := make(Array, 0, len(x))
		for i, elem := range x {
			ev, ok, err := FromAny(elem)
			if err != nil {
				return nil, false, fmt.Errorf("[%d]: %w", i, err)
			}
			if ok {
				arr = append(arr, ev)
			}
		}
		return arr, true, nil
	case map[string]any:
		obj, err := ObjectFromMap(x)
		if err != nil {
			return nil, false, err
		}
		return obj, true, nil
	default:
		return nil, false, fmt.Errorf("unsupported field type %T", v)
	}
}

// ObjectFromMap converts a generic map into an Object, dropping null fields.
func ObjectFromMap(m map[string]any) (Object, error) {
	obj := make(Object, len(m))
	for k, raw := range m {
		v, ok, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		if ok {
			obj[k] = v
		}
	}
	return obj, nil
}

// ToAny converts a Value back into plain Go values (string, int64, bool,
// []any, map[string]any) for drivers that do not know about Value.
func ToAny(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON writes the object with keys in RFC 8785 order.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping integers exact and dropping
// null fields.
func (obj *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	decoded, err := ObjectFromMap(raw)
	if err != nil {
		return err
	}
	*obj = decoded
	return nil
}

// MarshalValue encodes a single Value as JSON.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown value type %T", v)
	}
}

// ParseValue decodes a JSON literal into a Value. Used by the CLI for
// --set flags; bare words that are not JSON are taken as strings.
func ParseValue(s string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return String(s), nil
	}
	if strings.TrimSpace(s[dec.InputOffset():]) != "" {
		return String(s), nil
	}
	v, ok, err := FromAny(raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("null is not a valid field value")
	}
	return v, nil
}

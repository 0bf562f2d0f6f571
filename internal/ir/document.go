package ir

import "fmt"

// Document is a record in a collection: a store-assigned identifier plus a
// body of named fields. The ordering engine reads and writes one integer
// field of the body (the position) and reads the scope fields.
type Document struct {
	ID     string `json:"id"`
	Fields Object `json:"fields"`
}

// NewDocument returns a document with an empty body.
func NewDocument(id string) *Document {
	return &Document{ID: id, Fields: Object{}}
}

// Get returns the value of field and whether it is present.
func (d *Document) Get(field string) (Value, bool) {
	if d == nil || d.Fields == nil {
		return nil, false
	}
	v, ok := d.Fields[field]
	return v, ok
}

// Int returns the integer value of field. ok is false when the field is
// absent or not an integer.
func (d *Document) Int(field string) (n int64, ok bool) {
	v, present := d.Get(field)
	if !present {
		return 0, false
	}
	i, isInt := v.(Int)
	return int64(i), isInt
}

// Set stores v under field. A nil v removes the field.
func (d *Document) Set(field string, v Value) {
	if v == nil {
		delete(d.Fields, field)
		return
	}
	if d.Fields == nil {
		d.Fields = Object{}
	}
	d.Fields[field] = v
}

// Unset removes field from the body.
func (d *Document) Unset(field string) {
	delete(d.Fields, field)
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{ID: d.ID, Fields: d.Fields.Clone()}
}

func (d *Document) String() string {
	body, err := d.Fields.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%s %v", d.ID, d.Fields)
	}
	return fmt.Sprintf("%s %s", d.ID, body)
}

// Package record defines Row, the unit of test input data shared by every
// stage of the pipeline. A Row is an ordered mapping from field name to string
// value. Rows are immutable: every mutating operation returns a new Row.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Canonical field names of the validation-rule domain.
const (
	FieldStory = "story"
	FieldRule  = "rule"
	FieldMin   = "min"
	FieldMax   = "max"
)

// CanonicalFields lists the canonical fields in their display order.
var CanonicalFields = []string{FieldStory, FieldRule, FieldMin, FieldMax}

// Row is an ordered-insertion mapping from field name to string value.
// The zero value is an empty row and is ready to use.
type Row struct {
	keys   []string
	values map[string]string
}

// New builds a row from parallel header and value slices. If the slices
// differ in length, the extra entries of the longer one are ignored; the
// loaders reject such input before reaching this point. A repeated field keeps
// its first position and its last value.
func New(fields, values []string) Row {
	n := min(len(fields), len(values))
	r := Row{keys: make([]string, 0, n), values: make(map[string]string, n)}
	for i := 0; i < n; i++ {
		r.set(fields[i], values[i])
	}
	return r
}

// FromPairs builds a row from alternating field/value arguments.
// A trailing field without a value is ignored.
func FromPairs(kv ...string) Row {
	r := Row{values: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		r.set(kv[i], kv[i+1])
	}
	return r
}

func (r *Row) set(field, value string) {
	if _, ok := r.values[field]; !ok {
		r.keys = append(r.keys, field)
	}
	r.values[field] = value
}

// Get returns the value of field and whether the field exists on the row.
func (r Row) Get(field string) (string, bool) {
	v, ok := r.values[field]
	return v, ok
}

// Value returns the value of field, or "" when the field is absent.
func (r Row) Value(field string) string {
	return r.values[field]
}

// Has reports whether the row carries field.
func (r Row) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Len returns the number of fields.
func (r Row) Len() int {
	return len(r.keys)
}

// Fields returns the field names in insertion order.
func (r Row) Fields() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// With returns a copy of the row with field set to value. New fields are
// appended after the existing ones; existing fields keep their position.
func (r Row) With(field, value string) Row {
	c := r.Clone()
	c.set(field, value)
	return c
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	c := Row{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]string, len(r.values)),
	}
	copy(c.keys, r.keys)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Map returns the row contents as a plain map.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	for k, v := range r.values {
		m[k] = v
	}
	return m
}

// Equal reports whether both rows hold the same fields, in the same order,
// with the same values.
func (r Row) Equal(other Row) bool {
	if len(r.keys) != len(other.keys) {
		return false
	}
	for i, k := range r.keys {
		if other.keys[i] != k || other.values[k] != r.values[k] {
			return false
		}
	}
	return true
}

// String renders the row as {field=value, ...} in field order.
func (r Row) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s", k, r.values[k])
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes the row as a JSON object preserving field order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object of string values, keeping the
// order in which keys appear in the document.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("row must be a JSON object")
	}
	out := Row{values: make(map[string]string)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("row field %q: %w", key, err)
		}
		out.set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

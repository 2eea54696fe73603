package extract

import (
	"bytes"
	"encoding/json"
)

// Field is one extracted value.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record holds extracted fields in catalog order. Names are unique.
type Record []Field

// Get returns the value for name.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Names returns field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// AllEmpty reports whether no field has a value. An empty record is all empty.
func (r Record) AllEmpty() bool {
	for _, f := range r {
		if f.Value != "" {
			return false
		}
	}
	return true
}

// Empty returns the names of fields with no value.
func (r Record) Empty() []string {
	var names []string
	for _, f := range r {
		if f.Value == "" {
			names = append(names, f.Name)
		}
	}
	return names
}

// MarshalJSON renders the record as a JSON object whose keys keep the
// record's order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

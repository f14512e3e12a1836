package caseload

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named value of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is one result row labelled by the data query's column names, in
// column order.
type Record []Field

// NewRecord zips columns with values. Rows whose width differs from the
// column list are rejected.
func NewRecord(columns []string, values []any) (Record, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("%w: %d columns mapped for a row of %d values",
			ErrProjectionSplice, len(columns), len(values))
	}
	r := make(Record, len(columns))
	for i, name := range columns {
		r[i] = Field{Name: name, Value: values[i]}
	}
	return r, nil
}

// Get returns the value stored under name.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the record as an object with keys in column order.
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
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package sqlresult

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// VisibleResult is the table a script sees for a query.
type VisibleResult struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Empty returns a result with no columns and no rows.
func Empty() VisibleResult {
	return VisibleResult{Columns: []string{}, Rows: []Row{}}
}

// IsEmpty reports whether the result has neither columns nor rows.
func (v VisibleResult) IsEmpty() bool {
	return len(v.Columns) == 0 && len(v.Rows) == 0
}

// Column returns every row's value for name, in row order.
func (v VisibleResult) Column(name string) ([]interface{}, bool) {
	idx := indexOf(v.Columns, name)
	if idx < 0 {
		return nil, false
	}
	out := make([]interface{}, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = r.values[idx]
	}
	return out, true
}

// MarshalJSON keeps nil slices from encoding as null.
func (v VisibleResult) MarshalJSON() ([]byte, error) {
	type alias VisibleResult
	a := alias(v)
	if a.Columns == nil {
		a.Columns = []string{}
	}
	if a.Rows == nil {
		a.Rows = []Row{}
	}
	return json.Marshal(a)
}

// UnmarshalJSON rebuilds rows against the decoded column list so that
// every row shares it.
func (v *VisibleResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Columns []string                     `json:"columns"`
		Rows    []map[string]json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Columns == nil {
		raw.Columns = []string{}
	}
	rows := make([]Row, len(raw.Rows))
	for i, m := range raw.Rows {
		values := make([]interface{}, len(raw.Columns))
		for j, name := range raw.Columns {
			msg, ok := m[name]
			if !ok {
				continue
			}
			if err := json.Unmarshal(msg, &values[j]); err != nil {
				return fmt.Errorf("row %d column %q: %w", i, name, err)
			}
		}
		rows[i] = Row{columns: raw.Columns, values: values}
	}
	v.Columns = raw.Columns
	v.Rows = rows
	return nil
}

// Row is one record of a VisibleResult. Its keys are exactly the result's
// columns, in column order.
type Row struct {
	columns []string
	values  []interface{}
}

// NewRow builds a row. values must be as long as columns.
func NewRow(columns []string, values []interface{}) (Row, error) {
	if len(columns) != len(values) {
		return Row{}, fmt.Errorf("row has %d values for %d columns", len(values), len(columns))
	}
	return Row{columns: columns, values: values}, nil
}

// Columns returns the row's keys.
func (r Row) Columns() []string { return r.columns }

// Values returns the row's values in column order.
func (r Row) Values() []interface{} { return r.values }

// Get returns the value stored under name.
func (r Row) Get(name string) (interface{}, bool) {
	idx := indexOf(r.columns, name)
	if idx < 0 {
		return nil, false
	}
	return r.values[idx], true
}

// Map returns the row as an unordered map.
func (r Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// MarshalJSON encodes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

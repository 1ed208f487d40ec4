// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package params implements the parameter declaration protocol scripts use to
// expose interactive inputs.
//
// A script calls the same accessors (get, slider, select) in both run modes.
// In schema mode a Declaring resolver records each call as a ParamSpec and
// returns the declared default; in execution mode a Values resolver resolves
// each call against the caller's supplied values. The resolver is chosen once
// per run, so accessors never branch on mode.
package params

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Mode selects how a run treats parameter accessors.
type Mode string

const (
	// ModeSchema is the dry pass that discovers declared parameters.
	ModeSchema Mode = "schema"
	// ModeExecution is the live pass that consumes supplied values.
	ModeExecution Mode = "execution"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeSchema || m == ModeExecution
}

// Kind is the widget kind of a declared parameter.
type Kind string

const (
	KindText   Kind = "text"
	KindSlider Kind = "slider"
	KindSelect Kind = "select"
)

// ParamSpec describes one parameter discovered during a schema pass.
// Min, Max and Step are set for sliders and hold int64 or float64 according
// to ValueType. Options is set for selects.
type ParamSpec struct {
	Key       string        `json:"key"`
	Kind      Kind          `json:"kind"`
	Label     string        `json:"label"`
	Default   interface{}   `json:"default"`
	Min       interface{}   `json:"min,omitempty"`
	Max       interface{}   `json:"max,omitempty"`
	Step      interface{}   `json:"step,omitempty"`
	ValueType NumberType    `json:"value_type,omitempty"`
	Options   []interface{} `json:"options,omitempty"`
}

// MarshalJSON always writes an options list for selects, even an empty one.
func (p ParamSpec) MarshalJSON() ([]byte, error) {
	type alias ParamSpec
	if p.Kind != KindSelect {
		return json.Marshal(alias(p))
	}
	opts := p.Options
	if opts == nil {
		opts = []interface{}{}
	}
	return json.Marshal(struct {
		alias
		Options []interface{} `json:"options"`
	}{alias(p), opts})
}

// Schema is the ordered set of parameters a script declared. Keys keep the
// position of their first declaration; redeclaring a key replaces its spec.
type Schema struct {
	keys  []string
	specs map[string]ParamSpec
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{specs: make(map[string]ParamSpec)}
}

// Set records spec, replacing any earlier declaration of the same key.
func (s *Schema) Set(spec ParamSpec) {
	if s.specs == nil {
		s.specs = make(map[string]ParamSpec)
	}
	if _, ok := s.specs[spec.Key]; !ok {
		s.keys = append(s.keys, spec.Key)
	}
	s.specs[spec.Key] = spec
}

// Get returns the spec declared under key.
func (s *Schema) Get(key string) (ParamSpec, bool) {
	if s == nil {
		return ParamSpec{}, false
	}
	spec, ok := s.specs[key]
	return spec, ok
}

// Keys returns the declared keys in declaration order.
func (s *Schema) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of declared parameters.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Specs returns the declared specs in declaration order.
func (s *Schema) Specs() []ParamSpec {
	if s == nil {
		return nil
	}
	out := make([]ParamSpec, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.specs[k]
	}
	return out
}

// MarshalJSON encodes the schema as an object keyed by parameter key, in
// declaration order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if s != nil {
		for i, k := range s.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			spec, err := json.Marshal(s.specs[k])
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", k, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(spec)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by parameter key, keeping the
// object's key order.
func (s *Schema) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("schema must be a JSON object")
	}

	out := NewSchema()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("schema key must be a string")
		}
		var spec ParamSpec
		if err := dec.Decode(&spec); err != nil {
			return fmt.Errorf("parameter %q: %w", key, err)
		}
		if spec.Key == "" {
			spec.Key = key
		}
		out.Set(spec)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = *out
	return nil
}

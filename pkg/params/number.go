// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package params

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NumberType is the resolved value type of a slider.
type NumberType string

const (
	TypeInt   NumberType = "int"
	TypeFloat NumberType = "float"
)

// ParseNumberType maps a script's type annotation to a NumberType. The empty
// string means no annotation.
func ParseNumberType(s string) (NumberType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "int", "integer":
		return TypeInt, true
	case "float", "double", "number":
		return TypeFloat, true
	}
	return "", false
}

// Number is a numeric slider argument that remembers whether it was written
// as an integer. The zero value is unset.
type Number struct {
	Value    float64
	Integral bool
	set      bool
}

// Int returns an integral Number.
func Int(i int64) Number {
	return Number{Value: float64(i), Integral: true, set: true}
}

// Float returns a floating point Number, even when f has no fraction.
func Float(f float64) Number {
	return Number{Value: f, set: true}
}

// IsSet reports whether n was given.
func (n Number) IsSet() bool { return n.set }

// As converts n to the Go value for t: int64 for TypeInt, float64 otherwise.
// Values beyond the int64 range saturate.
func (n Number) As(t NumberType) interface{} {
	if t != TypeInt {
		return n.Value
	}
	if i, ok := truncInt(n.Value); ok {
		return i
	}
	if n.Value < 0 {
		return int64(math.MinInt64)
	}
	return int64(math.MaxInt64)
}

// truncInt truncates f toward zero. It fails for NaN and for values outside
// the int64 range, where Go's conversion is undefined.
func truncInt(f float64) (int64, bool) {
	f = math.Trunc(f)
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// resolveType picks a slider's value type: the explicit annotation, else int
// when every bound and the default are integral, else float.
func resolveType(explicit NumberType, nums ...Number) NumberType {
	if explicit != "" {
		return explicit
	}
	for _, n := range nums {
		if !n.Integral {
			return TypeFloat
		}
	}
	return TypeInt
}

// Coerce converts a supplied parameter value to t. Integers, floats and
// numeric strings are accepted; floats are truncated toward zero for TypeInt.
// Anything else fails.
func Coerce(v interface{}, t NumberType) (interface{}, bool) {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		if t == TypeInt {
			return x, true
		}
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Coerce(i, t)
		}
		parsed, err := x.Float64()
		if err != nil {
			return nil, false
		}
		f = parsed
	case string:
		return coerceString(x, t)
	default:
		return nil, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	if t == TypeInt {
		i, ok := truncInt(f)
		if !ok {
			return nil, false
		}
		return i, true
	}
	return f, true
}

func coerceString(s string, t NumberType) (interface{}, bool) {
	s = strings.TrimSpace(s)
	if t == TypeInt {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

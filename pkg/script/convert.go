// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package script

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"go.starlark.net/starlark"

	"github.com/teradata-labs/sibridge/pkg/params"
)

// toStarlark converts a Go value from a query result or parameter envelope.
func toStarlark(v interface{}) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case starlark.Value:
		return x
	case bool:
		return starlark.Bool(x)
	case int:
		return starlark.MakeInt(x)
	case int32:
		return starlark.MakeInt64(int64(x))
	case int64:
		return starlark.MakeInt64(x)
	case uint64:
		return starlark.MakeUint64(x)
	case float32:
		return starlark.Float(x)
	case float64:
		return starlark.Float(x)
	case string:
		return starlark.String(x)
	case []byte:
		return starlark.String(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return starlark.MakeInt64(i)
		}
		if f, err := x.Float64(); err == nil {
			return starlark.Float(f)
		}
		return starlark.String(x)
	case time.Time:
		return starlark.String(x.Format(time.RFC3339Nano))
	case []interface{}:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			elems[i] = toStarlark(e)
		}
		return starlark.NewList(elems)
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(x))
		for _, k := range keys {
			_ = d.SetKey(starlark.String(k), toStarlark(x[k]))
		}
		return d
	default:
		return starlark.String(fmt.Sprint(x))
	}
}

// fromStarlark converts a script value to a JSON-compatible Go value.
func fromStarlark(v starlark.Value) (interface{}, error) {
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i, nil
		}
		return float64(x.Float()), nil
	case starlark.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("float %v is not representable in JSON", f)
		}
		return f, nil
	case starlark.String:
		return string(x), nil
	case *RowSet:
		return x.result, nil
	case starlark.Tuple:
		return fromSequence(x.Len(), x.Index)
	case *starlark.List:
		return fromSequence(x.Len(), x.Index)
	case *starlark.Dict:
		out := make(map[string]interface{}, x.Len())
		for _, item := range x.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				key = item[0].String()
			}
			val, err := fromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			out[key] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot convert %s to JSON", v.Type())
	}
}

func fromSequence(n int, index func(int) starlark.Value) ([]interface{}, error) {
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		val, err := fromStarlark(index(i))
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = val
	}
	return out, nil
}

// toNumber converts a slider argument. None means unset.
func toNumber(fn, name string, v starlark.Value) (params.Number, error) {
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return params.Number{}, nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return params.Int(i), nil
		}
		return params.Float(float64(x.Float())), nil
	case starlark.Float:
		return params.Float(float64(x)), nil
	default:
		return params.Number{}, fmt.Errorf("%s: %s must be a number, got %s", fn, name, v.Type())
	}
}

// toList converts an options argument. None means unset.
func toList(fn, name string, v starlark.Value) ([]interface{}, error) {
	if v == nil || v == starlark.None {
		return nil, nil
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: %s must be a list, got %s", fn, name, v.Type())
	}
	var out []interface{}
	iter := iterable.Iterate()
	defer iter.Done()
	var elem starlark.Value
	for iter.Next(&elem) {
		val, err := fromStarlark(elem)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", fn, name, err)
		}
		out = append(out, val)
	}
	return out, nil
}

// toStrings converts a column-name argument: None, one string or a list of
// strings.
func toStrings(fn, name string, v starlark.Value) ([]string, error) {
	if s, ok := v.(starlark.String); ok {
		return []string{string(s)}, nil
	}
	values, err := toList(fn, name, v)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, val := range values {
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%s: %s must contain strings, got %T", fn, name, val)
		}
		out = append(out, s)
	}
	return out, nil
}

// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package params

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOptions struct {
	values []interface{}
	err    error
	calls  int
}

func (f *fakeOptions) FirstColumn(_ context.Context, _ string) ([]interface{}, error) {
	f.calls++
	return f.values, f.err
}

func TestSliderTypeResolution(t *testing.T) {
	tests := []struct {
		name string
		args SliderArgs
		want NumberType
	}{
		{
			name: "integral bounds",
			args: SliderArgs{Key: "n", Min: Int(0), Max: Int(10), Step: Int(1), Default: Int(0)},
			want: TypeInt,
		},
		{
			name: "fractional step",
			args: SliderArgs{Key: "n", Min: Int(0), Max: Int(1), Step: Float(0.1), Default: Int(0)},
			want: TypeFloat,
		},
		{
			name: "explicit float overrides integral bounds",
			args: SliderArgs{Key: "n", Min: Int(0), Max: Int(10), Step: Int(1), Default: Int(0), Type: TypeFloat},
			want: TypeFloat,
		},
		{
			name: "float written without fraction",
			args: SliderArgs{Key: "n", Min: Float(0), Max: Int(10)},
			want: TypeFloat,
		},
		{
			name: "all defaults",
			args: SliderArgs{Key: "n"},
			want: TypeInt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDeclaring(nil, nil)
			d.Slider(context.Background(), tt.args)
			spec, ok := d.Schema().Get("n")
			require.True(t, ok)
			assert.Equal(t, tt.want, spec.ValueType)
		})
	}
}

func TestDeclaringSlider_PublishesBoundsAndDefault(t *testing.T) {
	d := NewDeclaring(nil, nil)
	got := d.Slider(context.Background(), SliderArgs{
		Key: "limit", Label: "Rows", Min: Int(1), Max: Int(100), Step: Int(1), Default: Int(10),
	})
	assert.Equal(t, int64(10), got)

	spec, ok := d.Schema().Get("limit")
	require.True(t, ok)
	assert.Equal(t, ParamSpec{
		Key:       "limit",
		Kind:      KindSlider,
		Label:     "Rows",
		Default:   int64(10),
		Min:       int64(1),
		Max:       int64(100),
		Step:      int64(1),
		ValueType: TypeInt,
	}, spec)
}

func TestValuesSlider_Coercion(t *testing.T) {
	args := SliderArgs{Key: "n", Min: Int(0), Max: Int(10), Step: Int(1), Default: Int(5)}
	floatArgs := SliderArgs{Key: "n", Min: Int(0), Max: Int(1), Step: Float(0.1), Default: Float(0.5)}

	tests := []struct {
		name  string
		args  SliderArgs
		value interface{}
		want  interface{}
	}{
		{"missing value", args, nil, int64(5)},
		{"non-numeric string", args, "abc", int64(5)},
		{"numeric string", args, " 7 ", int64(7)},
		{"float truncates", args, 7.9, int64(7)},
		{"float above int64 range", args, 1e300, int64(5)},
		{"float below int64 range", args, -1e19, int64(5)},
		{"json number above int64 range", args, json.Number("1e300"), int64(5)},
		{"json number", args, json.Number("3"), int64(3)},
		{"bool rejected", args, true, int64(5)},
		{"float target string", floatArgs, "0.25", 0.25},
		{"float target int", floatArgs, int64(1), 1.0},
		{"float target garbage", floatArgs, []string{"x"}, 0.5},
		{"float target NaN", floatArgs, "NaN", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]interface{}{}
			if tt.value != nil {
				values["n"] = tt.value
			}
			v := NewValues(values)
			assert.Equal(t, tt.want, v.Slider(context.Background(), tt.args))
		})
	}
}

func TestNumber_AsSaturates(t *testing.T) {
	assert.Equal(t, int64(3), Float(3.7).As(TypeInt))
	assert.Equal(t, int64(-3), Float(-3.7).As(TypeInt))
	assert.Equal(t, int64(math.MaxInt64), Float(1e300).As(TypeInt))
	assert.Equal(t, int64(math.MinInt64), Float(-1e300).As(TypeInt))
	assert.Equal(t, 1e300, Float(1e300).As(TypeFloat))
}

func TestDeclaringSelect_Discovery(t *testing.T) {
	src := &fakeOptions{values: []interface{}{"East", "West", "East"}}
	d := NewDeclaring(src, nil)

	got := d.Select(context.Background(), SelectArgs{
		Key:            "region",
		DiscoveryQuery: "SELECT DISTINCT region FROM sales",
	})
	assert.Equal(t, "East", got)

	spec, ok := d.Schema().Get("region")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"East", "West"}, spec.Options)
	assert.Equal(t, "East", spec.Default)
	assert.Equal(t, "region", spec.Label)
	assert.Equal(t, 1, src.calls)
}

func TestDeclaringSelect_DiscoveryCap(t *testing.T) {
	values := make([]interface{}, 80)
	for i := range values {
		values[i] = int64(i)
	}
	d := NewDeclaring(&fakeOptions{values: values}, nil)
	d.Select(context.Background(), SelectArgs{Key: "k", DiscoveryQuery: "SELECT n FROM t"})

	spec, _ := d.Schema().Get("k")
	assert.Len(t, spec.Options, MaxDiscoveredOptions)
	assert.Equal(t, int64(0), spec.Default)
}

func TestDeclaringSelect_DiscoveryFailureYieldsNoOptions(t *testing.T) {
	d := NewDeclaring(&fakeOptions{err: errors.New("no such table: sales")}, nil)
	got := d.Select(context.Background(), SelectArgs{Key: "region", DiscoveryQuery: "SELECT region FROM sales"})
	assert.Nil(t, got)

	spec, ok := d.Schema().Get("region")
	require.True(t, ok)
	assert.Empty(t, spec.Options)
	assert.Nil(t, spec.Default)

	data, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"options":[]`)
}

func TestDeclaringSelect_StaticOptionsSkipDiscovery(t *testing.T) {
	src := &fakeOptions{values: []interface{}{"x"}}
	d := NewDeclaring(src, nil)
	got := d.Select(context.Background(), SelectArgs{
		Key:            "color",
		Options:        []interface{}{"red", "blue"},
		DiscoveryQuery: "SELECT c FROM colors",
		Default:        "blue",
	})
	assert.Equal(t, "blue", got)
	assert.Equal(t, 0, src.calls)
}

func TestDeclaring_LastDeclarationWins(t *testing.T) {
	d := NewDeclaring(nil, nil)
	ctx := context.Background()
	d.Get(ctx, "a", "first")
	d.Get(ctx, "b", 1)
	d.Slider(ctx, SliderArgs{Key: "a", Default: Int(3)})

	assert.Equal(t, []string{"a", "b"}, d.Schema().Keys())
	spec, _ := d.Schema().Get("a")
	assert.Equal(t, KindSlider, spec.Kind)
}

func TestValues_SelectAndGet(t *testing.T) {
	ctx := context.Background()
	v := NewValues(map[string]interface{}{"region": "West", "name": "bob"})

	assert.Equal(t, "West", v.Select(ctx, SelectArgs{Key: "region", Options: []interface{}{"East"}}))
	assert.Equal(t, "East", v.Select(ctx, SelectArgs{Key: "other", Options: []interface{}{"East"}}))
	assert.Equal(t, "dflt", v.Select(ctx, SelectArgs{Key: "other", Default: "dflt"}))
	assert.Nil(t, v.Select(ctx, SelectArgs{Key: "other", DiscoveryQuery: "SELECT 1"}))
	assert.Equal(t, "bob", v.Get(ctx, "name", "x"))
	assert.Equal(t, "x", v.Get(ctx, "missing", "x"))
}

func TestNewResolver(t *testing.T) {
	r, err := NewResolver(ModeSchema, map[string]interface{}{"a": 1}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeSchema, r.Mode())
	// Schema mode ignores supplied values.
	assert.Equal(t, "d", r.Get(context.Background(), "a", "d"))

	r, err = NewResolver(ModeExecution, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeExecution, r.Mode())

	_, err = NewResolver(Mode("preview"), nil, nil, nil)
	assert.Error(t, err)
}

func TestSchemaJSON_RoundTripKeepsOrder(t *testing.T) {
	d := NewDeclaring(nil, nil)
	ctx := context.Background()
	d.Slider(ctx, SliderArgs{Key: "zeta", Min: Int(0), Max: Int(1), Step: Float(0.1), Default: Int(0)})
	d.Select(ctx, SelectArgs{Key: "alpha", Options: []interface{}{"a", "b"}})
	d.Get(ctx, "mid", "text")

	data, err := json.Marshal(d.Schema())
	require.NoError(t, err)

	var back Schema
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, back.Keys())

	alpha, ok := back.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, alpha.Options)
	assert.Equal(t, "a", alpha.Default)

	zeta, _ := back.Get("zeta")
	assert.Equal(t, TypeFloat, zeta.ValueType)
	assert.Equal(t, 0.1, zeta.Step)
}

func TestSchemaUnmarshal_RejectsNonObject(t *testing.T) {
	var s Schema
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &s))
}

func TestParseNumberType(t *testing.T) {
	typ, ok := ParseNumberType("Float")
	assert.True(t, ok)
	assert.Equal(t, TypeFloat, typ)

	typ, ok = ParseNumberType("")
	assert.True(t, ok)
	assert.Equal(t, NumberType(""), typ)

	_, ok = ParseNumberType("complex")
	assert.False(t, ok)
}

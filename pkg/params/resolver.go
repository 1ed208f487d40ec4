// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package params

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// MaxDiscoveredOptions caps the options a discovery query can contribute.
const MaxDiscoveredOptions = 50

// SliderArgs are the arguments of a slider declaration. Unset numbers take
// the defaults min=0, max=100, step=1, default=min.
type SliderArgs struct {
	Key     string
	Label   string
	Min     Number
	Max     Number
	Step    Number
	Default Number
	Type    NumberType
}

func (a SliderArgs) withDefaults() SliderArgs {
	if !a.Min.IsSet() {
		a.Min = Int(0)
	}
	if !a.Max.IsSet() {
		a.Max = Int(100)
	}
	if !a.Step.IsSet() {
		a.Step = Int(1)
	}
	if !a.Default.IsSet() {
		a.Default = a.Min
	}
	if a.Label == "" {
		a.Label = a.Key
	}
	return a
}

// SelectArgs are the arguments of a select declaration.
type SelectArgs struct {
	Key            string
	Label          string
	Options        []interface{}
	DiscoveryQuery string
	Default        interface{}
}

// OptionSource runs a discovery query and returns the values of its first
// column in result order.
type OptionSource interface {
	FirstColumn(ctx context.Context, sql string) ([]interface{}, error)
}

// Resolver answers a script's parameter accessor calls for one run.
type Resolver interface {
	Mode() Mode
	Get(ctx context.Context, key string, def interface{}) interface{}
	Slider(ctx context.Context, args SliderArgs) interface{}
	Select(ctx context.Context, args SelectArgs) interface{}
}

// NewResolver returns the resolver for mode. values is ignored in schema
// mode and options is ignored in execution mode.
func NewResolver(mode Mode, values map[string]interface{}, options OptionSource, logger *zap.Logger) (Resolver, error) {
	switch mode {
	case ModeSchema:
		return NewDeclaring(options, logger), nil
	case ModeExecution:
		return NewValues(values), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// Declaring records every accessor call into a Schema and returns declared
// defaults. It never sees parameter values.
type Declaring struct {
	schema  *Schema
	options OptionSource
	logger  *zap.Logger
}

var _ Resolver = (*Declaring)(nil)

// NewDeclaring creates a schema-mode resolver. options may be nil, in which
// case discovery queries yield no options.
func NewDeclaring(options OptionSource, logger *zap.Logger) *Declaring {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Declaring{schema: NewSchema(), options: options, logger: logger}
}

func (d *Declaring) Mode() Mode { return ModeSchema }

// Schema returns the parameters declared so far.
func (d *Declaring) Schema() *Schema { return d.schema }

func (d *Declaring) Get(_ context.Context, key string, def interface{}) interface{} {
	d.schema.Set(ParamSpec{Key: key, Kind: KindText, Label: key, Default: def})
	return def
}

func (d *Declaring) Slider(_ context.Context, args SliderArgs) interface{} {
	args = args.withDefaults()
	typ := resolveType(args.Type, args.Min, args.Max, args.Step, args.Default)
	def := args.Default.As(typ)
	d.schema.Set(ParamSpec{
		Key:       args.Key,
		Kind:      KindSlider,
		Label:     args.Label,
		Default:   def,
		Min:       args.Min.As(typ),
		Max:       args.Max.As(typ),
		Step:      args.Step.As(typ),
		ValueType: typ,
	})
	return def
}

func (d *Declaring) Select(ctx context.Context, args SelectArgs) interface{} {
	options := args.Options
	if len(options) == 0 && args.DiscoveryQuery != "" {
		options = d.discover(ctx, args.Key, args.DiscoveryQuery)
	}
	if options == nil {
		options = []interface{}{}
	}

	def := args.Default
	if def == nil && len(options) > 0 {
		def = options[0]
	}
	label := args.Label
	if label == "" {
		label = args.Key
	}

	d.schema.Set(ParamSpec{
		Key:     args.Key,
		Kind:    KindSelect,
		Label:   label,
		Default: def,
		Options: options,
	})
	return def
}

// discover runs a discovery query. Failures yield no options.
func (d *Declaring) discover(ctx context.Context, key, query string) []interface{} {
	if d.options == nil {
		d.logger.Debug("no option source for discovery query", zap.String("key", key))
		return nil
	}
	values, err := d.options.FirstColumn(ctx, query)
	if err != nil {
		d.logger.Warn("option discovery failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil
	}
	return distinctOptions(values, MaxDiscoveredOptions)
}

// distinctOptions keeps the first occurrence of each value, up to limit.
// Unhashable values are compared by their formatted form.
func distinctOptions(values []interface{}, limit int) []interface{} {
	seen := make(map[string]bool, len(values))
	out := make([]interface{}, 0, min(len(values), limit))
	for _, v := range values {
		if len(out) >= limit {
			break
		}
		k := fmt.Sprintf("%T:%v", v, v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// Values resolves accessor calls against supplied parameter values. It holds
// no schema.
type Values struct {
	values map[string]interface{}
}

var _ Resolver = (*Values)(nil)

// NewValues creates an execution-mode resolver over values.
func NewValues(values map[string]interface{}) *Values {
	if values == nil {
		values = map[string]interface{}{}
	}
	return &Values{values: values}
}

func (v *Values) Mode() Mode { return ModeExecution }

func (v *Values) lookup(key string) (interface{}, bool) {
	val, ok := v.values[key]
	if !ok || val == nil {
		return nil, false
	}
	return val, true
}

func (v *Values) Get(_ context.Context, key string, def interface{}) interface{} {
	if val, ok := v.lookup(key); ok {
		return val
	}
	return def
}

// Slider coerces the supplied value to the resolved type. A missing or
// malformed value falls back to the declared default.
func (v *Values) Slider(_ context.Context, args SliderArgs) interface{} {
	args = args.withDefaults()
	typ := resolveType(args.Type, args.Min, args.Max, args.Step, args.Default)
	if val, ok := v.lookup(args.Key); ok {
		if coerced, ok := Coerce(val, typ); ok {
			return coerced
		}
	}
	return args.Default.As(typ)
}

func (v *Values) Select(_ context.Context, args SelectArgs) interface{} {
	if val, ok := v.lookup(args.Key); ok {
		return val
	}
	if args.Default != nil {
		return args.Default
	}
	if len(args.Options) > 0 {
		return args.Options[0]
	}
	return nil
}

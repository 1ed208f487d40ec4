// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package script

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"

	"github.com/teradata-labs/sibridge/pkg/params"
)

// accessors is SI.params: get, slider and select, delegating to the run's
// resolver.
type accessors struct {
	ctx      context.Context
	resolver params.Resolver
}

var _ starlark.HasAttrs = (*accessors)(nil)

func (a *accessors) String() string        { return "<SI.params>" }
func (a *accessors) Type() string          { return "sibridge.params" }
func (a *accessors) Freeze()               {}
func (a *accessors) Truth() starlark.Bool  { return starlark.True }
func (a *accessors) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", a.Type()) }

func (a *accessors) Attr(name string) (starlark.Value, error) {
	switch name {
	case "get":
		return starlark.NewBuiltin("get", a.get), nil
	case "slider":
		return starlark.NewBuiltin("slider", a.slider), nil
	case "select":
		return starlark.NewBuiltin("select", a.selectParam), nil
	}
	return nil, nil
}

func (a *accessors) AttrNames() []string {
	return []string{"get", "select", "slider"}
}

// get(key, default=None)
func (a *accessors) get(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		key string
		def starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "key", &key, "default?", &def); err != nil {
		return nil, err
	}
	goDef, err := fromStarlark(def)
	if err != nil {
		return nil, fmt.Errorf("%s: default: %w", b.Name(), err)
	}
	return toStarlark(a.resolver.Get(a.ctx, key, goDef)), nil
}

// slider(key, label="", min=0, max=100, step=1, default=min, type=None)
func (a *accessors) slider(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		key, label                string
		lo, hi, step, def, typArg starlark.Value
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"key", &key,
		"label?", &label,
		"min?", &lo,
		"max?", &hi,
		"step?", &step,
		"default?", &def,
		"type?", &typArg,
	); err != nil {
		return nil, err
	}

	sa := params.SliderArgs{Key: key, Label: label}
	for _, n := range []struct {
		name string
		src  starlark.Value
		dst  *params.Number
	}{
		{"min", lo, &sa.Min},
		{"max", hi, &sa.Max},
		{"step", step, &sa.Step},
		{"default", def, &sa.Default},
	} {
		num, err := toNumber(b.Name(), n.name, n.src)
		if err != nil {
			return nil, err
		}
		*n.dst = num
	}

	if typArg != nil && typArg != starlark.None {
		s, ok := starlark.AsString(typArg)
		if !ok {
			return nil, fmt.Errorf("%s: type must be a string, got %s", b.Name(), typArg.Type())
		}
		typ, ok := params.ParseNumberType(s)
		if !ok {
			return nil, fmt.Errorf("%s: unknown type %q (want int or float)", b.Name(), s)
		}
		sa.Type = typ
	}

	return toStarlark(a.resolver.Slider(a.ctx, sa)), nil
}

// select(key, label="", options=None, discoveryQuery=None, default=None)
func (a *accessors) selectParam(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		key, label        string
		options, def      starlark.Value
		query, snakeQuery starlark.Value
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"key", &key,
		"label?", &label,
		"options?", &options,
		"discoveryQuery?", &query,
		"default?", &def,
		"discovery_query?", &snakeQuery,
	); err != nil {
		return nil, err
	}

	opts, err := toList(b.Name(), "options", options)
	if err != nil {
		return nil, err
	}
	goDef, err := fromStarlark(def)
	if err != nil {
		return nil, fmt.Errorf("%s: default: %w", b.Name(), err)
	}

	sa := params.SelectArgs{Key: key, Label: label, Options: opts, Default: goDef}
	for _, q := range []starlark.Value{query, snakeQuery} {
		if q == nil || q == starlark.None {
			continue
		}
		s, ok := starlark.AsString(q)
		if !ok {
			return nil, fmt.Errorf("%s: discoveryQuery must be a string, got %s", b.Name(), q.Type())
		}
		sa.DiscoveryQuery = s
	}

	return toStarlark(a.resolver.Select(a.ctx, sa)), nil
}

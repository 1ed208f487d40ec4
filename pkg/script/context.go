// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.starlark.net/starlark"
	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/pkg/fabric"
	"github.com/teradata-labs/sibridge/pkg/params"
	"github.com/teradata-labs/sibridge/pkg/sidechannel"
	"github.com/teradata-labs/sibridge/pkg/sqlresult"
	"github.com/teradata-labs/sibridge/pkg/visualization"
)

// ErrNoDataSource is reported by queries of a run without a data source.
var ErrNoDataSource = errors.New("no data source configured for this run")

// ChartRenderer converts a script's figure into a JSON-compatible payload.
type ChartRenderer interface {
	Render(figure starlark.Value) (interface{}, error)
}

// JSONRenderer is the default ChartRenderer. Strings holding valid JSON pass
// through untouched; other values are converted structurally.
type JSONRenderer struct{}

func (JSONRenderer) Render(figure starlark.Value) (interface{}, error) {
	if s, ok := figure.(starlark.String); ok && json.Valid([]byte(s)) {
		return json.RawMessage(s), nil
	}
	return fromStarlark(figure)
}

// Options configure an execution context.
type Options struct {
	Mode     params.Mode
	Values   map[string]interface{}
	Backend  fabric.ExecutionBackend
	Source   string
	Renderer ChartRenderer
	Style    *visualization.StyleConfig
	Stdout   io.Writer
	Logger   *zap.Logger
}

// Context is the SI object scripts interact with.
type Context struct {
	ctx       context.Context
	mode      params.Mode
	resolver  params.Resolver
	schema    *params.Schema
	backend   fabric.ExecutionBackend
	source    string
	renderer  ChartRenderer
	figures   *visualization.EChartsGenerator
	out       io.Writer
	logger    *zap.Logger
	accessors *accessors
	finalized bool
}

var _ starlark.HasAttrs = (*Context)(nil)

// NewContext creates the context for one run. The resolver strategy is fixed
// here by mode.
func NewContext(ctx context.Context, opts Options) (*Context, error) {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Renderer == nil {
		opts.Renderer = JSONRenderer{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Context{
		ctx:      ctx,
		mode:     opts.Mode,
		backend:  opts.Backend,
		source:   opts.Source,
		renderer: opts.Renderer,
		figures:  visualization.NewEChartsGenerator(opts.Style),
		out:      opts.Stdout,
		logger:   opts.Logger,
	}

	var options params.OptionSource
	if opts.Backend != nil {
		options = backendOptions{backend: opts.Backend}
	}
	resolver, err := params.NewResolver(opts.Mode, opts.Values, options, opts.Logger)
	if err != nil {
		return nil, err
	}
	c.resolver = resolver
	if d, ok := resolver.(*params.Declaring); ok {
		c.schema = d.Schema()
	}
	c.accessors = &accessors{ctx: ctx, resolver: resolver}
	return c, nil
}

// Mode returns the run mode.
func (c *Context) Mode() params.Mode { return c.mode }

// Schema returns the parameters declared so far; nil in execution mode.
func (c *Context) Schema() *params.Schema { return c.schema }

// Query executes sql and returns its visible result.
func (c *Context) Query(sql string) (sqlresult.VisibleResult, error) {
	if c.backend == nil {
		return sqlresult.Empty(), ErrNoDataSource
	}
	batch, err := c.backend.ExecuteBatch(c.ctx, sql)
	if err != nil {
		return sqlresult.Empty(), err
	}
	return sqlresult.Normalize(batch), nil
}

// Chart publishes a figure. It is a no-op in schema mode.
func (c *Context) Chart(figure starlark.Value) error {
	if c.mode != params.ModeExecution {
		return nil
	}
	payload, err := c.renderer.Render(figure)
	if err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return sidechannel.Encode(c.out, sidechannel.TagChart, payload)
}

// Finalize publishes the declared schema in schema mode. Only the first call
// has an effect.
func (c *Context) Finalize() error {
	if c.finalized {
		return nil
	}
	c.finalized = true
	if c.mode != params.ModeSchema {
		return nil
	}
	return sidechannel.Encode(c.out, sidechannel.TagSchema, c.schema)
}

func (c *Context) String() string        { return fmt.Sprintf("<SI mode=%s>", c.mode) }
func (c *Context) Type() string          { return "sibridge.context" }
func (c *Context) Freeze()               {}
func (c *Context) Truth() starlark.Bool  { return starlark.True }
func (c *Context) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", c.Type()) }

func (c *Context) Attr(name string) (starlark.Value, error) {
	switch name {
	case "params":
		return c.accessors, nil
	case "mode":
		return starlark.String(c.mode), nil
	case "data_source":
		if c.source == "" {
			return starlark.None, nil
		}
		return starlark.String(c.source), nil
	case "query":
		return starlark.NewBuiltin("query", c.queryBuiltin), nil
	case "chart":
		return starlark.NewBuiltin("chart", c.chartBuiltin), nil
	case "finalize":
		return starlark.NewBuiltin("finalize", c.finalizeBuiltin), nil
	case "figure":
		return starlark.NewBuiltin("figure", c.figureBuiltin), nil
	}
	return nil, nil
}

func (c *Context) AttrNames() []string {
	return []string{"chart", "data_source", "figure", "finalize", "mode", "params", "query"}
}

// queryBuiltin never fails the script: errors are written to the log stream
// and an empty row set is returned.
func (c *Context) queryBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var sql string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "sql", &sql); err != nil {
		return nil, err
	}
	result, err := c.Query(sql)
	if err != nil {
		c.logger.Debug("script query failed", zap.String("data_source", c.source), zap.Error(err))
		fmt.Fprintf(c.out, "Query error: %v\n", err)
		return NewRowSet(sqlresult.Empty()), nil
	}
	return NewRowSet(result), nil
}

func (c *Context) chartBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var figure starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "figure", &figure); err != nil {
		return nil, err
	}
	if err := c.Chart(figure); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.None, nil
}

// figureBuiltin builds an ECharts option dict from a row set. The result is
// an ordinary dict scripts may adjust before passing it to SI.chart.
func (c *Context) figureBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		rows       *RowSet
		kind       = "bar"
		x, title   string
		y          starlark.Value = starlark.None
		horizontal bool
		sortDesc   bool
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"rows", &rows,
		"kind?", &kind,
		"x?", &x,
		"y?", &y,
		"title?", &title,
		"horizontal?", &horizontal,
		"sort?", &sortDesc,
	); err != nil {
		return nil, err
	}

	chartType, err := visualization.ParseChartType(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	ys, err := toStrings(b.Name(), "y", y)
	if err != nil {
		return nil, err
	}
	config, err := c.figures.Generate(rows.Result(), visualization.FigureOptions{
		Type:       chartType,
		Title:      title,
		X:          x,
		Y:          ys,
		Horizontal: horizontal,
		SortDesc:   sortDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return toStarlark(config), nil
}

func (c *Context) finalizeBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	if err := c.Finalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.None, nil
}

// backendOptions answers discovery queries from the run's data source.
type backendOptions struct {
	backend fabric.ExecutionBackend
}

func (o backendOptions) FirstColumn(ctx context.Context, sql string) ([]interface{}, error) {
	batch, err := o.backend.ExecuteBatch(ctx, sql)
	if err != nil {
		return nil, err
	}
	v := sqlresult.Normalize(batch)
	if len(v.Columns) == 0 {
		return nil, nil
	}
	values, _ := v.Column(v.Columns[0])
	return values, nil
}

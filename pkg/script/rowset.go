// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package script

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/teradata-labs/sibridge/pkg/sqlresult"
)

// RowSet exposes a query's visible result to scripts. Indexing and iteration
// yield one dict per row with keys in column order; str() renders a table.
type RowSet struct {
	result sqlresult.VisibleResult
}

var (
	_ starlark.Indexable = (*RowSet)(nil)
	_ starlark.Sequence  = (*RowSet)(nil)
	_ starlark.HasAttrs  = (*RowSet)(nil)
)

// NewRowSet wraps a visible result.
func NewRowSet(v sqlresult.VisibleResult) *RowSet {
	return &RowSet{result: v}
}

// Result returns the wrapped visible result.
func (r *RowSet) Result() sqlresult.VisibleResult { return r.result }

func (r *RowSet) String() string        { return sqlresult.Render(r.result) }
func (r *RowSet) Type() string          { return "rowset" }
func (r *RowSet) Freeze()               {}
func (r *RowSet) Truth() starlark.Bool  { return len(r.result.Rows) > 0 }
func (r *RowSet) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: rowset") }
func (r *RowSet) Len() int              { return len(r.result.Rows) }

func (r *RowSet) Index(i int) starlark.Value {
	return rowDict(r.result.Rows[i])
}

func (r *RowSet) Iterate() starlark.Iterator {
	return &rowIterator{rs: r}
}

func (r *RowSet) Attr(name string) (starlark.Value, error) {
	switch name {
	case "columns":
		cols := make([]starlark.Value, len(r.result.Columns))
		for i, c := range r.result.Columns {
			cols[i] = starlark.String(c)
		}
		return starlark.NewList(cols), nil
	case "rows":
		rows := make([]starlark.Value, len(r.result.Rows))
		for i, row := range r.result.Rows {
			rows[i] = rowDict(row)
		}
		return starlark.NewList(rows), nil
	case "column":
		return starlark.NewBuiltin("column", r.column), nil
	}
	return nil, nil
}

func (r *RowSet) AttrNames() []string {
	return []string{"column", "columns", "rows"}
}

// column returns every row's value for one column.
func (r *RowSet) column(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	values, ok := r.result.Column(name)
	if !ok {
		return nil, fmt.Errorf("%s: no column %q", b.Name(), name)
	}
	elems := make([]starlark.Value, len(values))
	for i, v := range values {
		elems[i] = toStarlark(v)
	}
	return starlark.NewList(elems), nil
}

func rowDict(row sqlresult.Row) *starlark.Dict {
	cols := row.Columns()
	vals := row.Values()
	d := starlark.NewDict(len(cols))
	for i, c := range cols {
		_ = d.SetKey(starlark.String(c), toStarlark(vals[i]))
	}
	return d
}

type rowIterator struct {
	rs *RowSet
	i  int
}

func (it *rowIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.rs.result.Rows) {
		return false
	}
	*p = rowDict(it.rs.result.Rows[it.i])
	it.i++
	return true
}

func (it *rowIterator) Done() {}

// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package sqlresult

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/sibridge/pkg/fabric"
)

func record(kv ...interface{}) fabric.Record {
	rec := make(fabric.Record, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		rec = append(rec, fabric.Cell{Name: kv[i].(string), Value: kv[i+1]})
	}
	return rec
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		result  *fabric.QueryResult
		want    ShapeKind
		columns []string
	}{
		{
			name: "nil result",
			want: ShapeEmpty,
		},
		{
			name:   "mutation marker",
			result: &fabric.QueryResult{Mutation: &fabric.Mutation{AffectedRows: 2}},
			want:   ShapeMutation,
		},
		{
			name: "field metadata with no rows",
			result: &fabric.QueryResult{
				Columns: []fabric.Column{{Name: "a"}, {Name: "b"}},
			},
			want:    ShapeRowSet,
			columns: []string{"a", "b"},
		},
		{
			name: "rows without metadata",
			result: &fabric.QueryResult{
				Rows: []fabric.Record{record("x", 1, "y", 2)},
			},
			want:    ShapeRowSet,
			columns: []string{"x", "y"},
		},
		{
			name: "repeated column names",
			result: &fabric.QueryResult{
				Columns: []fabric.Column{{Name: "id"}, {Name: "id"}, {Name: "name"}},
			},
			want:    ShapeRowSet,
			columns: []string{"id", "name"},
		},
		{
			name:   "nothing at all",
			result: &fabric.QueryResult{},
			want:   ShapeEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape := Classify(tt.result)
			assert.Equal(t, tt.want, shape.Kind)
			if tt.columns != nil {
				assert.Equal(t, tt.columns, shape.Columns)
			}
		})
	}
}

func TestNormalize_LastStatementRowSet(t *testing.T) {
	batch := &fabric.BatchResult{Statements: []*fabric.QueryResult{
		{Mutation: &fabric.Mutation{}},
		{
			Columns: []fabric.Column{{Name: "region"}, {Name: "total"}},
			Rows: []fabric.Record{
				record("region", "East", "total", 15),
				record("region", "West", "total", 20),
				record("region", "North", "total", 0),
			},
		},
	}}

	v := Normalize(batch)
	assert.Equal(t, []string{"region", "total"}, v.Columns)
	require.Len(t, v.Rows, 3)
	for _, row := range v.Rows {
		assert.Equal(t, v.Columns, row.Columns())
	}
	region, ok := v.Rows[1].Get("region")
	require.True(t, ok)
	assert.Equal(t, "West", region)

	totals, ok := v.Column("total")
	require.True(t, ok)
	assert.Equal(t, []interface{}{15, 20, 0}, totals)
}

func TestNormalize_Mutation(t *testing.T) {
	batch := &fabric.BatchResult{Statements: []*fabric.QueryResult{{
		Mutation: &fabric.Mutation{
			AffectedRows: 4,
			Info:         "Rows matched: 4  Changed: 4  Warnings: 0",
		},
	}}}

	v := Normalize(batch)
	assert.Equal(t, MutationColumns, v.Columns)
	require.Len(t, v.Rows, 1)

	row := v.Rows[0].Map()
	assert.Equal(t, "Success", row["status"])
	assert.Equal(t, int64(4), row["affected_rows"])
	assert.Equal(t, int64(0), row["insert_id"])
	assert.Equal(t, 0, row["warning_count"])
	assert.Equal(t, "Rows matched: 4  Changed: 4  Warnings: 0", row["message"])
}

func TestNormalize_Empty(t *testing.T) {
	for name, batch := range map[string]*fabric.BatchResult{
		"nil batch":         nil,
		"no statements":     {},
		"empty last result": {Statements: []*fabric.QueryResult{{}}},
	} {
		t.Run(name, func(t *testing.T) {
			v := Normalize(batch)
			assert.True(t, v.IsEmpty())
			data, err := json.Marshal(v)
			require.NoError(t, err)
			assert.JSONEq(t, `{"columns":[],"rows":[]}`, string(data))
		})
	}
}

func TestNormalize_MissingCellsAreNil(t *testing.T) {
	v := NormalizeResult(&fabric.QueryResult{
		Columns: []fabric.Column{{Name: "a"}, {Name: "b"}},
		Rows:    []fabric.Record{record("a", 1)},
	})
	b, ok := v.Rows[0].Get("b")
	assert.True(t, ok)
	assert.Nil(t, b)
}

func TestRow_MarshalJSONKeepsColumnOrder(t *testing.T) {
	v := NormalizeResult(&fabric.QueryResult{
		Columns: []fabric.Column{{Name: "zeta"}, {Name: "alpha"}},
		Rows:    []fabric.Record{record("zeta", "z", "alpha", 1)},
	})

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"columns":["zeta","alpha"],"rows":[{"zeta":"z","alpha":1}]}`, string(data))

	var back VisibleResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"zeta", "alpha"}, back.Columns)
	alpha, _ := back.Rows[0].Get("alpha")
	assert.Equal(t, float64(1), alpha)
}

func TestNewRow_LengthMismatch(t *testing.T) {
	_, err := NewRow([]string{"a", "b"}, []interface{}{1})
	assert.Error(t, err)
}

func TestNormalize_SQLiteBatch(t *testing.T) {
	ctx := context.Background()
	backend, err := fabric.NewSQLBackend(ctx, fabric.SourceConfig{
		Name: "local",
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "local.db"),
	}, nil)
	require.NoError(t, err)
	defer backend.Close()

	batch, err := backend.ExecuteBatch(ctx, `
		CREATE TABLE t (id INTEGER, name TEXT);
		INSERT INTO t VALUES (1, 'a'), (2, 'b');
		SELECT id, name FROM t ORDER BY id;
	`)
	require.NoError(t, err)

	v := Normalize(batch)
	assert.Equal(t, []string{"id", "name"}, v.Columns)
	require.Len(t, v.Rows, 2)
	name, _ := v.Rows[1].Get("name")
	assert.Equal(t, "b", name)

	batch, err = backend.ExecuteBatch(ctx, "UPDATE t SET name = 'c'")
	require.NoError(t, err)
	v = Normalize(batch)
	assert.Equal(t, MutationColumns, v.Columns)
	affected, _ := v.Rows[0].Get("affected_rows")
	assert.Equal(t, int64(2), affected)
}

func TestRender(t *testing.T) {
	v := NormalizeResult(&fabric.QueryResult{
		Columns: []fabric.Column{{Name: "region"}, {Name: "total"}},
		Rows: []fabric.Record{
			record("region", "East", "total", int64(15)),
			record("region", nil, "total", 2.5),
		},
	})

	out := Render(v)
	assert.Contains(t, out, "region")
	assert.Contains(t, out, "East")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "2.5")
	assert.True(t, strings.HasSuffix(out, "(2 rows)"))

	assert.Equal(t, "(0 rows)", Render(Empty()))
}

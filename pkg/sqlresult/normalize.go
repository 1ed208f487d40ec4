// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package sqlresult collapses the outcome of a (possibly multi-statement) SQL
// batch into a single visible table.
//
// Only the last statement of a batch is visible; earlier statements are
// assumed to run for effect. A final mutation becomes a one-row status table.
package sqlresult

import (
	"github.com/teradata-labs/sibridge/pkg/fabric"
)

// StatusSuccess is the status reported for mutation outcomes. Failing
// statements surface as driver errors and never reach the normalizer.
const StatusSuccess = "Success"

// MutationColumns are the fixed columns of a synthesized mutation row.
var MutationColumns = []string{"status", "message", "affected_rows", "insert_id", "warning_count"}

// ShapeKind tags the classification of a statement outcome.
type ShapeKind int

const (
	// ShapeEmpty is an outcome with no fields, no rows and no mutation marker.
	ShapeEmpty ShapeKind = iota
	// ShapeRowSet is a row-producing outcome.
	ShapeRowSet
	// ShapeMutation is a non-row-producing outcome.
	ShapeMutation
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeEmpty:
		return "empty"
	case ShapeRowSet:
		return "rowset"
	case ShapeMutation:
		return "mutation"
	default:
		return "unknown"
	}
}

// Shape is the tagged classification of one statement outcome. Columns and
// Rows are set for ShapeRowSet, Mutation for ShapeMutation.
type Shape struct {
	Kind     ShapeKind
	Columns  []string
	Rows     []fabric.Record
	Mutation *fabric.Mutation
}

// Classify decides the shape of one statement outcome. Field metadata wins
// over row inspection; rows without metadata take their columns from the
// first row.
func Classify(r *fabric.QueryResult) Shape {
	switch {
	case r == nil:
		return Shape{Kind: ShapeEmpty}
	case r.Mutation != nil:
		return Shape{Kind: ShapeMutation, Mutation: r.Mutation}
	case len(r.Columns) > 0:
		names := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			names[i] = c.Name
		}
		return Shape{Kind: ShapeRowSet, Columns: distinct(names), Rows: r.Rows}
	case len(r.Rows) > 0:
		return Shape{Kind: ShapeRowSet, Columns: distinct(r.Rows[0].Names()), Rows: r.Rows}
	default:
		return Shape{Kind: ShapeEmpty}
	}
}

// Normalize returns the visible result of a batch: the last statement's
// outcome. An empty or nil batch yields an empty result.
func Normalize(batch *fabric.BatchResult) VisibleResult {
	return FromShape(Classify(batch.Last()))
}

// NormalizeResult is Normalize for a single statement outcome.
func NormalizeResult(r *fabric.QueryResult) VisibleResult {
	return FromShape(Classify(r))
}

// FromShape encodes a classified outcome as a visible result.
func FromShape(s Shape) VisibleResult {
	switch s.Kind {
	case ShapeMutation:
		m := s.Mutation
		return VisibleResult{
			Columns: MutationColumns,
			Rows: []Row{{
				columns: MutationColumns,
				values:  []interface{}{StatusSuccess, m.Info, m.AffectedRows, m.InsertID, m.WarningCount},
			}},
		}

	case ShapeRowSet:
		// columns is shared by every row.
		columns := s.Columns
		rows := make([]Row, len(s.Rows))
		for i, rec := range s.Rows {
			rows[i] = Row{columns: columns, values: project(rec, columns)}
		}
		return VisibleResult{Columns: columns, Rows: rows}

	default:
		return Empty()
	}
}

// project lays a record's values out in column order. Names absent from the
// record become nil; for repeated names the last value wins.
func project(rec fabric.Record, columns []string) []interface{} {
	byName := make(map[string]interface{}, len(rec))
	for _, c := range rec {
		byName[c.Name] = c.Value
	}
	values := make([]interface{}, len(columns))
	for i, name := range columns {
		values[i] = byName[name]
	}
	return values
}

// distinct drops repeated names, keeping first positions.
func distinct(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

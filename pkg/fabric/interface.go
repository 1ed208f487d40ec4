// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fabric provides the data source executors that scripts and the
// query API run SQL against.
package fabric

import (
	"context"
	"errors"
)

var (
	// ErrUnknownSource is returned when a data source handle is not configured.
	ErrUnknownSource = errors.New("unknown data source")

	// ErrUnsupportedType is returned when no factory is registered for a source type.
	ErrUnsupportedType = errors.New("unsupported data source type")
)

// ExecutionBackend executes SQL against one configured data source.
//
// Implementations must be safe for concurrent use; a single backend is shared
// by every request that names its handle.
type ExecutionBackend interface {
	// Name returns the data source handle this backend serves.
	Name() string

	// ExecuteQuery executes a single statement.
	ExecuteQuery(ctx context.Context, query string) (*QueryResult, error)

	// ExecuteBatch splits sql into statements and executes them in order on
	// one connection, returning one outcome per statement. Execution stops at
	// the first failing statement and that error is returned.
	ExecuteBatch(ctx context.Context, sql string) (*BatchResult, error)

	// Ping checks backend connectivity and health.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// QueryResult is the outcome of one statement: either a row set or a
// mutation outcome.
type QueryResult struct {
	// Statement is the SQL text that produced this outcome.
	Statement string

	// Columns is the driver's field metadata. Nil when the driver reported none.
	Columns []Column

	// Rows for row-producing statements, in driver order.
	Rows []Record

	// RowCount is len(Rows).
	RowCount int

	// Truncated is set when Rows was cut at the backend row limit.
	Truncated bool

	// Mutation is set for statements that do not produce rows.
	Mutation *Mutation

	// ExecutionStats tracks execution metrics
	ExecutionStats ExecutionStats
}

// BatchResult holds the outcomes of a multi-statement batch in execution order.
type BatchResult struct {
	Statements []*QueryResult

	ExecutionStats ExecutionStats
}

// Last returns the final statement outcome, or nil for an empty batch.
func (b *BatchResult) Last() *QueryResult {
	if b == nil || len(b.Statements) == 0 {
		return nil
	}
	return b.Statements[len(b.Statements)-1]
}

// Mutation describes the outcome of a statement that produced no rows.
type Mutation struct {
	AffectedRows int64
	InsertID     int64
	Info         string
	WarningCount int
}

// Column represents a column in tabular results.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Cell is one named value of a record.
type Cell struct {
	Name  string
	Value interface{}
}

// Record is one result row; cells are in column order.
type Record []Cell

// Get returns the value stored under name.
func (r Record) Get(name string) (interface{}, bool) {
	for _, c := range r {
		if c.Name == name {
			return c.Value, true
		}
	}
	return nil, false
}

// Names returns the cell names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, c := range r {
		names[i] = c.Name
	}
	return names
}

// ExecutionStats tracks execution metrics.
type ExecutionStats struct {
	// Duration in milliseconds
	DurationMs int64

	// RowsAffected for write operations
	RowsAffected int64
}

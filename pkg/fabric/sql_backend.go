// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package fabric

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	// SQL drivers
	_ "github.com/go-sql-driver/mysql" // mysql
	_ "github.com/lib/pq"              // postgres

	"github.com/teradata-labs/sibridge/internal/sqlitedriver"
)

// maxResultRows is the safety limit for query results to prevent OOM.
const maxResultRows = 10000

// Compile-time interface check
var _ ExecutionBackend = (*SQLBackend)(nil)

// SQLBackend executes SQL through database/sql for postgres, mysql and sqlite.
type SQLBackend struct {
	db     *sql.DB
	name   string
	typ    string // postgres, mysql, sqlite
	logger *zap.Logger
}

// NewSQLBackend opens a database/sql backend and verifies connectivity.
func NewSQLBackend(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (*SQLBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("data source %s: dsn is required", cfg.Name)
	}

	driver, dsn := cfg.Type, cfg.DSN
	if driver == "sqlite" {
		driver = "sqlite3"
		dsn = sqlitedriver.WithBusyTimeout(dsn, sqlitedriver.DefaultBusyTimeout)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		// Don't wrap the original error as it may contain the DSN with credentials
		return nil, fmt.Errorf("failed to open data source %s: driver %s rejected the dsn", cfg.Name, driver)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}

	if err := db.PingContext(ctx); err != nil {
		// #nosec G104 -- best-effort cleanup on initialization failure
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping data source %s: %w", cfg.Name, err)
	}

	logger.Debug("sql data source opened",
		zap.String("name", cfg.Name),
		zap.String("type", cfg.Type),
	)

	return &SQLBackend{
		db:     db,
		name:   cfg.Name,
		typ:    cfg.Type,
		logger: logger,
	}, nil
}

func (b *SQLBackend) Name() string {
	return b.name
}

// ExecuteQuery executes a single statement on a pooled connection.
func (b *SQLBackend) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return b.execute(ctx, conn, strings.TrimSpace(query))
}

// ExecuteBatch executes every statement of sql on one pinned connection so
// session state (temporary tables, variables) carries across statements.
func (b *SQLBackend) ExecuteBatch(ctx context.Context, sql string) (*BatchResult, error) {
	start := time.Now()
	stmts := splitStatements(sql, b.typ == "mysql")

	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	batch := &BatchResult{Statements: make([]*QueryResult, 0, len(stmts))}
	for i, stmt := range stmts {
		result, err := b.execute(ctx, conn, stmt)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i+1, err)
		}
		batch.Statements = append(batch.Statements, result)
		batch.ExecutionStats.RowsAffected += result.ExecutionStats.RowsAffected
	}
	batch.ExecutionStats.DurationMs = time.Since(start).Milliseconds()
	return batch, nil
}

func (b *SQLBackend) execute(ctx context.Context, conn *sql.Conn, stmt string) (*QueryResult, error) {
	start := time.Now()
	if returnsRows(stmt) {
		return b.executeSelect(ctx, conn, stmt, start)
	}
	return b.executeModify(ctx, conn, stmt, start)
}

func (b *SQLBackend) executeSelect(ctx context.Context, conn *sql.Conn, query string, start time.Time) (*QueryResult, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	cols := make([]Column, len(columnTypes))
	for i, ct := range columnTypes {
		nullable, _ := ct.Nullable()
		cols[i] = Column{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable,
		}
	}

	var truncated bool
	var resultRows []Record
	for rows.Next() {
		if len(resultRows) >= maxResultRows {
			b.logger.Warn("query result truncated at row limit",
				zap.String("data_source", b.name),
				zap.Int("limit", maxResultRows),
				zap.String("query_prefix", truncateQuery(query, 100)),
			)
			truncated = true
			break
		}

		values := make([]interface{}, len(cols))
		valuePtrs := make([]interface{}, len(cols))
		for i := range cols {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		record := make(Record, len(cols))
		for i, col := range cols {
			val := values[i]
			// Convert []byte to string for text columns
			if raw, ok := val.([]byte); ok {
				val = string(raw)
			}
			record[i] = Cell{Name: col.Name, Value: val}
		}
		resultRows = append(resultRows, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &QueryResult{
		Statement: query,
		Columns:   cols,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: truncated,
		ExecutionStats: ExecutionStats{
			DurationMs: time.Since(start).Milliseconds(),
		},
	}, nil
}

func (b *SQLBackend) executeModify(ctx context.Context, conn *sql.Conn, query string, start time.Time) (*QueryResult, error) {
	result, err := conn.ExecContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	// Drivers that cannot report these (lib/pq has no LastInsertId) leave them at zero.
	rowsAffected, _ := result.RowsAffected()
	insertID, _ := result.LastInsertId()

	return &QueryResult{
		Statement: query,
		Mutation: &Mutation{
			AffectedRows: rowsAffected,
			InsertID:     insertID,
			Info:         fmt.Sprintf("Query executed successfully. Rows affected: %d", rowsAffected),
		},
		ExecutionStats: ExecutionStats{
			DurationMs:   time.Since(start).Milliseconds(),
			RowsAffected: rowsAffected,
		},
	}, nil
}

func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *SQLBackend) Close() error {
	b.logger.Debug("sql data source closed", zap.String("name", b.name))
	return b.db.Close()
}

// truncateQuery returns at most maxLen characters of the query for logging.
func truncateQuery(query string, maxLen int) string {
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}

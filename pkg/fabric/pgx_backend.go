// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package fabric

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/internal/pgxdriver"
)

// Compile-time interface check
var _ ExecutionBackend = (*PgxBackend)(nil)

// PgxBackend executes SQL against PostgreSQL through a native pgxpool.
type PgxBackend struct {
	pool   *pgxpool.Pool
	name   string
	logger *zap.Logger
}

// NewPgxBackend creates a pgxpool-backed data source and verifies connectivity.
func NewPgxBackend(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (*PgxBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("data source %s: dsn is required", cfg.Name)
	}

	pool, err := pgxdriver.NewPool(ctx, pgxdriver.Config{
		DSN:      cfg.DSN,
		Schema:   cfg.Schema,
		MaxConns: int32(cfg.MaxConnections),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to data source %s: %w", cfg.Name, err)
	}

	logger.Debug("pgx data source connected",
		zap.String("name", cfg.Name),
		zap.Int32("max_conns", pool.Config().MaxConns),
		zap.String("schema", cfg.Schema),
	)

	return &PgxBackend{pool: pool, name: cfg.Name, logger: logger}, nil
}

func (b *PgxBackend) Name() string {
	return b.name
}

func (b *PgxBackend) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	return b.execute(ctx, conn.Conn(), strings.TrimSpace(query))
}

func (b *PgxBackend) ExecuteBatch(ctx context.Context, sql string) (*BatchResult, error) {
	start := time.Now()
	stmts := SplitStatements(sql)

	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	batch := &BatchResult{Statements: make([]*QueryResult, 0, len(stmts))}
	for i, stmt := range stmts {
		result, err := b.execute(ctx, conn.Conn(), stmt)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i+1, err)
		}
		batch.Statements = append(batch.Statements, result)
		batch.ExecutionStats.RowsAffected += result.ExecutionStats.RowsAffected
	}
	batch.ExecutionStats.DurationMs = time.Since(start).Milliseconds()
	return batch, nil
}

func (b *PgxBackend) execute(ctx context.Context, conn *pgx.Conn, stmt string) (*QueryResult, error) {
	start := time.Now()
	if returnsRows(stmt) {
		return b.executeSelect(ctx, conn, stmt, start)
	}
	return b.executeModify(ctx, conn, stmt, start)
}

func (b *PgxBackend) executeSelect(ctx context.Context, conn *pgx.Conn, query string, start time.Time) (*QueryResult, error) {
	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	if len(fieldDescs) == 0 {
		// A data-modifying WITH query without RETURNING has no row description.
		for rows.Next() {
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		return mutationResult(query, rows.CommandTag(), start), nil
	}
	cols := make([]Column, len(fieldDescs))
	for i, fd := range fieldDescs {
		cols[i] = Column{
			Name:     fd.Name,
			Type:     fmt.Sprintf("oid:%d", fd.DataTypeOID),
			Nullable: true,
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
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		record := make(Record, len(cols))
		for i, col := range cols {
			record[i] = Cell{Name: col.Name, Value: values[i]}
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

func (b *PgxBackend) executeModify(ctx context.Context, conn *pgx.Conn, query string, start time.Time) (*QueryResult, error) {
	tag, err := conn.Exec(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return mutationResult(query, tag, start), nil
}

func mutationResult(query string, tag pgconn.CommandTag, start time.Time) *QueryResult {
	return &QueryResult{
		Statement: query,
		Mutation: &Mutation{
			AffectedRows: tag.RowsAffected(),
			Info:         tag.String(),
		},
		ExecutionStats: ExecutionStats{
			DurationMs:   time.Since(start).Milliseconds(),
			RowsAffected: tag.RowsAffected(),
		},
	}
}

func (b *PgxBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *PgxBackend) Close() error {
	b.pool.Close()
	b.logger.Debug("pgx data source closed", zap.String("name", b.name))
	return nil
}

// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/teradata-labs/sibridge/internal/sqlitedriver"
)

// DefaultHistoryLimit is how many executions are kept per schedule.
const DefaultHistoryLimit = 100

// CompressionThreshold is the chart size in bytes above which charts are
// stored zstd-compressed.
const CompressionThreshold = 1024

// Store persists execution history and per-schedule stats to SQLite.
// Uses WAL mode for concurrent read/write access.
type Store struct {
	db           *sql.DB
	logger       *zap.Logger
	historyLimit int

	// reusable, thread-safe
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewStore opens (creating if needed) the scheduler database at dbPath.
// historyLimit <= 0 selects DefaultHistoryLimit.
func NewStore(ctx context.Context, dbPath string, historyLimit int, logger *zap.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := sqlitedriver.WithBusyTimeout(fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL", dbPath), sqlitedriver.DefaultBusyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	store := &Store{db: db, logger: logger, historyLimit: historyLimit, encoder: encoder, decoder: decoder}
	if err := store.initSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedule_stats (
		schedule TEXT PRIMARY KEY,
		total INTEGER NOT NULL DEFAULT 0,
		successful INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		last_status TEXT,
		last_error TEXT,
		last_run_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS schedule_executions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		schedule TEXT NOT NULL,
		run_id TEXT,
		triggered_by TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		chart BLOB,
		chart_compressed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_executions_schedule ON schedule_executions(schedule, seq);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// RecordExecution stores exec, folds it into the schedule's stats and prunes
// history beyond the retention limit.
func (s *Store) RecordExecution(ctx context.Context, exec *Execution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	chart, compressed := s.encodeChart(exec.Chart)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedule_executions (id, schedule, run_id, triggered_by, status, error, started_at, duration_ms, chart, chart_compressed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.Schedule, exec.RunID, string(exec.Trigger), string(exec.Status), exec.Error,
		exec.StartedAt.UnixMilli(), exec.DurationMs, chart, compressed)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}

	var ok, failed, skipped int
	switch exec.Status {
	case StatusSuccess:
		ok = 1
	case StatusFailed:
		failed = 1
	case StatusSkipped:
		skipped = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedule_stats (schedule, total, successful, failed, skipped, last_status, last_error, last_run_at)
		VALUES (?, 1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(schedule) DO UPDATE SET
			total = total + 1,
			successful = successful + excluded.successful,
			failed = failed + excluded.failed,
			skipped = skipped + excluded.skipped,
			last_status = excluded.last_status,
			last_error = excluded.last_error,
			last_run_at = excluded.last_run_at`,
		exec.Schedule, ok, failed, skipped, string(exec.Status), exec.Error, exec.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM schedule_executions
		WHERE schedule = ? AND seq NOT IN (
			SELECT seq FROM schedule_executions WHERE schedule = ? ORDER BY seq DESC LIMIT ?
		)`, exec.Schedule, exec.Schedule, s.historyLimit)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	return tx.Commit()
}

// Stats returns the aggregate stats of schedule. A schedule that never ran
// has zero stats.
func (s *Store) Stats(ctx context.Context, schedule string) (Stats, error) {
	var (
		st        Stats
		status    sql.NullString
		lastError sql.NullString
		lastRun   int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT total, successful, failed, skipped, last_status, last_error, last_run_at
		FROM schedule_stats WHERE schedule = ?`, schedule).
		Scan(&st.Total, &st.Successful, &st.Failed, &st.Skipped, &status, &lastError, &lastRun)
	if err == sql.ErrNoRows {
		return Stats{}, nil
	}
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	st.LastStatus = Status(status.String)
	st.LastError = lastError.String
	if lastRun > 0 {
		st.LastRunAt = time.UnixMilli(lastRun)
	}
	return st, nil
}

// History returns the most recent executions of schedule, newest first. An
// empty schedule name returns executions of every schedule.
func (s *Store) History(ctx context.Context, schedule string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	query := `
		SELECT id, schedule, run_id, triggered_by, status, error, started_at, duration_ms, chart, chart_compressed
		FROM schedule_executions`
	args := []interface{}{}
	if schedule != "" {
		query += ` WHERE schedule = ?`
		args = append(args, schedule)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var (
			e                     Execution
			runID, errMsg         sql.NullString
			trigger, status       string
			startedAt, durationMs int64
			chart                 []byte
			compressed            bool
		)
		if err := rows.Scan(&e.ID, &e.Schedule, &runID, &trigger, &status, &errMsg, &startedAt, &durationMs, &chart, &compressed); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.RunID = runID.String
		e.Trigger = Trigger(trigger)
		e.Status = Status(status)
		e.Error = errMsg.String
		e.StartedAt = time.UnixMilli(startedAt)
		e.DurationMs = durationMs
		if len(chart) > 0 {
			if e.Chart, err = s.decodeChart(chart, compressed); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// encodeChart returns the stored form of chart and whether it is compressed.
// Small charts, and charts that do not shrink, are stored as-is.
func (s *Store) encodeChart(chart []byte) (interface{}, bool) {
	if len(chart) == 0 {
		return nil, false
	}
	if len(chart) >= CompressionThreshold {
		if compressed := s.encoder.EncodeAll(chart, nil); len(compressed) < len(chart) {
			return compressed, true
		}
	}
	return chart, false
}

func (s *Store) decodeChart(stored []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return stored, nil
	}
	chart, err := s.decoder.DecodeAll(stored, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress chart: %w", err)
	}
	return chart, nil
}

// Close closes the database.
func (s *Store) Close() error {
	_ = s.encoder.Close()
	s.decoder.Close()
	return s.db.Close()
}

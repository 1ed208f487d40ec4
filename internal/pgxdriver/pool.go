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
package pgxdriver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidDSN is returned when the connection string does not parse. The
// parser's own error is not wrapped because it may echo credentials.
var ErrInvalidDSN = errors.New("connection string invalid")

// Config describes a pool. Zero durations and counts take the defaults.
type Config struct {
	DSN string

	// Schema, when set, becomes the search_path of every connection.
	Schema string

	MaxConns          int32
	MinConns          int32
	MaxConnIdleTime   time.Duration
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewPool creates a pgxpool.Pool and verifies connectivity.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres configuration requires a dsn")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, ErrInvalidDSN
	}
	applyPoolConfig(poolCfg, cfg)

	if cfg.Schema != "" {
		schema := cfg.Schema
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// applyPoolConfig maps cfg onto poolCfg, filling defaults.
func applyPoolConfig(poolCfg *pgxpool.Config, cfg Config) {
	poolCfg.MaxConns = orDefault(cfg.MaxConns, 10)
	poolCfg.MinConns = orDefault(cfg.MinConns, 0)
	poolCfg.MaxConnIdleTime = orDefault(cfg.MaxConnIdleTime, 5*time.Minute)
	poolCfg.MaxConnLifetime = orDefault(cfg.MaxConnLifetime, 30*time.Minute)
	poolCfg.HealthCheckPeriod = orDefault(cfg.HealthCheckPeriod, 30*time.Second)

	if poolCfg.MinConns > poolCfg.MaxConns {
		poolCfg.MinConns = poolCfg.MaxConns
	}

	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
}

func orDefault[T int32 | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

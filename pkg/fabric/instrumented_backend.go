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
package fabric

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	backendStatements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sibridge_datasource_batches_total",
			Help: "SQL batches executed per data source and status",
		},
		[]string{"source", "status"},
	)

	backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sibridge_datasource_batch_duration_seconds",
			Help:    "SQL batch execution time per data source",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	backendRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sibridge_datasource_rows_total",
			Help: "Rows returned by the last statement of each batch",
		},
		[]string{"source"},
	)

	circuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sibridge_datasource_circuit_state",
			Help: "Circuit breaker state per data source (0 closed, 1 open, 2 half-open)",
		},
		[]string{"source"},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers the data source metrics with registry. Only the
// first call has an effect.
func RegisterMetrics(registry prometheus.Registerer) {
	registerOnce.Do(func() {
		registry.MustRegister(backendStatements, backendDuration, backendRows, circuitState)
	})
}

// recordCircuitState is the OnStateChange hook the catalog installs.
func recordCircuitState(source string, _, to CircuitState) {
	circuitState.WithLabelValues(source).Set(float64(to))
}

// InstrumentedBackend wraps an ExecutionBackend with metrics and a circuit
// breaker. It is what the catalog hands out for every opened data source.
type InstrumentedBackend struct {
	source  string
	backend ExecutionBackend
	breaker *CircuitBreaker
}

// NewInstrumentedBackend wraps backend for the data source named source.
// breaker may be nil.
func NewInstrumentedBackend(source string, backend ExecutionBackend, breaker *CircuitBreaker) *InstrumentedBackend {
	return &InstrumentedBackend{source: source, backend: backend, breaker: breaker}
}

// Name returns the underlying backend name.
func (ib *InstrumentedBackend) Name() string {
	return ib.backend.Name()
}

// Unwrap returns the wrapped backend.
func (ib *InstrumentedBackend) Unwrap() ExecutionBackend {
	return ib.backend
}

// ExecuteQuery runs one statement.
func (ib *InstrumentedBackend) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	var result *QueryResult
	err := ib.guard(func() error {
		var err error
		result, err = ib.backend.ExecuteQuery(ctx, query)
		return err
	})
	if err == nil {
		ib.observeRows(result)
	}
	return result, err
}

// ExecuteBatch runs a multi-statement batch.
func (ib *InstrumentedBackend) ExecuteBatch(ctx context.Context, sql string) (*BatchResult, error) {
	var batch *BatchResult
	err := ib.guard(func() error {
		var err error
		batch, err = ib.backend.ExecuteBatch(ctx, sql)
		return err
	})
	if err == nil {
		ib.observeRows(batch.Last())
	}
	return batch, err
}

// Ping checks connectivity. It bypasses the breaker so a health check can
// always reach the data source.
func (ib *InstrumentedBackend) Ping(ctx context.Context) error {
	return ib.backend.Ping(ctx)
}

// Close closes the wrapped backend.
func (ib *InstrumentedBackend) Close() error {
	return ib.backend.Close()
}

func (ib *InstrumentedBackend) guard(op func() error) error {
	start := time.Now()
	var err error
	if ib.breaker != nil {
		err = ib.breaker.Execute(op)
	} else {
		err = op()
	}
	backendDuration.WithLabelValues(ib.source).Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = ClassifyError(err)
	}
	backendStatements.WithLabelValues(ib.source, status).Inc()
	return err
}

func (ib *InstrumentedBackend) observeRows(r *QueryResult) {
	if r != nil && r.Mutation == nil {
		backendRows.WithLabelValues(ib.source).Add(float64(len(r.Rows)))
	}
}

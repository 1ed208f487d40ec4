// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sibridge_runs_total",
			Help: "Script runs by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sibridge_run_duration_seconds",
			Help:    "Wall-clock duration of script runs",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)

	runsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sibridge_runs_in_flight",
			Help: "Runner processes currently alive",
		},
	)

	artifactDecodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sibridge_artifact_decode_failures_total",
			Help: "Side-channel artifacts dropped because their payload did not parse",
		},
		[]string{"tag"},
	)

	duplicateCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sibridge_duplicate_completions_total",
			Help: "Result deliveries suppressed because the run had already completed",
		},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers the orchestrator metrics with registry. Only the
// first call has an effect.
func RegisterMetrics(registry prometheus.Registerer) {
	registerOnce.Do(func() {
		registry.MustRegister(
			runsTotal,
			runDuration,
			runsInFlight,
			artifactDecodeFailures,
			duplicateCompletions,
		)
	})
}

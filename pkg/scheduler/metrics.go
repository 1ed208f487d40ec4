// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package scheduler

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sibridge_scheduled_executions_total",
			Help: "Scheduled executions by schedule, trigger and status",
		},
		[]string{"schedule", "trigger", "status"},
	)

	schedulesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sibridge_schedules_active",
			Help: "Enabled schedules registered with the cron engine",
		},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers the scheduler metrics with registry. Only the
// first call has an effect.
func RegisterMetrics(registry prometheus.Registerer) {
	registerOnce.Do(func() {
		registry.MustRegister(executionsTotal, schedulesActive)
	})
}

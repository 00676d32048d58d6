// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("modeler.workflow")

var (
	// phaseExecutionsTotal counts phase executions by state and result.
	phaseExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modeler",
		Subsystem: "workflow",
		Name:      "phase_executions_total",
		Help:      "Total phase executions by state and result",
	}, []string{"state", "result"})

	// phaseDuration tracks phase latency by state.
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "modeler",
		Subsystem: "workflow",
		Name:      "phase_duration_seconds",
		Help:      "Phase duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"state"})

	// cyclesTotal counts finished cycles by outcome.
	cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modeler",
		Subsystem: "workflow",
		Name:      "cycles_total",
		Help:      "Total finished cycles by outcome",
	}, []string{"outcome"})

	// revisionsTotal counts revision requests.
	revisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "modeler",
		Subsystem: "workflow",
		Name:      "revisions_total",
		Help:      "Total revision requests",
	})
)

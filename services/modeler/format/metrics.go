// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package format

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// formatRunsTotal counts formatter runs by mode.
	// mode is "structural" when the class passes ran, "cleanup" otherwise.
	formatRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modeler",
		Subsystem: "format",
		Name:      "runs_total",
		Help:      "Total formatter runs by mode",
	}, []string{"mode"})

	// formatDuration tracks formatter latency.
	formatDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "modeler",
		Subsystem: "format",
		Name:      "duration_seconds",
		Help:      "Formatter duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mutate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Anchor labels for insertion metrics.
const (
	anchorReference  = "reference"
	anchorLastMethod = "last_method"
	anchorLastMember = "last_member"
	anchorBodyOpen   = "body_open"
	anchorFallback   = "fallback"
)

var (
	// insertionsTotal counts member insertions by operation and anchor.
	insertionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modeler",
		Subsystem: "mutate",
		Name:      "insertions_total",
		Help:      "Total member insertions by operation and anchor",
	}, []string{"operation", "anchor"})

	// generatedFilesTotal counts generated files by outcome.
	generatedFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modeler",
		Subsystem: "mutate",
		Name:      "generated_files_total",
		Help:      "Total generated files by outcome",
	}, []string{"outcome"})

	// generateDuration tracks batch generation latency.
	generateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "modeler",
		Subsystem: "mutate",
		Name:      "generate_duration_seconds",
		Help:      "Batch generation duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

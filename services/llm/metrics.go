// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modeler",
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Total LLM calls by provider and outcome",
	}, []string{"provider", "outcome"})

	llmRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "modeler",
		Subsystem: "llm",
		Name:      "retries_total",
		Help:      "Total LLM call retries by provider",
	}, []string{"provider"})

	llmDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "modeler",
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "LLM call duration including retries",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider"})
)

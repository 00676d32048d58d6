// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package staging

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments are created on first use, after telemetry.Setup has run.
var (
	beginTotal     metric.Int64Counter
	commitTotal    metric.Int64Counter
	rollbackTotal  metric.Int64Counter
	commitDuration metric.Float64Histogram
	filesApplied   metric.Int64Histogram
	activeGauge    metric.Int64UpDownCounter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.Meter("modeler.staging")
		var err error

		if beginTotal, err = meter.Int64Counter("modeler_staging_begin_total",
			metric.WithDescription("Total number of apply transactions started")); err != nil {
			metricsErr = err
			return
		}
		if commitTotal, err = meter.Int64Counter("modeler_staging_commit_total",
			metric.WithDescription("Total number of apply commits")); err != nil {
			metricsErr = err
			return
		}
		if rollbackTotal, err = meter.Int64Counter("modeler_staging_rollback_total",
			metric.WithDescription("Total number of apply rollbacks")); err != nil {
			metricsErr = err
			return
		}
		if commitDuration, err = meter.Float64Histogram("modeler_staging_commit_duration_seconds",
			metric.WithDescription("Duration of apply transactions in seconds"),
			metric.WithUnit("s")); err != nil {
			metricsErr = err
			return
		}
		if filesApplied, err = meter.Int64Histogram("modeler_staging_files",
			metric.WithDescription("Number of paths touched per transaction")); err != nil {
			metricsErr = err
			return
		}
		if activeGauge, err = meter.Int64UpDownCounter("modeler_staging_active",
			metric.WithDescription("Number of active apply transactions")); err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func recordBegin(ctx context.Context, success bool) {
	if initMetrics() != nil {
		return
	}
	beginTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status(success))))
}

func recordCommit(ctx context.Context, duration time.Duration, files int, success bool) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status(success)))
	commitTotal.Add(ctx, 1, attrs)
	commitDuration.Record(ctx, duration.Seconds(), attrs)
	filesApplied.Record(ctx, int64(files), attrs)
}

func recordRollback(ctx context.Context, duration time.Duration, files int, reason string) {
	if initMetrics() != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("status", "rolled_back"),
		attribute.String("reason", normalizeRollbackReason(reason)),
	)
	rollbackTotal.Add(ctx, 1, attrs)
	commitDuration.Record(ctx, duration.Seconds(), attrs)
	filesApplied.Record(ctx, int64(files), attrs)
}

// normalizeRollbackReason maps reasons to a bounded label set.
func normalizeRollbackReason(reason string) string {
	switch {
	case strings.HasPrefix(reason, "commit") && strings.Contains(reason, "panic"):
		return "panic"
	case strings.HasPrefix(reason, "prepare"), strings.HasPrefix(reason, "backup"),
		strings.HasPrefix(reason, "write"), strings.HasPrefix(reason, "delete"):
		return "error"
	default:
		return "user"
	}
}

func incActive(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	activeGauge.Add(ctx, 1)
}

func decActive(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	activeGauge.Add(ctx, -1)
}

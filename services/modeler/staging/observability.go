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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const stagingTracerName = "modeler.staging"

// Tracer creates spans for apply transactions. When disabled it hands out
// noop spans.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Tracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewTracer creates a Tracer on the global tracer provider.
func NewTracer(logger *slog.Logger, enabled bool) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{
		tracer:  otel.Tracer(stagingTracerName),
		logger:  logger,
		enabled: enabled,
	}
}

// StartBegin starts the span of a Begin call.
func (t *Tracer) StartBegin(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "staging.begin",
		trace.WithAttributes(attribute.String("tx.session_id", truncateForTrace(sessionID, 36))),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndBegin ends a Begin span.
func (t *Tracer) EndBegin(span trace.Span, tx *Transaction, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
	if tx != nil {
		span.SetAttributes(
			attribute.String("tx.id", tx.ID),
			attribute.Int("tx.files_count", tx.FileCount()),
		)
	}
}

// StartCommit starts the span of a Commit call.
func (t *Tracer) StartCommit(ctx context.Context, tx *Transaction) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}
	ctx, span := t.tracer.Start(ctx, "staging.commit",
		trace.WithAttributes(
			attribute.String("tx.id", tx.ID),
			attribute.String("tx.session_id", truncateForTrace(tx.SessionID, 36)),
			attribute.Int("tx.writes", len(tx.writes)),
			attribute.Int("tx.deletes", len(tx.removals)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	t.logger.DebugContext(ctx, "committing transaction",
		slog.String("tx_id", tx.ID),
		slog.Int("files", tx.FileCount()))
	return ctx, span
}

// EndCommit ends a Commit span.
func (t *Tracer) EndCommit(span trace.Span, result *Result, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
	if result != nil {
		span.SetAttributes(
			attribute.Int64("tx.duration_ms", result.Duration.Milliseconds()),
			attribute.Int("tx.written", len(result.Written)),
			attribute.Int("tx.deleted", len(result.Deleted)),
		)
	}
}

// StartRollback starts the span of a rollback.
func (t *Tracer) StartRollback(ctx context.Context, tx *Transaction, reason string) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}
	return t.tracer.Start(ctx, "staging.rollback",
		trace.WithAttributes(
			attribute.String("tx.id", tx.ID),
			attribute.String("tx.reason", truncateForTrace(reason, 100)),
			attribute.Int("tx.applied", len(tx.applied)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndRollback ends a rollback span.
func (t *Tracer) EndRollback(span trace.Span, unrestored []string) {
	defer span.End()
	if len(unrestored) > 0 {
		err := fmt.Errorf("%w: %d paths", ErrPartialApply, len(unrestored))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// RecordStateTransition adds a state_transition event to the current span.
func (t *Tracer) RecordStateTransition(ctx context.Context, txID string, from, to Status) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("state_transition", trace.WithAttributes(
			attribute.String("tx.id", txID),
			attribute.String("tx.from_state", string(from)),
			attribute.String("tx.to_state", string(to)),
		))
	}
	t.logger.DebugContext(ctx, "transaction state transition",
		slog.String("tx_id", txID),
		slog.String("from", string(from)),
		slog.String("to", string(to)))
}

// truncateForTrace caps span attribute strings at maxLen bytes.
func truncateForTrace(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		if maxLen <= 0 {
			return ""
		}
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// LoggerWithTrace adds trace_id and span_id from ctx to logger.
func LoggerWithTrace(ctx context.Context, logger *slog.Logger) *slog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		slog.String("trace_id", spanCtx.TraceID().String()),
		slog.String("span_id", spanCtx.SpanID().String()),
	)
}

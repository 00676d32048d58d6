// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry installs the OpenTelemetry trace and metric providers
// selected by the modeler config.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"

	"github.com/AleutianAI/AleutianModeler/services/modeler/config"
)

// ServiceName identifies the modeler in traces and metrics.
const ServiceName = "aleutian-modeler"

// ErrUnknownExporter is returned for an exporter name Setup cannot build.
var ErrUnknownExporter = errors.New("unknown telemetry exporter")

// ShutdownFunc flushes and closes the installed providers.
type ShutdownFunc func(ctx context.Context) error

// Option configures Setup.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	version    string
	stderr     io.Writer
}

// WithRegistry sets the prometheus registry the otel exporter registers
// with and the textfile is gathered from. Defaults to the global registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registerer = reg
		o.gatherer = reg
	}
}

// WithVersion sets the service.version resource attribute.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithStderr sets the fallback writer for stdout exporters without a file.
func WithStderr(w io.Writer) Option {
	return func(o *options) {
		o.stderr = w
	}
}

// Setup installs the providers named by cfg as the otel globals.
//
// # Description
//
// Traces go to a stdouttrace exporter, writing to TracesFile or stderr, or
// to an OTLP gRPC collector over TLS unless OTLPInsecure is set. Metrics go
// to the otel prometheus exporter, which bridges otel instruments into the
// prometheus registry, or to a periodic stdoutmetric reader. With
// prometheus metrics and a MetricsFile, the registry is written as a
// node-exporter textfile on shutdown.
//
// # Outputs
//
//   - ShutdownFunc: Never nil on success. Must be called on exit.
//   - error: An exporter could not be built.
//
// # Thread Safety
//
// Call once at startup.
func Setup(ctx context.Context, cfg config.TelemetryConfig, opts ...Option) (ShutdownFunc, error) {
	o := options{
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
		version:    "dev",
		stderr:     os.Stderr,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var closers []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (ShutdownFunc, error) {
		_ = shutdown(ctx)
		return nil, err
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", o.version),
	)

	if cfg.Traces != "" && cfg.Traces != config.ExporterNone {
		exporter, closeOut, err := traceExporter(ctx, cfg, o)
		if err != nil {
			return fail(fmt.Errorf("init tracer: %w", err))
		}
		tp := trace.NewTracerProvider(
			trace.WithBatcher(exporter),
			trace.WithResource(res),
			trace.WithSampler(trace.AlwaysSample()),
		)
		otel.SetTracerProvider(tp)
		closers = append(closers, closeOut, tp.Shutdown)
	}

	if cfg.Metrics != "" && cfg.Metrics != config.ExporterNone {
		reader, closeOut, err := metricReader(cfg, o)
		if err != nil {
			return fail(fmt.Errorf("init meter: %w", err))
		}
		mp := metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader))
		otel.SetMeterProvider(mp)
		closers = append(closers, closeOut, mp.Shutdown)
	}

	if cfg.Metrics == config.ExporterPrometheus && cfg.MetricsFile != "" {
		closers = append(closers, func(context.Context) error {
			if err := prometheus.WriteToTextfile(cfg.MetricsFile, o.gatherer); err != nil {
				return fmt.Errorf("writing metrics textfile: %w", err)
			}
			return nil
		})
	}

	return shutdown, nil
}

func nopClose(context.Context) error { return nil }

// output opens path for appending, or returns the fallback writer.
func output(path string, fallback io.Writer) (io.Writer, func(context.Context) error, error) {
	if path == "" {
		return fallback, nopClose, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, func(context.Context) error { return f.Close() }, nil
}

func traceExporter(ctx context.Context, cfg config.TelemetryConfig, o options) (trace.SpanExporter, func(context.Context) error, error) {
	switch cfg.Traces {
	case config.ExporterStdout:
		w, closeOut, err := output(cfg.TracesFile, o.stderr)
		if err != nil {
			return nil, nil, err
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			_ = closeOut(ctx)
			return nil, nil, fmt.Errorf("create exporter: %w", err)
		}
		return exporter, closeOut, nil

	case config.ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create exporter: %w", err)
		}
		return exporter, nopClose, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Traces)
	}
}

func metricReader(cfg config.TelemetryConfig, o options) (metric.Reader, func(context.Context) error, error) {
	switch cfg.Metrics {
	case config.ExporterPrometheus:
		exporter, err := promexporter.New(promexporter.WithRegisterer(o.registerer))
		if err != nil {
			return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return exporter, nopClose, nil

	case config.ExporterStdout:
		w, closeOut, err := output(cfg.MetricsFile, o.stderr)
		if err != nil {
			return nil, nil, err
		}
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			_ = closeOut(context.Background())
			return nil, nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return metric.NewPeriodicReader(exporter), closeOut, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Metrics)
	}
}

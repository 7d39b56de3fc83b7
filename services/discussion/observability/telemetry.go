// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// TelemetryConfig selects the trace exporter and where OTel metrics go.
type TelemetryConfig struct {
	ServiceName string

	// OTLPEndpoint is a host:port gRPC collector. Takes precedence over
	// StdoutTraces.
	OTLPEndpoint string

	// StdoutTraces writes spans to TraceWriter when no endpoint is set.
	StdoutTraces bool
	TraceWriter  io.Writer

	// Registerer receives the OTel metrics through the Prometheus bridge so
	// that /metrics serves both. Nil skips the meter provider.
	Registerer prometheus.Registerer
}

// TraceExporterName reports which exporter InitTelemetry will pick:
// "otlp", "stdout" or "none".
func (c TelemetryConfig) TraceExporterName() string {
	switch {
	case c.OTLPEndpoint != "":
		return "otlp"
	case c.StdoutTraces:
		return "stdout"
	default:
		return "none"
	}
}

// InitTelemetry installs the global TracerProvider, MeterProvider and
// propagators.
//
// Description:
//
//	Spans go to an OTLP collector over an insecure gRPC connection, to a
//	writer, or nowhere. OTel instruments are exported through the
//	Prometheus bridge onto cfg.Registerer. The returned shutdown flushes
//	and stops everything that was started.
//
// Inputs:
//
//	ctx - Used for exporter construction.
//	cfg - Telemetry configuration.
//
// Outputs:
//
//	shutdown - Always non-nil when err is nil. Safe to call once.
//	error - Non-nil if an exporter cannot be created.
func InitTelemetry(ctx context.Context, cfg TelemetryConfig) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	if cfg.Registerer != nil {
		reader, err := promexporter.New(promexporter.WithRegisterer(cfg.Registerer))
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("creating prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader))
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	slog.Info("telemetry initialised",
		"service", cfg.ServiceName,
		"traces", cfg.TraceExporterName(),
		"otel_metrics", cfg.Registerer != nil)
	return shutdown, nil
}

func newSpanExporter(ctx context.Context, cfg TelemetryConfig) (sdktrace.SpanExporter, error) {
	switch cfg.TraceExporterName() {
	case "otlp":
		conn, err := grpc.NewClient(cfg.OTLPEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("dialing collector %s: %w", cfg.OTLPEndpoint, err)
		}
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("creating OTLP exporter: %w", err)
		}
		return exp, nil
	case "stdout":
		opts := []stdouttrace.Option{}
		if cfg.TraceWriter != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.TraceWriter))
		}
		exp, err := stdouttrace.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, nil
	}
}

// ShutdownWithTimeout runs shutdown bounded by timeout and logs failure.
func ShutdownWithTimeout(shutdown func(context.Context) error, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Error("failed to shut down telemetry", "error", err)
	}
}

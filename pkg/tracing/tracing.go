package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "playcast"

// Config controls whether and where spans are exported.
type Config struct {
	Enabled     bool
	ServiceName string
	JaegerURL   string
	Environment string
	SampleRate  float64
}

// DefaultConfig keeps tracing off; when enabled it samples everything
// into a local Jaeger collector.
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		ServiceName: tracerName,
		JaegerURL:   "http://localhost:14268/api/traces",
		Environment: "development",
		SampleRate:  1.0,
	}
}

// TracerProvider owns the exporter pipeline set up by Init.
type TracerProvider struct {
	sdk *tracesdk.TracerProvider
}

// Init wires the global tracer to a Jaeger exporter. With tracing
// disabled it returns an inert provider and touches no globals.
func Init(cfg Config) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{}, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("create jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String("1.0.0"),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	sdk := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.TraceIDRatioBased(cfg.SampleRate)),
	)
	otel.SetTracerProvider(sdk)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{sdk: sdk}, nil
}

// Shutdown flushes and stops the exporter pipeline, if one was built.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.sdk == nil {
		return nil
	}
	return tp.sdk.Shutdown(ctx)
}

// StartSpan opens a span on the global tracer. Without a registered
// provider the returned span is a no-op but still safe to use.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// AddSpanAttributes annotates the current span, if one is recording.
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordError marks the current span failed with err.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Span attributes shared across the trace helpers.
var (
	SessionIDKey = attribute.Key("session.id")
	PeerAddrKey  = attribute.Key("peer.addr")
	CommandKey   = attribute.Key("input.command")
	DurationKey  = attribute.Key("duration")
)

// TraceHTTPRequest opens a span for one admin API request.
func TraceHTTPRequest(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, "http."+method,
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPRouteKey.String(path),
		))
}

// TraceSignalMessage opens a span for one relayed signaling frame.
func TraceSignalMessage(ctx context.Context, messageType, peerAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, "signal."+messageType,
		trace.WithAttributes(
			attribute.String("signal.message_type", messageType),
			PeerAddrKey.String(peerAddr),
		))
}

// TraceInputCommand opens a span covering decode and dispatch of one
// input command.
func TraceInputCommand(ctx context.Context, command, peerAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, "input."+command,
		trace.WithAttributes(
			CommandKey.String(command),
			PeerAddrKey.String(peerAddr),
		))
}

// TraceSessionEvent opens a span for a registry presence change.
func TraceSessionEvent(ctx context.Context, event, peerAddr string) (context.Context, trace.Span) {
	return StartSpan(ctx, "session."+event,
		trace.WithAttributes(
			attribute.String("session.event", event),
			PeerAddrKey.String(peerAddr),
		))
}

// TracePipelineOperation opens a span for a media pipeline lifecycle
// step.
func TracePipelineOperation(ctx context.Context, operation, sessionID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "pipeline."+operation,
		trace.WithAttributes(
			attribute.String("pipeline.operation", operation),
			SessionIDKey.String(sessionID),
		))
}

// MeasureDuration stamps the current span with the elapsed time since
// start.
func MeasureDuration(ctx context.Context, start time.Time, operation string) {
	AddSpanAttributes(ctx,
		attribute.String("operation", operation),
		DurationKey.Int64(time.Since(start).Milliseconds()),
	)
}

// Package telemetry exports one OpenTelemetry span per Result to an
// OTLP/HTTP collector, as an optional fan-out tap alongside the live TUI
// and history accumulation. Grounded on
// croessner-nauthilus/server/monitoring/otel.go's exporter/provider setup,
// trimmed to a single plain (insecure) OTLP/HTTP path — TLS to the
// collector is not configured — and driven by one endpoint flag instead of
// a full tracing config block.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"culverin/internal/result"
)

// Telemetry owns the TracerProvider lifecycle for one process. The zero
// value is unstarted and its Tap is a safe no-op, so callers can build one
// unconditionally and only call Start when --otel-addr is set.
type Telemetry struct {
	mu      sync.Mutex
	started bool
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
}

// Start initializes the OTLP/HTTP exporter against endpoint (host:port,
// no scheme or path; insecure — this tool targets local/CI collectors, not
// public ones). Safe to call at most once; a second call is a no-op.
func (t *Telemetry) Start(ctx context.Context, endpoint, attackName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
	}

	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("telemetry: initializing OTLP/HTTP exporter: %w", err)
	}

	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("culverin"),
		attribute.String("attack.name", attackName),
	))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	t.tp = tp
	t.tracer = tp.Tracer("culverin/attack")
	t.started = true
	return nil
}

// Tap returns a consumer suitable for result.Tap.Attach: it records one
// span per Result, spanning [Timestamp, Timestamp+Latency), tagged with
// method/url/status/error. Before Start is called (or when telemetry is
// disabled) it is a no-op.
func (t *Telemetry) Tap() func(*result.Result) {
	return func(r *result.Result) {
		t.mu.Lock()
		tracer := t.tracer
		t.mu.Unlock()
		if tracer == nil {
			return
		}

		_, span := tracer.Start(context.Background(), "http.request",
			trace.WithTimestamp(r.Timestamp),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL),
				attribute.Int64("attack.sequence", int64(r.Seq)),
			),
		)

		if r.Code != 0 {
			span.SetAttributes(attribute.Int("http.status_code", int(r.Code)))
		}
		if r.Error != "" {
			span.SetStatus(codes.Error, r.Error)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End(trace.WithTimestamp(r.Timestamp.Add(r.Latency)))
	}
}

// Shutdown flushes and closes the exporter, bounded by ctx.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return nil
	}
	t.started = false
	tp := t.tp
	t.tp = nil
	t.tracer = nil

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return tp.Shutdown(shutdownCtx)
}

// Package otel wires OpenTelemetry providers with OTLP gRPC exporters. The
// auth service uses them to mirror audit events as log records and to count
// login and MFA outcomes.
package otel

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// Providers holds the OpenTelemetry providers and a shutdown function that
// flushes all three pipelines in reverse order.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

// NewProviders creates trace, metric, and log providers exporting via OTLP
// gRPC to endpoint. An empty endpoint returns no-op providers with a no-op
// Shutdown, so callers never branch on whether telemetry is configured.
// endpoint may be host:port or a URL; any path is ignored. https implies TLS
// unless insecureOverride is set (standard OTEL_EXPORTER_OTLP_INSECURE
// behavior).
func NewProviders(ctx context.Context, endpoint, serviceName string, insecureOverride bool) (*Providers, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return &Providers{
			TracerProvider: sdktrace.NewTracerProvider(),
			MeterProvider:  metric.NewMeterProvider(),
			LoggerProvider: sdklog.NewLoggerProvider(),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	grpcTarget, insecure, err := normalizeEndpoint(endpoint, insecureOverride)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	var shutdownFns []func(context.Context) error
	fail := func(ctx context.Context, cause error) error {
		for i := len(shutdownFns) - 1; i >= 0; i-- {
			_ = shutdownFns[i](ctx)
		}
		return cause
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(grpcTarget)}
	if insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
	}
	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	shutdownFns = append(shutdownFns, tp.Shutdown)

	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(grpcTarget)}
	if insecure {
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fail(ctx, err)
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExp, metric.WithInterval(10*time.Second))),
	)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(grpcTarget)}
	if insecure {
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}
	logExp, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		return nil, fail(ctx, err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	shutdownFns = append(shutdownFns, lp.Shutdown)

	shutdown := func(ctx context.Context) error {
		var lastErr error
		for i := len(shutdownFns) - 1; i >= 0; i-- {
			if err := shutdownFns[i](ctx); err != nil {
				log.Printf("telemetry: shutdown: %v", err)
				lastErr = err
			}
		}
		return lastErr
	}

	return &Providers{
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
		Shutdown:       shutdown,
	}, nil
}

// normalizeEndpoint reduces the configured endpoint to the host:port the
// OTLP gRPC exporters dial.
func normalizeEndpoint(endpoint string, insecureOverride bool) (target string, insecure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, insecureOverride || u.Scheme != "https", nil
}

// SetGlobal installs the tracer and meter providers globally so any
// instrumented library picks them up. The logger provider stays explicit;
// pass it to the audit emitter.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}

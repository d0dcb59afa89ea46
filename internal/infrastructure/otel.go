package infrastructure

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelProviders bundles the configured OpenTelemetry providers and the
// Prometheus registry that the /metrics endpoint serves from.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prometheus.Registry
	Logger         *slog.Logger
}

// NewOTelProviders configures tracing and metrics for the service.
// Metrics are exported through a dedicated Prometheus registry so the
// scrape endpoint only carries what this process registers.
func NewOTelProviders(ctx context.Context, serviceName, version string, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = slog.Default()
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &OTelProviders{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		Tracer:         tracerProvider.Tracer(serviceName),
		Meter:          meterProvider.Meter(serviceName),
		Registry:       registry,
		Logger:         logger,
	}, nil
}

// Shutdown flushes and stops the providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.TracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Metrics holds the service-level instruments.
type Metrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter
	DatasetUploadsTotal metric.Int64Counter
	ReportRendersTotal  metric.Int64Counter
}

// NewMetrics creates the service instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total HTTP requests processed"),
	); err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("create http_request_duration_seconds: %w", err)
	}

	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter("http_active_requests",
		metric.WithDescription("In-flight HTTP requests"),
	); err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	if m.DatasetUploadsTotal, err = meter.Int64Counter("dataset_uploads_total",
		metric.WithDescription("Datasets accepted through the upload endpoint"),
	); err != nil {
		return nil, fmt.Errorf("create dataset_uploads_total: %w", err)
	}

	if m.ReportRendersTotal, err = meter.Int64Counter("report_renders_total",
		metric.WithDescription("Report documents rendered, by format"),
	); err != nil {
		return nil, fmt.Errorf("create report_renders_total: %w", err)
	}

	return m, nil
}

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"equiviz/internal/infrastructure"
)

// OTelMiddleware instruments HTTP requests with a server span and the
// request counter/latency/in-flight metrics.
type OTelMiddleware struct {
	tracer  trace.Tracer
	metrics *infrastructure.Metrics
}

// NewOTelMiddleware creates the instrumentation middleware from the
// configured providers.
func NewOTelMiddleware(providers *infrastructure.OTelProviders) (*OTelMiddleware, error) {
	metrics, err := infrastructure.NewMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	return &OTelMiddleware{
		tracer:  providers.Tracer,
		metrics: metrics,
	}, nil
}

// Metrics exposes the instruments for handlers that record business
// counters directly.
func (m *OTelMiddleware) Metrics() *infrastructure.Metrics {
	return m.metrics
}

// Handler returns the middleware handler function
func (m *OTelMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := m.tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(r.URL.Path),
				semconv.ServerAddressKey.String(r.Host),
				semconv.UserAgentOriginalKey.String(r.UserAgent()),
			),
		)
		defer span.End()
		r = r.WithContext(ctx)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		m.metrics.HTTPActiveRequests.Add(ctx, 1)
		defer m.metrics.HTTPActiveRequests.Add(ctx, -1)

		start := time.Now()
		next.ServeHTTP(ww, r)
		duration := time.Since(start)

		attrs := []attribute.KeyValue{
			attribute.String("method", r.Method),
			attribute.String("route", routePattern(r)),
			attribute.Int("status_code", ww.Status()),
		}
		m.metrics.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
		m.metrics.HTTPRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(ww.Status()))
		if ww.Status() >= 400 {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// routePattern extracts the chi route pattern, falling back to the raw
// path before routing has resolved.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

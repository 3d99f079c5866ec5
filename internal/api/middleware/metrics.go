package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records per-route HTTP server instruments.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	bodySize metric.Int64Histogram
}

// NewMetrics registers the HTTP server instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Time to serve a request"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30))
	collect(err)
	m.requests, err = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Requests served"),
		metric.WithUnit("{request}"))
	collect(err)
	m.inFlight, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Requests being served"),
		metric.WithUnit("{request}"))
	collect(err)
	m.bodySize, err = meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Response body size"),
		metric.WithUnit("By"))
	collect(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &m, nil
}

// Middleware records one observation per request keyed by the chi route
// pattern, never the raw path, so /places/{category} stays a single series.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			methodAttr := metric.WithAttributes(attribute.String("http.request.method", r.Method))
			m.inFlight.Add(ctx, 1, methodAttr)
			defer m.inFlight.Add(ctx, -1, methodAttr)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.Int("http.response.status_code", rw.statusCode),
			}
			if rw.statusCode >= http.StatusInternalServerError {
				attrs = append(attrs, attribute.String("error.type", strconv.Itoa(rw.statusCode)))
			}
			set := metric.WithAttributes(attrs...)

			m.duration.Record(ctx, time.Since(start).Seconds(), set)
			m.requests.Add(ctx, 1, set)
			m.bodySize.Record(ctx, rw.written, set)
		})
	}
}

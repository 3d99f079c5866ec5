package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the domain instruments recorded by the routing, crime and
// safety services. A nil *Metrics is valid and records nothing.
type Metrics struct {
	routes           metric.Int64Counter
	providerDuration metric.Float64Histogram
	cacheLookups     metric.Int64Counter
	safetySamples    metric.Int64Counter
}

// NewMetrics registers the domain instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	routes, err := meter.Int64Counter("route.computed",
		metric.WithDescription("Routes computed, by mode and source"),
		metric.WithUnit("{route}"),
	)
	if err != nil {
		return nil, err
	}

	providerDuration, err := meter.Float64Histogram("provider.request.duration",
		metric.WithDescription("Upstream provider call duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheLookups, err := meter.Int64Counter("cache.lookups",
		metric.WithDescription("Cache lookups, by namespace and result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	safetySamples, err := meter.Int64Counter("safety.samples",
		metric.WithDescription("Crime samples taken along routes, by outcome"),
		metric.WithUnit("{sample}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		routes:           routes,
		providerDuration: providerDuration,
		cacheLookups:     cacheLookups,
		safetySamples:    safetySamples,
	}, nil
}

// RouteComputed counts a resolved route.
func (m *Metrics) RouteComputed(ctx context.Context, mode string, synthetic bool) {
	if m == nil {
		return
	}
	m.routes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("synthetic", synthetic),
	))
}

// ProviderCall records the duration and outcome of one upstream call.
func (m *Metrics) ProviderCall(ctx context.Context, provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.providerDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.Bool("error", err != nil),
	))
}

// CacheLookup counts a cache hit or miss in namespace.
func (m *Metrics) CacheLookup(ctx context.Context, namespace string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("namespace", namespace),
		attribute.String("result", result),
	))
}

// SafetySample counts one sampled crime lookup.
func (m *Metrics) SafetySample(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.safetySamples.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

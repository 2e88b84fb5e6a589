package cache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/jrsteele09/go-brief-portal/cache"

type metrics struct {
	hits        metric.Int64Counter
	misses      metric.Int64Counter
	fetchErrors metric.Int64Counter
}

func newMetrics(provider metric.MeterProvider) (*metrics, error) {
	meter := provider.Meter(meterName)
	hits, err := meter.Int64Counter("cache.hits", metric.WithDescription("Reads served from a fresh cache entry"))
	if err != nil {
		return nil, err
	}
	misses, err := meter.Int64Counter("cache.misses", metric.WithDescription("Reads that needed a fetch"))
	if err != nil {
		return nil, err
	}
	fetchErrors, err := meter.Int64Counter("cache.fetch_errors", metric.WithDescription("Fetches that failed after retries"))
	if err != nil {
		return nil, err
	}
	return &metrics{hits: hits, misses: misses, fetchErrors: fetchErrors}, nil
}

func kindAttr(key Key) metric.AddOption {
	return metric.WithAttributes(attribute.String("kind", key.Kind()))
}

func (m *metrics) hit(ctx context.Context, key Key) {
	m.hits.Add(ctx, 1, kindAttr(key))
}

func (m *metrics) miss(ctx context.Context, key Key) {
	m.misses.Add(ctx, 1, kindAttr(key))
}

func (m *metrics) fetchError(ctx context.Context, key Key) {
	m.fetchErrors.Add(ctx, 1, kindAttr(key))
}

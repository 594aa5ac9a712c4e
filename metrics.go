// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package klaim

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	meterName = "github.com/z5labs/klaim"
)

// metricsRecorder holds OTel metric instruments for tracking route calls.
type metricsRecorder struct {
	calls              metric.Int64Counter
	attempts           metric.Int64Counter
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
	rateLimitRejection metric.Int64Counter
}

func newMetricsRecorder() (*metricsRecorder, error) {
	return newMetricsRecorderFrom(otel.GetMeterProvider().Meter(meterName))
}

func noopMetricsRecorder() *metricsRecorder {
	m, _ := newMetricsRecorderFrom(noop.NewMeterProvider().Meter(meterName))
	return m
}

func newMetricsRecorderFrom(meter metric.Meter) (*metricsRecorder, error) {
	calls, err := meter.Int64Counter(
		"klaim.calls",
		metric.WithDescription("Total number of route calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	attempts, err := meter.Int64Counter(
		"klaim.attempts",
		metric.WithDescription("Total number of attempts made by route calls"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter(
		"klaim.cache.hits",
		metric.WithDescription("Total number of attempts served from the response cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"klaim.cache.misses",
		metric.WithDescription("Total number of cacheable attempts not found in the response cache"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	rateLimitRejection, err := meter.Int64Counter(
		"klaim.rate_limit.rejections",
		metric.WithDescription("Total number of calls rejected by a rate limit"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsRecorder{
		calls:              calls,
		attempts:           attempts,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		rateLimitRejection: rateLimitRejection,
	}, nil
}

// recordCall records a finished call and whether it succeeded.
func (m *metricsRecorder) recordCall(ctx context.Context, route string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	m.calls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("route", route),
			attribute.String("outcome", outcome),
		),
	)
}

func (m *metricsRecorder) recordAttempt(ctx context.Context, route string, attempt int) {
	m.attempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("route", route),
			attribute.Int("attempt", attempt),
		),
	)
}

func (m *metricsRecorder) recordCacheLookup(ctx context.Context, route string, hit bool) {
	counter := m.cacheMisses
	if hit {
		counter = m.cacheHits
	}
	counter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("route", route),
		),
	)
}

func (m *metricsRecorder) recordRateLimited(ctx context.Context, key string) {
	m.rateLimitRejection.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("key", key),
		),
	)
}

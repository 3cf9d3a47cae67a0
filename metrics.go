package interview

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	attrProvider = attribute.Key("interview.provider")
	attrSchema   = attribute.Key("interview.schema")
	attrStatus   = attribute.Key("interview.status")
	attrReason   = attribute.Key("interview.fail_reason")
)

type clientMetrics struct {
	requests metric.Int64Counter
	attempts metric.Int64Counter
	latency  metric.Float64Histogram
}

func newClientMetrics(mp metric.MeterProvider) *clientMetrics {
	meter := mp.Meter(instrumentationName)
	requests, err := meter.Int64Counter("interview.model.requests",
		metric.WithDescription("Model requests by final status."))
	if err != nil {
		otel.Handle(err)
	}
	attempts, err := meter.Int64Counter("interview.model.attempts",
		metric.WithDescription("Provider calls including retries."))
	if err != nil {
		otel.Handle(err)
	}
	latency, err := meter.Float64Histogram("interview.model.latency",
		metric.WithDescription("Model request latency across attempts."), metric.WithUnit("ms"))
	if err != nil {
		otel.Handle(err)
	}
	return &clientMetrics{requests: requests, attempts: attempts, latency: latency}
}

func (m *clientMetrics) record(ctx context.Context, provider string, schema SchemaKind, status, reason string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attrProvider.String(provider),
		attrSchema.String(string(schema)),
		attrStatus.String(status),
		attrReason.String(reason),
	)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.attempts != nil {
		m.attempts.Add(ctx, int64(attempts), attrs)
	}
	if m.latency != nil {
		m.latency.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

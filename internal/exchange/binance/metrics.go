package binance

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type clientMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// newClientMetrics registers against the global meter provider, which is a
// no-op until the host process installs one.
func newClientMetrics() *clientMetrics {
	meter := otel.Meter("futures-bot/binance")
	m := &clientMetrics{}
	if counter, err := meter.Int64Counter("binance.rest.requests",
		metric.WithDescription("REST calls sent to the exchange by method, endpoint and outcome"),
		metric.WithUnit("{request}")); err == nil {
		m.requests = counter
	}
	if hist, err := meter.Float64Histogram("binance.rest.duration",
		metric.WithDescription("REST round trip duration"),
		metric.WithUnit("ms")); err == nil {
		m.duration = hist
	}
	return m
}

func (m *clientMetrics) record(ctx context.Context, method, endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/bdobrica/quickrizz/internal/quickrizz/gateway"

// Outcome labels for the call counter.
const (
	outcomeOK        = "ok"
	outcomeGiveUp    = "give_up"
	outcomePermanent = "permanent"
	outcomeCancelled = "cancelled"
)

// metrics holds the gateway instruments.
type metrics struct {
	attempts metric.Int64Counter
	retries  metric.Int64Counter
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

// newMetrics creates the instruments on mp, or on the global provider when
// mp is nil. Instruments that cannot be created fall back to no-ops.
func newMetrics(mp metric.MeterProvider) *metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	m := &metrics{}
	var errs [4]error
	m.attempts, errs[0] = meter.Int64Counter(
		"quickrizz.gateway.attempts",
		metric.WithDescription("Upstream generation attempts, including retries"),
	)
	m.retries, errs[1] = meter.Int64Counter(
		"quickrizz.gateway.retries",
		metric.WithDescription("Backoff sleeps taken after a transient failure"),
	)
	m.calls, errs[2] = meter.Int64Counter(
		"quickrizz.gateway.calls",
		metric.WithDescription("Completed gateway calls by outcome"),
	)
	m.duration, errs[3] = meter.Float64Histogram(
		"quickrizz.gateway.duration",
		metric.WithDescription("Wall time of a gateway call including slot and throttle waits"),
		metric.WithUnit("s"),
	)
	if err := errors.Join(errs[:]...); err != nil {
		slog.Warn("gateway: metrics disabled", "err", err)
		return newMetrics(noop.NewMeterProvider())
	}
	return m
}

func (m *metrics) attempt(ctx context.Context) {
	m.attempts.Add(ctx, 1)
}

func (m *metrics) retry(ctx context.Context, status int) {
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.Int("status", status)))
}

func (m *metrics) call(ctx context.Context, outcome string, started time.Time) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(started).Seconds(), attrs)
}

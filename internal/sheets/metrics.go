package sheets

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records fetch outcomes. A nil *Metrics records nothing.
type Metrics struct {
	fetches  metric.Int64Counter
	duration metric.Float64Histogram
	rows     metric.Int64Counter
}

// NewMetrics registers the fetch instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	fetches, err := meter.Int64Counter(
		"sheet_fetch_total",
		metric.WithDescription("Sheet reads by sheet and outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"sheet_fetch_duration_seconds",
		metric.WithDescription("Sheet read latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	rows, err := meter.Int64Counter(
		"sheet_rows_fetched_total",
		metric.WithDescription("Rows returned by successful sheet reads"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{fetches: fetches, duration: duration, rows: rows}, nil
}

func (m *Metrics) record(ctx context.Context, sheet string, outcome Outcome, elapsed time.Duration, n int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("sheet", sheet),
		attribute.String("outcome", string(outcome)),
	)
	m.fetches.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	if outcome == OutcomeOK {
		m.rows.Add(ctx, int64(n), metric.WithAttributes(attribute.String("sheet", sheet)))
	}
}

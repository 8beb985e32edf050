// Package metrics reports what each sync cycle did to a table pair.
// The runner hands one Metrics per pair and cycle to a Sink, which may
// log it, export it to Prometheus, or drop it.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Kind tells a sink how to aggregate a value.
type Kind byte

const (
	KindUnknown Kind = iota
	KindCounter
	KindGauge
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	default:
		return "unknown"
	}
}

const (
	SinkTimeout                 = 1 * time.Second
	RowsInsertedMetricName      = "rows_inserted"
	RowsRevivedMetricName       = "rows_revived"
	RowsUpdatedMetricName       = "rows_updated"
	RowsMarkedDeletedMetricName = "rows_marked_deleted"
	CycleDurationMetricName     = "cycle_duration_seconds"
	CycleFailuresMetricName     = "cycle_failures"
)

// Metrics are the values of one cycle of one table pair.
type Metrics struct {
	// Table is the configured name of the pair.
	Table  string
	Values []MetricValue
}

type MetricValue struct {
	Name  string
	Value float64
	Kind  Kind
}

// Counter is a value to be added to a running total.
func Counter(name string, v float64) MetricValue {
	return MetricValue{Name: name, Value: v, Kind: KindCounter}
}

// Gauge is a point observation.
func Gauge(name string, v float64) MetricValue {
	return MetricValue{Name: name, Value: v, Kind: KindGauge}
}

// Sink receives cycle metrics. Send must return once ctx is done.
type Sink interface {
	Send(ctx context.Context, metrics *Metrics) error
}

// NoopSink drops everything. It is the runner's default.
type NoopSink struct{}

func (s *NoopSink) Send(context.Context, *Metrics) error {
	return nil
}

var _ Sink = &NoopSink{}

// logSink writes one log line per value.
type logSink struct {
	logger *slog.Logger
}

func (l *logSink) Send(_ context.Context, m *Metrics) error {
	for _, v := range m.Values {
		if v.Kind == KindUnknown {
			l.logger.Error("metric has no kind", "table", m.Table, "name", v.Name, "value", v.Value)
			continue
		}
		l.logger.Info("metric", "table", m.Table, "name", v.Name, "kind", v.Kind.String(), "value", v.Value)
	}
	return nil
}

var _ Sink = &logSink{}

func NewLogSink(logger *slog.Logger) *logSink {
	return &logSink{
		logger: logger,
	}
}

// MultiSink fans out to every sink, even after one fails.
type MultiSink []Sink

func (s MultiSink) Send(ctx context.Context, m *Metrics) error {
	errs := make([]error, 0, len(s))
	for _, sink := range s {
		errs = append(errs, sink.Send(ctx, m))
	}
	return errors.Join(errs...)
}

var _ Sink = MultiSink{}

package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "keysync"

// PrometheusSink exposes sync metrics for scraping. Row counts are
// counters labelled by table and step; cycle durations go to a histogram.
type PrometheusSink struct {
	registry      *prometheus.Registry
	rows          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
}

var _ Sink = (*PrometheusSink)(nil)

// stepOf maps a row count metric to its step label.
var stepOf = map[string]string{
	RowsInsertedMetricName:      "insert",
	RowsRevivedMetricName:       "revive",
	RowsUpdatedMetricName:       "update",
	RowsMarkedDeletedMetricName: "mark_deleted",
}

// NewPrometheusSink registers the sync metrics on a private registry.
func NewPrometheusSink() (*PrometheusSink, error) {
	s := &PrometheusSink{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Rows changed in the destination, by table and step",
			},
			[]string{"table", "step"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycle_failures_total",
				Help:      "Sync cycles that failed, by table",
			},
			[]string{"table"},
		),
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of a sync cycle, by table",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"table"},
		),
	}
	for _, c := range []prometheus.Collector{s.rows, s.failures, s.cycleDuration} {
		if err := s.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return s, nil
}

func (s *PrometheusSink) Send(_ context.Context, m *Metrics) error {
	for _, v := range m.Values {
		if step, ok := stepOf[v.Name]; ok {
			s.rows.WithLabelValues(m.Table, step).Add(v.Value)
			continue
		}
		switch v.Name {
		case CycleDurationMetricName:
			s.cycleDuration.WithLabelValues(m.Table).Observe(v.Value)
		case CycleFailuresMetricName:
			s.failures.WithLabelValues(m.Table).Add(v.Value)
		default:
			return fmt.Errorf("unknown metric %q", v.Name)
		}
	}
	return nil
}

// Registry returns the registry the sink's collectors live in.
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the sink's metrics in the Prometheus exposition format.
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

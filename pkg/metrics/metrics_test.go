package metrics

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	err := sink.Send(t.Context(), &Metrics{
		Table: "accounts",
		Values: []MetricValue{
			Counter(RowsInsertedMetricName, 3),
			Gauge(CycleDurationMetricName, 0.5),
			{Name: "bogus", Value: 1},
		},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "table=accounts name=rows_inserted kind=counter value=3")
	assert.Contains(t, out, "name=cycle_duration_seconds kind=gauge value=0.5")
	assert.Contains(t, out, "metric has no kind")
}

type failingSink struct {
	calls int
}

func (f *failingSink) Send(context.Context, *Metrics) error {
	f.calls++
	return errors.New("sink down")
}

func TestMultiSink(t *testing.T) {
	a, b := &failingSink{}, &failingSink{}
	err := MultiSink{a, &NoopSink{}, b}.Send(t.Context(), &Metrics{})
	assert.EqualError(t, err, "sink down\nsink down")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestPrometheusSink(t *testing.T) {
	sink, err := NewPrometheusSink()
	require.NoError(t, err)
	for range 2 {
		require.NoError(t, sink.Send(t.Context(), &Metrics{
			Table: "accounts",
			Values: []MetricValue{
				Counter(RowsInsertedMetricName, 3),
				Counter(RowsMarkedDeletedMetricName, 1),
				Gauge(CycleDurationMetricName, 0.2),
			},
		}))
	}
	require.NoError(t, sink.Send(t.Context(), &Metrics{
		Table:  "orders",
		Values: []MetricValue{Counter(CycleFailuresMetricName, 1)},
	}))
	assert.ErrorContains(t, sink.Send(t.Context(), &Metrics{
		Values: []MetricValue{Counter("bogus", 1)},
	}), "unknown metric")

	srv := httptest.NewServer(sink.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, `keysync_rows_total{step="insert",table="accounts"} 6`)
	assert.Contains(t, out, `keysync_rows_total{step="mark_deleted",table="accounts"} 2`)
	assert.Contains(t, out, `keysync_cycle_failures_total{table="orders"} 1`)
	assert.Contains(t, out, `keysync_cycle_duration_seconds_count{table="accounts"} 2`)
}

package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("reports:warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("reports:warmup").End(boom), boom)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("reports:warmup", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runs.WithLabelValues("reports:warmup", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failures.WithLabelValues("reports:warmup")))
}

func TestGaugesAndNilSafety(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetOverdue(4)
	m.SetOverdue(2)
	m.AddPurged(3)
	m.AddPurged(0)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.overdue))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.purged))

	var nilMetrics *Metrics
	nilMetrics.SetOverdue(1)
	nilMetrics.AddPurged(1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}

package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("mail:send").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("mail:send").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("mail:send", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("mail:send")))
}

func TestAddNotifications(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddNotifications("ACTIVE", 2)
	m.AddNotifications("", 1)
	m.AddNotifications("ACTIVE", 0)

	require.Equal(t, 2.0, testutil.ToFloat64(m.notifications.WithLabelValues("ACTIVE")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("unknown")))

	var nilMetrics *Metrics
	nilMetrics.AddNotifications("ACTIVE", 1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}

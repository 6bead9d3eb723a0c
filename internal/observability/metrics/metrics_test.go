package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)

	m.ObserveDecision("public", "primary")
	m.ObserveDecision("public", "primary")
	m.ObserveDecision("calendar", "overbook")
	m.ObserveBooking("staff", "booked")
	m.ObserveConflict("public")
	m.ObserveBookingLatency("staff", 0.02)
	m.ObserveSlots("public", 18)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("public", "primary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisionsTotal.WithLabelValues("calendar", "overbook")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflictsTotal.WithLabelValues("public")))

	families, err := reg.Gather()
	require.NoError(t, err)

	var latency *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "clinic_scheduling_booking_latency_seconds" {
			latency = f
		}
	}
	require.NotNil(t, latency, "latency histogram not gathered")
	require.Len(t, latency.GetMetric(), 1)
	assert.Equal(t, uint64(1), latency.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestSchedulingMetricsDefaultRegistry(t *testing.T) {
	// Registering twice on the default registry would panic, so only the
	// nil path is exercised here once per process.
	m := NewSchedulingMetrics(nil)
	m.ObserveBooking("public", "booked")
	prometheus.DefaultRegisterer.Unregister(m.decisionsTotal)
	prometheus.DefaultRegisterer.Unregister(m.bookingsTotal)
	prometheus.DefaultRegisterer.Unregister(m.conflictsTotal)
	prometheus.DefaultRegisterer.Unregister(m.bookingLatency)
	prometheus.DefaultRegisterer.Unregister(m.slotsCalculated)
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveDecision("public", "blocked")
	m.ObserveBooking("staff", "error")
	m.ObserveConflict("staff")
	m.ObserveBookingLatency("staff", 0.1)
	m.ObserveSlots("calendar", 9)
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for availability and booking flows.
type SchedulingMetrics struct {
	decisionsTotal  *prometheus.CounterVec
	bookingsTotal   *prometheus.CounterVec
	conflictsTotal  *prometheus.CounterVec
	bookingLatency  *prometheus.HistogramVec
	slotsCalculated *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "availability_decisions_total",
			Help:      "Availability decisions by caller and resulting mode",
		}, []string{"caller", "mode"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by source and outcome",
		}, []string{"source", "outcome"}),
		conflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "write_conflicts_total",
			Help:      "Bookings rejected because the slot was taken after the availability check",
		}, []string{"source"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "booking_latency_seconds",
			Help:      "Latency of booking writes including the conflict re-check",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		slotsCalculated: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "scheduling",
			Name:      "slots_per_request",
			Help:      "Number of slots evaluated per availability request",
			Buckets:   []float64{1, 4, 8, 16, 32, 64, 128},
		}, []string{"caller"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.decisionsTotal, m.bookingsTotal, m.conflictsTotal, m.bookingLatency, m.slotsCalculated)
	return m
}

func (m *SchedulingMetrics) ObserveDecision(caller, mode string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(caller, mode).Inc()
}

func (m *SchedulingMetrics) ObserveBooking(source, outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(source, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveConflict(source string) {
	if m == nil {
		return
	}
	m.conflictsTotal.WithLabelValues(source).Inc()
}

func (m *SchedulingMetrics) ObserveBookingLatency(source string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingLatency.WithLabelValues(source).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveSlots(caller string, count int) {
	if m == nil {
		return
	}
	m.slotsCalculated.WithLabelValues(caller).Observe(float64(count))
}

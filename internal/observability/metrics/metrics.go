package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters for the booking and reminder flows.
// All observe methods are safe on a nil receiver so wiring stays optional.
type SchedulingMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	slotsGenerated   prometheus.Counter
	dispatchedTotal  *prometheus.CounterVec
	remindersSkipped prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "booking",
			Name:      "requests_total",
			Help:      "Total booking attempts by result",
		}, []string{"result"}),
		slotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "slots",
			Name:      "generated_total",
			Help:      "Total availability slots created by the generator",
		}),
		dispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "reminders",
			Name:      "dispatched_total",
			Help:      "Total reminder dispatches by terminal status",
		}, []string{"status"}),
		remindersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "reminders",
			Name:      "skipped_total",
			Help:      "Reminders not created because of the minimum lead time floor",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.slotsGenerated, m.dispatchedTotal, m.remindersSkipped)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(result string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
}

func (m *SchedulingMetrics) ObserveSlotsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsGenerated.Add(float64(n))
}

func (m *SchedulingMetrics) ObserveDispatch(status string) {
	if m == nil {
		return
	}
	m.dispatchedTotal.WithLabelValues(status).Inc()
}

func (m *SchedulingMetrics) ObserveReminderSkipped() {
	if m == nil {
		return
	}
	m.remindersSkipped.Inc()
}

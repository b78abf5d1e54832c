package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Booking outcomes recorded by ObserveBooking.
const (
	OutcomeCreated     = "created"
	OutcomeReplayed    = "replayed"
	OutcomeSlotTaken   = "slot_taken"
	OutcomeOutOfWindow = "out_of_window"
	OutcomeRejected    = "rejected"
	OutcomeError       = "error"
)

// Metrics exposes counters/histograms for the booking engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	bookingsTotal       *prometheus.CounterVec
	cancellationsTotal  *prometheus.CounterVec
	availabilityLatency *prometheus.HistogramVec
	sweptTotal          prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "therabook",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "therabook",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancel requests by result",
		}, []string{"result"}),
		availabilityLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "therabook",
			Subsystem: "availability",
			Name:      "query_duration_seconds",
			Help:      "Latency of weekly availability computation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scope"}),
		sweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "therabook",
			Subsystem: "sweep",
			Name:      "canceled_pending_total",
			Help:      "Expired pending sessions canceled by the sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal, m.availabilityLatency, m.sweptTotal)
	return m
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCancel(result string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(result).Inc()
}

// ObserveAvailability records how long an availability query took; scope is
// "single" or "all" session types.
func (m *Metrics) ObserveAvailability(scope string, d time.Duration) {
	if m == nil {
		return
	}
	m.availabilityLatency.WithLabelValues(scope).Observe(d.Seconds())
}

func (m *Metrics) AddSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptTotal.Add(float64(n))
}

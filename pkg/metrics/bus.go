package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons recorded by BusMetrics.IncDropped.
const (
	DropReasonQueueFull = "queue_full"
	DropReasonClosed    = "closed"
	DropReasonInvalid   = "invalid"
)

// BusMetrics records activity bus throughput and handler outcomes.
type BusMetrics struct {
	emitted   *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	delivered *prometheus.CounterVec
	failed    *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	timedOut  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewBusMetrics registers the bus metrics on the provided registerer.
func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	if reg == nil {
		return &BusMetrics{}
	}
	m := &BusMetrics{
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_events_emitted_total",
			Help: "Activity events accepted by the bus.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_events_dropped_total",
			Help: "Activity events rejected or dropped before dispatch.",
		}, []string{"reason"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_handler_delivered_total",
			Help: "Handler invocations that completed without error.",
		}, []string{"handler"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_handler_failed_total",
			Help: "Handler invocations that returned an error or panicked.",
		}, []string{"handler"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_handler_skipped_total",
			Help: "Events not delivered to a handler because its backlog was full.",
		}, []string{"handler"}),
		timedOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_handler_timeout_total",
			Help: "Handler invocations that exceeded the handler timeout.",
		}, []string{"handler"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "activity_handler_duration_seconds",
			Help:    "Duration of activity handler invocations in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler"}),
	}
	reg.MustRegister(m.emitted, m.dropped, m.delivered, m.failed, m.skipped, m.timedOut, m.duration)
	return m
}

// IncEmitted counts an accepted event.
func (m *BusMetrics) IncEmitted(eventType string) {
	if m == nil || m.emitted == nil {
		return
	}
	m.emitted.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDropped counts an event that never reached a handler.
func (m *BusMetrics) IncDropped(reason string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncHandlerSkipped counts an event not delivered to one handler because its backlog was full.
func (m *BusMetrics) IncHandlerSkipped(handler string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(handler)).Inc()
}

// ObserveHandler records the outcome and duration of one handler invocation.
func (m *BusMetrics) ObserveHandler(handler string, duration time.Duration, err error, timedOut bool) {
	if m == nil || m.duration == nil {
		return
	}
	handler = normalizeLabel(handler)
	m.duration.WithLabelValues(handler).Observe(duration.Seconds())
	switch {
	case timedOut:
		m.timedOut.WithLabelValues(handler).Inc()
		m.failed.WithLabelValues(handler).Inc()
	case err != nil:
		m.failed.WithLabelValues(handler).Inc()
	default:
		m.delivered.WithLabelValues(handler).Inc()
	}
}

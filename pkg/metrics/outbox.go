package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox delivery outcomes.
const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics counts notification events relayed to pubsub.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewOutboxMetrics registers the outbox publisher metrics on reg.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "khatabook_outbox_events_total",
			Help: "Outbox rows handled by the publisher by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "khatabook_outbox_delivery_lag_seconds",
			Help:    "Time from an event being queued to its publish acknowledgement.",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"topic"}),
	}
	reg.MustRegister(m.events, m.latency)
	return m
}

// IncOutcome counts one handled row.
func (m *OutboxMetrics) IncOutcome(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveLag records how long a published event waited in the outbox.
func (m *OutboxMetrics) ObserveLag(topic string, lag time.Duration) {
	if m == nil || m.latency == nil || lag < 0 {
		return
	}
	m.latency.WithLabelValues(normalizeLabel(topic)).Observe(lag.Seconds())
}

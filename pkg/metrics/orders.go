package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics counts order transitions and settlement actions.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	settlements *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by source and target status.",
	}, []string{"from", "to"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_settlement_actions_total",
		Help: "Settlement actions applied to orders.",
	}, []string{"action"})
	reg.MustRegister(transitions, settlements)
	return &OrderMetrics{
		transitions: transitions,
		settlements: settlements,
	}
}

// IncTransition records a committed status change.
func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncSettlement records a committed settlement action.
func (m *OrderMetrics) IncSettlement(action string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(action)).Inc()
}

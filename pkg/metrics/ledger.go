package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics counts khatabook postings and tail health.
type LedgerMetrics struct {
	postings  *prometheus.CounterVec
	conflicts prometheus.Counter
	drift     *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "khatabook_postings_total",
		Help: "Khatabook entries posted by entry and transaction type.",
	}, []string{"entry_type", "transaction_type"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "khatabook_tail_conflicts_total",
		Help: "Postings rejected because the scope tail moved concurrently.",
	})
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "khatabook_reconcile_drift_total",
		Help: "Scopes whose stored tail disagrees with the entry log.",
	}, []string{"field"})
	reg.MustRegister(postings, conflicts, drift)
	return &LedgerMetrics{
		postings:  postings,
		conflicts: conflicts,
		drift:     drift,
	}
}

// IncPosting increments the posting counter.
func (m *LedgerMetrics) IncPosting(entryType, transactionType string) {
	if m == nil || m.postings == nil {
		return
	}
	m.postings.WithLabelValues(normalizeLabel(entryType), normalizeLabel(transactionType)).Inc()
}

// IncConflict increments the tail conflict counter.
func (m *LedgerMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}

// IncDrift records a reconciliation mismatch on the named field.
func (m *LedgerMetrics) IncDrift(field string) {
	if m == nil || m.drift == nil {
		return
	}
	m.drift.WithLabelValues(normalizeLabel(field)).Inc()
}

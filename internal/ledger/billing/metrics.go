package billing

import (
	"github.com/prometheus/client_golang/prometheus"

	"syntra-ledger/internal/ledger"
)

// Metrics counts workflow outcomes. A nil *Metrics records nothing.
type Metrics struct {
	committedTotal *prometheus.CounterVec
	abortedTotal   *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		committedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "documents_committed_total",
			Help:      "Documents committed, by document type.",
		}, []string{"document_type"}),
		abortedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "workflows_aborted_total",
			Help:      "Workflows rolled back, by document type, failing stage and error kind.",
		}, []string{"document_type", "stage", "kind"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transaction_retries_total",
			Help:      "Transactions retried after a transient storage conflict.",
		}, []string{"document_type"}),
	}
	reg.MustRegister(m.committedTotal, m.abortedTotal, m.retriesTotal)
	return m
}

func (m *Metrics) recordCommit(kind string) {
	if m == nil {
		return
	}
	m.committedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) recordAbort(kind string, stage Stage, err error) {
	if m == nil {
		return
	}
	m.abortedTotal.WithLabelValues(kind, string(stage), ledger.Kind(err)).Inc()
}

func (m *Metrics) recordRetry(kind string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(kind).Inc()
}

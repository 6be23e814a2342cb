package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/banksampah-backend/pkg/errors"
)

// LedgerMetrics tracks balance mutations and degraded bookkeeping.
type LedgerMetrics struct {
	auditDegraded   *prometheus.CounterVec
	operations      *prometheus.CounterVec
	conflictRetries prometheus.Counter
	driftResidents  prometheus.Gauge
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	auditDegraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_audit_degraded_total",
		Help: "Audit entries that could not be persisted alongside a ledger mutation.",
	}, []string{"action"})
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by kind and outcome.",
	}, []string{"operation", "outcome"})
	conflictRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_conflict_retries_total",
		Help: "Units of work retried after a balance version conflict.",
	})
	driftResidents := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_balance_drift_residents",
		Help: "Residents whose cached balance disagreed with history on the last scan.",
	})
	reg.MustRegister(auditDegraded, operations, conflictRetries, driftResidents)
	return &LedgerMetrics{
		auditDegraded:   auditDegraded,
		operations:      operations,
		conflictRetries: conflictRetries,
		driftResidents:  driftResidents,
	}
}

func (m *LedgerMetrics) IncAuditDegraded(action string) {
	if m == nil || m.auditDegraded == nil {
		return
	}
	m.auditDegraded.WithLabelValues(normalizeLabel(action)).Inc()
}

func (m *LedgerMetrics) IncOperation(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

func (m *LedgerMetrics) IncConflictRetry() {
	if m == nil || m.conflictRetries == nil {
		return
	}
	m.conflictRetries.Inc()
}

func (m *LedgerMetrics) SetDriftResidents(n int) {
	if m == nil || m.driftResidents == nil {
		return
	}
	m.driftResidents.Set(float64(n))
}

// Outcome maps an operation result to a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}

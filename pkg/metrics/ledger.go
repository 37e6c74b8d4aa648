package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records outcomes of voucher ledger operations.
type LedgerMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	retries  prometheus.Counter
	warnings *prometheus.CounterVec
	audit    prometheus.Counter
}

// NewLedgerMetrics registers the ledger collectors on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer, namespace string) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ledger_operation_duration_seconds",
		Help:      "Duration of ledger operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_operation_success_total",
		Help:      "Committed ledger operations.",
	}, []string{"op"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_operation_failure_total",
		Help:      "Rejected or failed ledger operations by error code.",
	}, []string{"op", "code"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_numbering_retries_total",
		Help:      "Voucher number collisions retried inside a transaction.",
	})
	warnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_warnings_total",
		Help:      "Advisory warnings returned alongside successful operations.",
	}, []string{"kind"})
	audit := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_audit_write_failures_total",
		Help:      "Audit entries that could not be written.",
	})
	reg.MustRegister(duration, success, failure, retries, warnings, audit)
	return &LedgerMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		retries:  retries,
		warnings: warnings,
		audit:    audit,
	}
}

// ObserveDuration records the duration for the named operation.
func (m *LedgerMetrics) ObserveDuration(op string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (m *LedgerMetrics) IncSuccess(op string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (m *LedgerMetrics) IncFailure(op, code string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(op), normalizeLabel(code)).Inc()
}

func (m *LedgerMetrics) IncNumberingRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

func (m *LedgerMetrics) IncWarning(kind string) {
	if m == nil || m.warnings == nil {
		return
	}
	m.warnings.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *LedgerMetrics) IncAuditFailure() {
	if m == nil || m.audit == nil {
		return
	}
	m.audit.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MigrationMetrics counts schema units applied or failed at startup.
type MigrationMetrics struct {
	applied *prometheus.CounterVec
	failed  *prometheus.CounterVec
}

func NewMigrationMetrics(reg prometheus.Registerer, namespace string) *MigrationMetrics {
	if reg == nil {
		return &MigrationMetrics{}
	}
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schema_migrations_applied_total",
		Help:      "Schema units applied by version.",
	}, []string{"version"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "schema_migrations_failed_total",
		Help:      "Schema units that failed by version.",
	}, []string{"version"})
	reg.MustRegister(applied, failed)
	return &MigrationMetrics{applied: applied, failed: failed}
}

func (m *MigrationMetrics) IncApplied(version int64) {
	if m == nil || m.applied == nil {
		return
	}
	m.applied.WithLabelValues(strconv.FormatInt(version, 10)).Inc()
}

func (m *MigrationMetrics) IncFailure(version int64) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(strconv.FormatInt(version, 10)).Inc()
}

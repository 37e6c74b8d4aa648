package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)
	var total float64
	for m := range ch {
		var pb dto.Metric
		require.NoError(t, m.Write(&pb))
		total += pb.GetCounter().GetValue()
	}
	return total
}

func TestLedgerMetricsRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg, "test")

	m.IncSuccess("create")
	m.IncSuccess("create")
	m.IncFailure("update", "PERIOD_LOCKED")
	m.IncNumberingRetry()
	m.IncWarning("earmark_negative")
	m.IncAuditFailure()
	m.ObserveDuration("create", 10*time.Millisecond)

	require.Equal(t, 2.0, counterValue(t, m.success.WithLabelValues("create")))
	require.Equal(t, 1.0, counterValue(t, m.failure.WithLabelValues("update", "PERIOD_LOCKED")))
	require.Equal(t, 1.0, counterValue(t, m.retries))
	require.Equal(t, 1.0, counterValue(t, m.warnings.WithLabelValues("earmark_negative")))
	require.Equal(t, 1.0, counterValue(t, m.audit))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNilRecordersAreNoOps(t *testing.T) {
	var m *LedgerMetrics
	m.IncSuccess("create")
	m.IncFailure("create", "")
	m.IncNumberingRetry()
	m.ObserveDuration("create", time.Second)

	empty := NewLedgerMetrics(nil, "")
	empty.IncWarning("x")

	var mm *MigrationMetrics
	mm.IncApplied(1)
	NewMigrationMetrics(nil, "").IncFailure(2)
}

func TestMigrationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMigrationMetrics(reg, "test")
	m.IncApplied(5)
	m.IncApplied(5)
	require.Equal(t, 2.0, counterValue(t, m.applied.WithLabelValues("5")))
}

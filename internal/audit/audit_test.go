package audit

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/internal/settings"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db/dbtest"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/metrics"
)

func fixedClock(ts string) func() time.Time {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestCanonicalizeSortsKeys(t *testing.T) {
	type shape struct {
		Zeta  int    `json:"zeta"`
		Alpha string `json:"alpha"`
	}
	a, err := Canonicalize(map[string]any{"b": 1, "a": map[string]any{"y": 2, "x": 1.5}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"x":1.5,"y":2},"b":1}`, a)

	s, err := Canonicalize(shape{Zeta: 3, Alpha: "v"})
	require.NoError(t, err)
	m, err := Canonicalize(map[string]any{"alpha": "v", "zeta": 3})
	require.NoError(t, err)
	assert.Equal(t, s, m)

	empty, err := Canonicalize(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)
}

func TestHashDeterminism(t *testing.T) {
	actor := int64(7)
	d1, err := Canonicalize(map[string]any{"id": 1, "gross": "100.00"})
	require.NoError(t, err)
	d2, err := Canonicalize(map[string]any{"gross": "100.00", "id": 1})
	require.NoError(t, err)

	ts := "2025-01-01T10:00:00.000Z"
	assert.Equal(t, Hash(d1, ts, &actor), Hash(d2, ts, &actor), "reordered keys hash the same")
	assert.NotEqual(t, Hash(d1, ts, &actor), Hash(d1, "2025-01-01T10:00:00.001Z", &actor), "timestamp is bound")
	assert.NotEqual(t, Hash(d1, ts, &actor), Hash(d1, ts, nil), "actor is bound")
	assert.Len(t, Hash(d1, ts, nil), 64)
}

func TestWriteStoresHashedEntry(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	log := New(client.DB(), Options{Clock: fixedClock("2025-02-03T04:05:06.789Z")})
	actor := int64(3)

	row, err := log.Write(ctx, Entry{
		ActorID:  &actor,
		Entity:   enums.AuditEntityVoucher,
		EntityID: 12,
		Action:   enums.AuditActionCreate,
		Diff:     map[string]any{"voucherNo": "2025-02-03_00001", "id": 12},
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-02-03T04:05:06.789Z", row.CreatedAt)
	assert.Equal(t, `{"id":12,"voucherNo":"2025-02-03_00001"}`, row.DiffJSON)
	assert.Equal(t, Hash(row.DiffJSON, row.CreatedAt, &actor), row.Hash)

	ok, err := log.Verify(ctx, row.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := log.List(ctx, Filter{Entity: enums.AuditEntityVoucher, EntityID: &row.EntityID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, row.Hash, rows[0].Hash)
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	log := New(client.DB(), Options{})

	row, err := log.Write(ctx, Entry{Entity: enums.AuditEntitySystem, Action: enums.AuditActionClearAll, Diff: map[string]any{"deleted": 2}})
	require.NoError(t, err)

	require.NoError(t, client.DB().Exec(`DROP TRIGGER trg_audit_log_no_update`).Error)
	require.NoError(t, client.DB().Exec(`UPDATE audit_log SET diff_json = '{"deleted":0}' WHERE id = ?`, row.ID).Error)

	ok, err := log.Verify(ctx, row.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = log.Verify(ctx, 999)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestWriteRejectsUnknownAction(t *testing.T) {
	log := New(dbtest.New(t).DB(), Options{})
	_, err := log.Write(context.Background(), Entry{Entity: enums.AuditEntityVoucher, Action: "RENAME"})
	assert.Error(t, err)
}

func TestRecordFailureKeepsPrimaryMutation(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	reg := prometheus.NewRegistry()
	log := New(client.DB(), Options{Metrics: metrics.NewLedgerMetrics(reg, "test")})
	store := settings.NewStore(client.DB())

	require.NoError(t, client.DB().Exec(`CREATE TRIGGER trg_audit_fail BEFORE INSERT ON audit_log BEGIN SELECT RAISE(ABORT, 'audit offline'); END`).Error)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, store.WithTx(tx).Set(ctx, "feature", true))
		row := log.WithTx(tx).Record(ctx, Entry{Entity: enums.AuditEntitySystem, Action: enums.AuditActionUpdate, Diff: map[string]any{"feature": true}})
		assert.Nil(t, row)
		return nil
	})
	require.NoError(t, err)

	on, err := store.Bool(ctx, "feature", false)
	require.NoError(t, err)
	assert.True(t, on, "primary write committed despite audit failure")
	assert.Equal(t, 1.0, gathered(t, reg, "test_ledger_audit_write_failures_total"))

	var count int64
	require.NoError(t, client.DB().Table("audit_log").Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordUnencodableDiff(t *testing.T) {
	log := New(dbtest.New(t).DB(), Options{})
	row := log.Record(context.Background(), Entry{Entity: enums.AuditEntitySystem, Action: enums.AuditActionUpdate, Diff: map[string]any{"fn": func() {}}})
	assert.Nil(t, row)
}

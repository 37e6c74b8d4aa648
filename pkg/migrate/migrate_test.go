package migrate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vereinskasse/vereinskasse-backend/pkg/config"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := config.DBConfig{Path: filepath.Join(t.TempDir(), "migrate.db")}
	conn, err := db.Open(cfg.DSN(), nil)
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func schemaDump(t *testing.T, sqlDB *sql.DB) string {
	t.Helper()
	rows, err := sqlDB.Query(`SELECT type, name, COALESCE(sql, '') FROM sqlite_master WHERE name NOT LIKE 'sqlite_%' ORDER BY type, name`)
	require.NoError(t, err)
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var typ, name, ddl string
		require.NoError(t, rows.Scan(&typ, &name, &ddl))
		b.WriteString(typ + " " + name + " " + ddl + "\n")
	}
	require.NoError(t, rows.Err())
	return b.String()
}

func columnsOf(t *testing.T, sqlDB *sql.DB, table string) map[string]bool {
	t.Helper()
	tx, err := sqlDB.Begin()
	require.NoError(t, err)
	defer tx.Rollback()
	cols, err := tableColumns(context.Background(), tx, table)
	require.NoError(t, err)
	return cols
}

func appliedVersions(t *testing.T, sqlDB *sql.DB) []int64 {
	t.Helper()
	rows, err := sqlDB.Query(`SELECT version_id FROM schema_migrations WHERE version_id > 0 ORDER BY version_id`)
	require.NoError(t, err)
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var v int64
		require.NoError(t, rows.Scan(&v))
		out = append(out, v)
	}
	return out
}

func TestUpAppliesAllUnitsInOrder(t *testing.T) {
	sqlDB := openTestDB(t)
	runner, err := NewRunner(sqlDB, Options{})
	require.NoError(t, err)

	applied, err := runner.Up(context.Background())
	require.NoError(t, err)

	versions := make([]int64, 0, len(applied))
	for _, a := range applied {
		versions = append(versions, a.Version)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, versions)
	assert.Equal(t, versions, appliedVersions(t, sqlDB))

	cols := columnsOf(t, sqlDB, "vouchers")
	for _, c := range []string{"transfer_from", "transfer_to", "earmark_amount", "budget_id", "budget_amount", "reversed_by_id", "original_id"} {
		assert.True(t, cols[c], "expected column %s", c)
	}

	v, err := runner.Version(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 10, v)
}

func TestUpIsIdempotent(t *testing.T) {
	sqlDB := openTestDB(t)
	runner, err := NewRunner(sqlDB, Options{})
	require.NoError(t, err)

	_, err = runner.Up(context.Background())
	require.NoError(t, err)
	first := schemaDump(t, sqlDB)

	again, err := runner.Up(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again, "no unit should run twice")
	assert.Equal(t, first, schemaDump(t, sqlDB))
	assert.Len(t, appliedVersions(t, sqlDB), 10)
}

func TestLegacyTransferUnitRescuesDuplicateColumn(t *testing.T) {
	sqlDB := openTestDB(t)
	runner, err := NewRunner(sqlDB, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = runner.UpTo(ctx, 4)
	require.NoError(t, err)

	// A historical install added one of the columns without recording v5.
	_, err = sqlDB.Exec(`ALTER TABLE vouchers ADD COLUMN transfer_from TEXT`)
	require.NoError(t, err)

	_, err = runner.Up(ctx)
	require.NoError(t, err)
	assert.Contains(t, appliedVersions(t, sqlDB), VersionTransferColumns)

	cols := columnsOf(t, sqlDB, "vouchers")
	assert.True(t, cols["transfer_from"])
	assert.True(t, cols["transfer_to"], "the missing sibling column is still added")
}

func TestDuplicateColumnOutsideRescueUnitIsFatal(t *testing.T) {
	sqlDB := openTestDB(t)
	broken := goose.NewGoMigration(11,
		&goose.GoFunc{RunTx: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "ALTER TABLE vouchers ADD COLUMN description TEXT")
			return err
		}},
		&goose.GoFunc{RunTx: noop},
	)
	later := goose.NewGoMigration(12, &goose.GoFunc{RunTx: noop}, &goose.GoFunc{RunTx: noop})

	runner, err := newRunner(sqlDB, Options{}, []*goose.Migration{broken, later})
	require.NoError(t, err)

	_, err = runner.Up(context.Background())
	require.Error(t, err)
	assert.True(t, db.IsDuplicateColumn(err), "unexpected error %v", err)

	versions := appliedVersions(t, sqlDB)
	assert.NotContains(t, versions, int64(11))
	assert.NotContains(t, versions, int64(12), "later units must not run after a failure")
	assert.Contains(t, versions, int64(10))
}

func TestProceduralUnitSkipsExistingColumns(t *testing.T) {
	sqlDB := openTestDB(t)
	runner, err := NewRunner(sqlDB, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = runner.UpTo(ctx, VersionTransferColumns)
	require.NoError(t, err)
	_, err = sqlDB.Exec(`ALTER TABLE vouchers ADD COLUMN budget_id INTEGER`)
	require.NoError(t, err)

	_, err = runner.UpTo(ctx, VersionAllocationColumns)
	require.NoError(t, err)
	assert.True(t, columnsOf(t, sqlDB, "vouchers")["budget_amount"])
}

func TestJunctionBackfill(t *testing.T) {
	sqlDB := openTestDB(t)
	runner, err := NewRunner(sqlDB, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = runner.UpTo(ctx, VersionAllocationColumns)
	require.NoError(t, err)

	_, err = sqlDB.Exec(`INSERT INTO earmarks (id, code, name, budget) VALUES (1, 'JUG', 'Jugendarbeit', 500)`)
	require.NoError(t, err)
	_, err = sqlDB.Exec(`INSERT INTO vouchers (year, seq_no, voucher_no, date, type, sphere, earmark_id, earmark_amount, gross_amount)
		VALUES (2024, 1, '2024-03-01_00001', '2024-03-01', 'IN', 'IDEELL', 1, NULL, 120.5)`)
	require.NoError(t, err)

	_, err = runner.Up(ctx)
	require.NoError(t, err)

	var amount float64
	require.NoError(t, sqlDB.QueryRow(`SELECT amount FROM voucher_earmarks WHERE voucher_id = 1 AND earmark_id = 1`).Scan(&amount))
	assert.InDelta(t, 120.5, amount, 0.0001)
}

func TestStatusReportsAppliedUnits(t *testing.T) {
	sqlDB := openTestDB(t)
	runner, err := NewRunner(sqlDB, Options{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = runner.UpTo(ctx, 3)
	require.NoError(t, err)

	statuses, err := runner.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 10)
	for _, s := range statuses {
		assert.Equal(t, s.Version <= 3, s.Applied, "version %d", s.Version)
	}
}

func TestAuditLogIsAppendOnly(t *testing.T) {
	sqlDB := openTestDB(t)
	runner, err := NewRunner(sqlDB, Options{})
	require.NoError(t, err)
	_, err = runner.Up(context.Background())
	require.NoError(t, err)

	_, err = sqlDB.Exec(`INSERT INTO audit_log (entity, entity_id, action, diff_json, hash, created_at) VALUES ('vouchers', 1, 'CREATE', '{}', 'x', '2025-01-01T00:00:00.000Z')`)
	require.NoError(t, err)

	_, err = sqlDB.Exec(`UPDATE audit_log SET hash = 'y'`)
	assert.ErrorContains(t, err, "append-only")
	_, err = sqlDB.Exec(`DELETE FROM audit_log`)
	assert.ErrorContains(t, err, "append-only")
}

func TestValidateEmbeddedDir(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestValidateDirRejectsReservedVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00005_clash.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestCreateSQLMigrationPicksNextVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00010_indexes.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	path, err := CreateSQLMigration(dir, "Add Voucher Notes")
	require.NoError(t, err)
	assert.Equal(t, "00011_add_voucher_notes.sql", filepath.Base(path))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "  !!  ")
	assert.Error(t, err)
}

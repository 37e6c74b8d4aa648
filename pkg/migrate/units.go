package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db"
	"github.com/vereinskasse/vereinskasse-backend/pkg/logger"
)

// Versions of the procedural units. SQL units own every other version.
const (
	VersionTransferColumns   int64 = 5
	VersionAllocationColumns int64 = 6
	VersionJunctionBackfill  int64 = 8
)

type column struct {
	name string
	ddl  string
}

var allocationColumns = []column{
	{name: "earmark_amount", ddl: "REAL"},
	{name: "budget_id", ddl: "INTEGER"},
	{name: "budget_amount", ddl: "REAL"},
	{name: "reversed_by_id", ddl: "INTEGER"},
	{name: "original_id", ddl: "INTEGER"},
}

func goUnits(logg *logger.Logger) []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(VersionTransferColumns,
			&goose.GoFunc{RunTx: addTransferColumns(logg)},
			&goose.GoFunc{RunTx: dropColumns("vouchers", "transfer_from", "transfer_to")},
		),
		goose.NewGoMigration(VersionAllocationColumns,
			&goose.GoFunc{RunTx: addMissingColumns("vouchers", allocationColumns)},
			&goose.GoFunc{RunTx: dropColumns("vouchers", "original_id", "reversed_by_id", "budget_amount", "budget_id", "earmark_amount")},
		),
		goose.NewGoMigration(VersionJunctionBackfill,
			&goose.GoFunc{RunTx: backfillJunctions},
			&goose.GoFunc{RunTx: noop},
		),
	}
}

// addTransferColumns is the historical unit that some installations applied
// partially before its version was recorded. A duplicate column here means
// the column is already in place, so the unit is still recorded as applied.
// This rescue is specific to this unit.
func addTransferColumns(logg *logger.Logger) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range []string{
			"ALTER TABLE vouchers ADD COLUMN transfer_from TEXT",
			"ALTER TABLE vouchers ADD COLUMN transfer_to TEXT",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				if db.IsDuplicateColumn(err) {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"version":   VersionTransferColumns,
						"statement": stmt,
					}), "column already present, recording legacy migration as applied")
					continue
				}
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	}
}

// addMissingColumns adds each column only if the table does not have it yet.
func addMissingColumns(table string, cols []column) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		existing, err := tableColumns(ctx, tx, table)
		if err != nil {
			return err
		}
		for _, c := range cols {
			if existing[c.name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, c.name, c.ddl)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	}
}

func dropColumns(table string, names ...string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		existing, err := tableColumns(ctx, tx, table)
		if err != nil {
			return err
		}
		for _, name := range names {
			if !existing[name] {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, name)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	}
}

// backfillJunctions projects the legacy single-reference columns into the
// junction tables for vouchers recorded before multi-assignment existed.
func backfillJunctions(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`INSERT OR IGNORE INTO voucher_earmarks (voucher_id, earmark_id, amount)
		 SELECT v.id, v.earmark_id, COALESCE(v.earmark_amount, ABS(v.gross_amount))
		 FROM vouchers v
		 WHERE v.earmark_id IS NOT NULL
		   AND EXISTS (SELECT 1 FROM earmarks e WHERE e.id = v.earmark_id)
		   AND NOT EXISTS (SELECT 1 FROM voucher_earmarks ve WHERE ve.voucher_id = v.id)`,
		`INSERT OR IGNORE INTO voucher_budgets (voucher_id, budget_id, amount)
		 SELECT v.id, v.budget_id, COALESCE(v.budget_amount, ABS(v.gross_amount))
		 FROM vouchers v
		 WHERE v.budget_id IS NOT NULL
		   AND EXISTS (SELECT 1 FROM budgets b WHERE b.id = v.budget_id)
		   AND NOT EXISTS (SELECT 1 FROM voucher_budgets vb WHERE vb.voucher_id = v.id)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("backfill junctions: %w", err)
		}
	}
	return nil
}

func noop(context.Context, *sql.Tx) error { return nil }

func tableColumns(ctx context.Context, tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan %s columns: %w", table, err)
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}

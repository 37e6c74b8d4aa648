package balances

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/money"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

// Queries are read-only aggregations over vouchers and their allocations.
// Bind them to a write transaction with WithTx so validation reads see the
// same snapshot as the write.
type Queries struct {
	db *gorm.DB
}

func NewQueries(db *gorm.DB) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *gorm.DB) *Queries {
	if tx == nil {
		return q
	}
	return &Queries{db: tx}
}

// Options bound a usage query.
type Options struct {
	// AsOf includes vouchers dated on or before it. Zero means no bound.
	AsOf types.Date
	// ExcludeVoucherID leaves one voucher out, e.g. the one being edited.
	ExcludeVoucherID int64
}

// EarmarkUsage is the running position of an earmark.
type EarmarkUsage struct {
	EarmarkID int64           `json:"earmarkId"`
	Allocated decimal.Decimal `json:"allocated"`
	Released  decimal.Decimal `json:"released"`
	Balance   decimal.Decimal `json:"balance"`
	Budget    decimal.Decimal `json:"budget"`
	Remaining decimal.Decimal `json:"remaining"`
}

// BudgetUsage is the position of a budget envelope. Remaining is Planned - Spent.
type BudgetUsage struct {
	BudgetID  int64           `json:"budgetId"`
	Planned   decimal.Decimal `json:"planned"`
	Spent     decimal.Decimal `json:"spent"`
	Inflow    decimal.Decimal `json:"inflow"`
	Remaining decimal.Decimal `json:"remaining"`
}

type flowRow struct {
	Inflow  float64 `gorm:"column:inflow"`
	Outflow float64 `gorm:"column:outflow"`
}

// allocationFlowSQL sums IN and OUT allocations against one target. Junction
// rows are authoritative; a voucher only counts through its legacy column
// when it has no junction row at all.
const allocationFlowSQL = `
SELECT
  COALESCE(SUM(CASE WHEN x.type = 'IN' THEN x.amount ELSE 0 END), 0) AS inflow,
  COALESCE(SUM(CASE WHEN x.type = 'OUT' THEN x.amount ELSE 0 END), 0) AS outflow
FROM (
  SELECT v.id AS id, v.type AS type, v.date AS date, ABS(j.amount) AS amount
  FROM %[1]s j JOIN vouchers v ON v.id = j.voucher_id
  WHERE j.%[2]s = @target
  UNION ALL
  SELECT v.id, v.type, v.date, ABS(COALESCE(v.%[3]s, v.gross_amount))
  FROM vouchers v
  WHERE v.%[2]s = @target
    AND NOT EXISTS (SELECT 1 FROM %[1]s j2 WHERE j2.voucher_id = v.id)
) x
WHERE (@as_of = '' OR x.date <= @as_of)
  AND x.id <> @exclude`

var (
	earmarkFlowSQL = fmt.Sprintf(allocationFlowSQL, "voucher_earmarks", "earmark_id", "earmark_amount")
	budgetFlowSQL  = fmt.Sprintf(allocationFlowSQL, "voucher_budgets", "budget_id", "budget_amount")
)

func (q *Queries) flows(ctx context.Context, query string, target int64, opts Options) (decimal.Decimal, decimal.Decimal, error) {
	asOf := ""
	if !opts.AsOf.IsZero() {
		asOf = opts.AsOf.String()
	}
	var row flowRow
	err := q.db.WithContext(ctx).Raw(query, map[string]any{
		"target":  target,
		"as_of":   asOf,
		"exclude": opts.ExcludeVoucherID,
	}).Scan(&row).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate allocations")
	}
	return toDecimal(row.Inflow), toDecimal(row.Outflow), nil
}

// EarmarkUsage returns allocated (IN), released (OUT), balance and remaining
// (ceiling + balance) for the earmark.
func (q *Queries) EarmarkUsage(ctx context.Context, earmarkID int64, opts Options) (*EarmarkUsage, error) {
	var earmark models.Earmark
	if err := q.db.WithContext(ctx).Where("id = ?", earmarkID).Take(&earmark).Error; err != nil {
		return nil, lookupErr(err, "earmark", earmarkID)
	}
	allocated, released, err := q.flows(ctx, earmarkFlowSQL, earmarkID, opts)
	if err != nil {
		return nil, err
	}
	ceiling := decimal.Zero
	if earmark.Budget != nil {
		ceiling = money.Round2(*earmark.Budget)
	}
	balance := allocated.Sub(released)
	return &EarmarkUsage{
		EarmarkID: earmarkID,
		Allocated: allocated,
		Released:  released,
		Balance:   balance,
		Budget:    ceiling,
		Remaining: ceiling.Add(balance),
	}, nil
}

func (q *Queries) BudgetUsage(ctx context.Context, budgetID int64, opts Options) (*BudgetUsage, error) {
	var budget models.Budget
	if err := q.db.WithContext(ctx).Where("id = ?", budgetID).Take(&budget).Error; err != nil {
		return nil, lookupErr(err, "budget", budgetID)
	}
	inflow, spent, err := q.flows(ctx, budgetFlowSQL, budgetID, opts)
	if err != nil {
		return nil, err
	}
	planned := money.Round2(budget.AmountPlanned)
	return &BudgetUsage{
		BudgetID:  budgetID,
		Planned:   planned,
		Spent:     spent,
		Inflow:    inflow,
		Remaining: planned.Sub(spent),
	}, nil
}

func toDecimal(f float64) decimal.Decimal {
	return money.Round2(decimal.NewFromFloat(f))
}

func lookupErr(err error, kind string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s %d not found", kind, id)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read %s %d", kind, id))
}

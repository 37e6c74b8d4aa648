package vouchers

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
)

// projectFirst returns the legacy single-reference columns for a list: its
// first entry, or nulls for an empty list.
func projectFirst(list []Allocation) (*int64, *decimal.Decimal) {
	if len(list) == 0 {
		return nil, nil
	}
	id, amount := list[0].ID, list[0].Amount
	return &id, &amount
}

// replaceBudgets makes list the voucher's budget allocations and projects the
// first one into vouchers.budget_id/budget_amount.
func replaceBudgets(ctx context.Context, tx *gorm.DB, v *models.Voucher, list []Allocation) error {
	if err := tx.WithContext(ctx).Where("voucher_id = ?", v.ID).Delete(&models.VoucherBudget{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear budget allocations")
	}
	for _, a := range list {
		row := models.VoucherBudget{VoucherID: v.ID, BudgetID: a.ID, Amount: a.Amount}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write budget allocation")
		}
	}
	v.BudgetID, v.BudgetAmount = projectFirst(list)
	err := tx.WithContext(ctx).Model(&models.Voucher{}).Where("id = ?", v.ID).Updates(map[string]any{
		"budget_id":     v.BudgetID,
		"budget_amount": v.BudgetAmount,
	}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "project budget allocation")
	}
	return nil
}

// replaceEarmarks is replaceBudgets for earmarks.
func replaceEarmarks(ctx context.Context, tx *gorm.DB, v *models.Voucher, list []Allocation) error {
	if err := tx.WithContext(ctx).Where("voucher_id = ?", v.ID).Delete(&models.VoucherEarmark{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear earmark allocations")
	}
	for _, a := range list {
		row := models.VoucherEarmark{VoucherID: v.ID, EarmarkID: a.ID, Amount: a.Amount}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write earmark allocation")
		}
	}
	v.EarmarkID, v.EarmarkAmount = projectFirst(list)
	err := tx.WithContext(ctx).Model(&models.Voucher{}).Where("id = ?", v.ID).Updates(map[string]any{
		"earmark_id":     v.EarmarkID,
		"earmark_amount": v.EarmarkAmount,
	}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "project earmark allocation")
	}
	return nil
}

// currentAllocations reads the junction rows of a voucher. Vouchers without
// junction rows fall back to their legacy columns.
func currentAllocations(ctx context.Context, tx *gorm.DB, v *models.Voucher) (budgets, earmarks []Allocation, err error) {
	var budgetRows []models.VoucherBudget
	if err := tx.WithContext(ctx).Where("voucher_id = ?", v.ID).Order("id ASC").Find(&budgetRows).Error; err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read budget allocations")
	}
	var earmarkRows []models.VoucherEarmark
	if err := tx.WithContext(ctx).Where("voucher_id = ?", v.ID).Order("id ASC").Find(&earmarkRows).Error; err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read earmark allocations")
	}

	for _, r := range budgetRows {
		budgets = append(budgets, Allocation{ID: r.BudgetID, Amount: r.Amount})
	}
	if len(budgets) == 0 && v.BudgetID != nil {
		budgets = []Allocation{{ID: *v.BudgetID, Amount: legacyAmount(v.BudgetAmount, v.GrossAmount)}}
	}
	for _, r := range earmarkRows {
		earmarks = append(earmarks, Allocation{ID: r.EarmarkID, Amount: r.Amount})
	}
	if len(earmarks) == 0 && v.EarmarkID != nil {
		earmarks = []Allocation{{ID: *v.EarmarkID, Amount: legacyAmount(v.EarmarkAmount, v.GrossAmount)}}
	}
	return budgets, earmarks, nil
}

func legacyAmount(amount *decimal.Decimal, gross decimal.Decimal) decimal.Decimal {
	if amount != nil {
		return amount.Abs()
	}
	return gross.Abs()
}

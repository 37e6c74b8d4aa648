package vouchers

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/internal/audit"
	"github.com/vereinskasse/vereinskasse-backend/internal/periodlock"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/money"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
	"github.com/vereinskasse/vereinskasse-backend/pkg/validators"
)

// Update changes an existing voucher. Moving it to another date, year or
// sphere assigns a new number and reports it as a warning.
func (s *Service) Update(ctx context.Context, in UpdateVoucherInput) (*UpdateResult, error) {
	in.PaymentMethod = normalizePayment(in.PaymentMethod)
	in.TransferFrom = normalizePayment(in.TransferFrom)
	in.TransferTo = normalizePayment(in.TransferTo)
	if err := validators.Struct(in); err != nil {
		return nil, err
	}
	if in.Date != nil && in.Date.IsZero() {
		return nil, validationErr("date cannot be empty")
	}

	result := &UpdateResult{ID: in.ID, Warnings: []string{}}
	ctx = s.logg.WithVoucherID(s.logg.WithActorID(ctx, in.ActorID), in.ID)
	err := s.mutate(ctx, opUpdate, func(ctx context.Context, tx *gorm.DB) error {
		before, err := s.view(ctx, tx, in.ID)
		if err != nil {
			return err
		}
		if err := s.assertMutable(ctx, tx, before.ID); err != nil {
			return err
		}

		v := before.Voucher
		newDate := v.Date
		if in.Date != nil {
			newDate = *in.Date
		}
		state, err := s.lock.WithTx(tx).Load(ctx)
		if err != nil {
			return err
		}
		if err := periodlock.Assert(state, v.Date, opUpdate); err != nil {
			return err
		}
		if err := periodlock.Assert(state, newDate, opUpdate); err != nil {
			return err
		}

		oldNo := v.VoucherNo
		renumber := newDate != v.Date || newDate.Year != v.Year
		typeChanged := in.Type != nil && *in.Type != v.Type
		v.Date = newDate
		if in.Type != nil {
			v.Type = *in.Type
		}
		if in.Sphere != nil && *in.Sphere != v.Sphere {
			v.Sphere = *in.Sphere
			renumber = true
		}

		amounts, amountsChanged, err := updateAmounts(money.Amounts{
			Net:   v.NetAmount,
			Rate:  v.VatRate,
			Vat:   v.VatAmount,
			Gross: v.GrossAmount,
		}, in)
		if err != nil {
			return err
		}
		v.NetAmount, v.VatRate, v.VatAmount, v.GrossAmount = amounts.Net, amounts.Rate, amounts.Vat, amounts.Gross

		if err := applyPayment(&v, in); err != nil {
			return err
		}
		if in.CategoryID.Valid {
			v.CategoryID = in.CategoryID.Value
		}
		if in.Description != nil {
			v.Description = optionalText(*in.Description)
		}
		if in.Counterparty != nil {
			v.Counterparty = optionalText(*in.Counterparty)
		}

		currentBudgets, currentEarmarks, err := currentAllocations(ctx, tx, &v)
		if err != nil {
			return err
		}
		budgets, budgetsChanged, err := updatedAllocations("budget", in.Budgets, in.BudgetID, in.BudgetAmount, v.GrossAmount)
		if err != nil {
			return err
		}
		if !budgetsChanged {
			budgets = currentBudgets
		}
		earmarks, earmarksChanged, err := updatedAllocations("earmark", in.Earmarks, in.EarmarkID, in.EarmarkAmount, v.GrossAmount)
		if err != nil {
			return err
		}
		if !earmarksChanged {
			earmarks = currentEarmarks
		}

		dateChanged := newDate != before.Date
		if budgetsChanged || dateChanged {
			if err := s.checkBudgets(ctx, tx, budgets, v.Date); err != nil {
				return err
			}
		}
		if earmarksChanged || dateChanged || typeChanged || amountsChanged {
			if err := s.checkEarmarks(ctx, tx, earmarks, v.Date, v.Type, v.ID, &result.Warnings); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		v.UpdatedAt = &now
		if renumber {
			if err := s.assignNumber(ctx, tx, &v, func(tx *gorm.DB) error {
				return tx.Save(&v).Error
			}); err != nil {
				return err
			}
			s.warn(ctx, &result.Warnings, "renumbered",
				fmt.Sprintf("voucher renumbered from %s to %s", oldNo, v.VoucherNo))
		} else if err := tx.WithContext(ctx).Save(&v).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save voucher")
		}

		if budgetsChanged {
			if err := replaceBudgets(ctx, tx, &v, budgets); err != nil {
				return err
			}
		}
		if earmarksChanged {
			if err := replaceEarmarks(ctx, tx, &v, earmarks); err != nil {
				return err
			}
		}
		if in.Tags != nil {
			if err := s.refs.WithTx(tx).ReplaceVoucherTags(ctx, v.ID, in.Tags); err != nil {
				return err
			}
		}

		after, err := s.view(ctx, tx, v.ID)
		if err != nil {
			return err
		}
		s.audit.WithTx(tx).Record(ctx, audit.Entry{
			ActorID:  in.ActorID,
			Entity:   enums.AuditEntityVoucher,
			EntityID: v.ID,
			Action:   enums.AuditActionUpdate,
			Diff: map[string]any{
				"before":  before,
				"after":   after,
				"changes": changedFields(before, after),
			},
		})
		result.VoucherNo = v.VoucherNo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// assertMutable rejects changes to cash advance placeholders.
func (s *Service) assertMutable(ctx context.Context, tx *gorm.DB, id int64) error {
	placeholder, err := s.refs.WithTx(tx).IsPlaceholder(ctx, id)
	if err != nil {
		return err
	}
	if placeholder {
		return pkgerrors.Newf(pkgerrors.CodePlaceholderImmutable,
			"voucher %d is held by a cash advance and cannot be changed", id).
			WithDetails(map[string]any{"id": id})
	}
	return nil
}

// applyPayment merges payment fields. Leaving TRANSFER drops the transfer
// pair unless the input sets it again.
func applyPayment(v *models.Voucher, in UpdateVoucherInput) error {
	if in.PaymentMethod != nil {
		v.PaymentMethod = in.PaymentMethod
	}
	if in.TransferFrom != nil {
		v.TransferFrom = in.TransferFrom
	}
	if in.TransferTo != nil {
		v.TransferTo = in.TransferTo
	}
	if v.Type != enums.VoucherTypeTransfer && in.TransferFrom == nil && in.TransferTo == nil {
		v.TransferFrom, v.TransferTo = nil, nil
	}
	return checkPayment(v.Type, v.PaymentMethod, v.TransferFrom, v.TransferTo)
}

// updatedAllocations resolves the allocation change of an update. A cleared
// single reference yields an empty list.
func updatedAllocations(kind string, list []Allocation, single types.NullableInt64, amount *decimal.Decimal, gross decimal.Decimal) ([]Allocation, bool, error) {
	if list != nil {
		return allocationList(kind, list, nil, nil, gross)
	}
	if !single.Valid {
		return nil, false, nil
	}
	if single.Value == nil {
		return []Allocation{}, true, nil
	}
	return allocationList(kind, nil, single.Value, amount, gross)
}

// changedFields maps each top-level field that differs to its old and new value.
func changedFields(before, after any) map[string]any {
	b, a := asFieldMap(before), asFieldMap(after)
	changes := map[string]any{}
	for key, newVal := range a {
		if key == "updatedAt" {
			continue
		}
		if oldVal := b[key]; !reflect.DeepEqual(oldVal, newVal) {
			changes[key] = map[string]any{"from": oldVal, "to": newVal}
		}
	}
	return changes
}

func asFieldMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

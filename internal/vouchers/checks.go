package vouchers

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/internal/balances"
	"github.com/vereinskasse/vereinskasse-backend/internal/settings"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/money"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

var maxVatRate = decimal.NewFromInt(100)

func validationErr(format string, args ...any) error {
	return pkgerrors.Newf(pkgerrors.CodeValidation, format, args...)
}

// normalizePayment maps accepted spellings such as "CASH" or "bank" onto the
// stored value. Unknown values are returned unchanged for validation to reject.
func normalizePayment(m *enums.PaymentMethod) *enums.PaymentMethod {
	if m == nil {
		return nil
	}
	parsed, err := enums.ParsePaymentMethod(string(*m))
	if err != nil {
		return m
	}
	return &parsed
}

// createAmounts applies the net-or-gross rule: exactly one must be given.
func createAmounts(in CreateVoucherInput) (money.Amounts, error) {
	rate := decimal.Zero
	if in.VatRate != nil {
		rate = *in.VatRate
	}
	if err := checkRate(rate); err != nil {
		return money.Amounts{}, err
	}
	switch {
	case in.NetAmount != nil && in.GrossAmount != nil:
		return money.Amounts{}, validationErr("provide either netAmount or grossAmount, not both")
	case in.NetAmount != nil:
		return money.FromNet(*in.NetAmount, rate), nil
	case in.GrossAmount != nil:
		return money.FromGross(*in.GrossAmount, rate), nil
	default:
		return money.Amounts{}, validationErr("netAmount or grossAmount is required")
	}
}

// updateAmounts resolves financial changes with net over gross over rate-only
// precedence. A rate-only change recomputes from the stored net amount unless
// the voucher was booked gross-first.
func updateAmounts(current money.Amounts, in UpdateVoucherInput) (money.Amounts, bool, error) {
	rate := current.Rate
	if in.VatRate != nil {
		rate = *in.VatRate
	}
	if err := checkRate(rate); err != nil {
		return current, false, err
	}
	switch {
	case in.NetAmount != nil:
		return money.FromNet(*in.NetAmount, rate), true, nil
	case in.GrossAmount != nil:
		return money.FromGross(*in.GrossAmount, rate), true, nil
	case in.VatRate != nil:
		if current.Net.IsZero() {
			current.Rate = rate
			return current, true, nil
		}
		return money.FromNet(current.Net, rate), true, nil
	default:
		return current, false, nil
	}
}

func checkRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(maxVatRate) {
		return validationErr("vatRate must be between 0 and 100, got %s", rate)
	}
	return nil
}

func checkPayment(typ enums.VoucherType, method, from, to *enums.PaymentMethod) error {
	if typ == enums.VoucherTypeTransfer {
		if from == nil || to == nil {
			return validationErr("transfers need transferFrom and transferTo")
		}
		if *from == *to {
			return validationErr("transferFrom and transferTo must differ")
		}
		return nil
	}
	if from != nil || to != nil {
		return validationErr("transferFrom/transferTo are only valid for TRANSFER vouchers")
	}
	return nil
}

// allocationList turns the list or single form into a normalized list. The
// single form defaults its amount to the absolute gross amount. ok is false
// when neither form was given.
func allocationList(kind string, list []Allocation, singleID *int64, singleAmount *decimal.Decimal, gross decimal.Decimal) ([]Allocation, bool, error) {
	switch {
	case list != nil:
	case singleID != nil:
		amount := gross.Abs()
		if singleAmount != nil {
			amount = *singleAmount
		}
		list = []Allocation{{ID: *singleID, Amount: amount}}
	default:
		return nil, false, nil
	}

	out := make([]Allocation, 0, len(list))
	seen := make(map[int64]struct{}, len(list))
	for _, a := range list {
		if a.ID <= 0 {
			return nil, true, validationErr("%s id must be positive", kind)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, true, validationErr("%s %d is assigned twice", kind, a.ID)
		}
		seen[a.ID] = struct{}{}
		amount := money.Round2(a.Amount)
		if !amount.IsPositive() {
			return nil, true, validationErr("%s %d amount must be positive", kind, a.ID)
		}
		out = append(out, Allocation{ID: a.ID, Amount: amount})
	}
	return out, true, nil
}

func withinWindow(start, end, d types.Date) bool {
	if !start.IsZero() && d.Before(start) {
		return false
	}
	if !end.IsZero() && d.After(end) {
		return false
	}
	return true
}

// checkEarmarks verifies existence, active flag and enforced time window of
// every earmark. OUT vouchers that would push an earmark below zero produce a
// warning unless negative earmarks are allowed.
func (s *Service) checkEarmarks(ctx context.Context, tx *gorm.DB, allocs []Allocation, date types.Date, typ enums.VoucherType, excludeID int64, warnings *[]string) error {
	if len(allocs) == 0 {
		return nil
	}
	allowNegative, err := s.allowNegativeEarmarks(ctx, tx)
	if err != nil {
		return err
	}
	refs := s.refs.WithTx(tx)
	for _, a := range allocs {
		earmark, err := refs.GetEarmark(ctx, a.ID)
		if err != nil {
			return err
		}
		if !earmark.IsActive {
			return validationErr("earmark %s is inactive", earmark.Code)
		}
		if earmark.EnforceTimeRange && !withinWindow(earmark.StartDate, earmark.EndDate, date) {
			return validationErr("date %s is outside the time range of earmark %s", date, earmark.Code)
		}
		if typ != enums.VoucherTypeOut || allowNegative {
			continue
		}
		if err := s.warnNegativeEarmark(ctx, tx, earmark.ID, earmark.Code, a.Amount, date, excludeID, warnings); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) allowNegativeEarmarks(ctx context.Context, tx *gorm.DB) (bool, error) {
	allow, err := s.settings.WithTx(tx).Bool(ctx, settings.KeyAllowNegativeEarmarks, false)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read earmark settings")
	}
	return allow, nil
}

func (s *Service) warnNegativeEarmark(ctx context.Context, tx *gorm.DB, earmarkID int64, code string, amount decimal.Decimal, date types.Date, excludeID int64, warnings *[]string) error {
	usage, err := s.queries.WithTx(tx).EarmarkUsage(ctx, earmarkID, balances.Options{AsOf: date, ExcludeVoucherID: excludeID})
	if err != nil {
		return err
	}
	after := usage.Remaining.Sub(amount)
	if after.IsNegative() {
		s.warn(ctx, warnings, "earmark_negative",
			fmt.Sprintf("earmark %s would go negative: remaining %s", code, money.Format(after)))
	}
	return nil
}

// checkBudgets verifies existence and the enforced time window of every budget.
func (s *Service) checkBudgets(ctx context.Context, tx *gorm.DB, allocs []Allocation, date types.Date) error {
	refs := s.refs.WithTx(tx)
	for _, a := range allocs {
		budget, err := refs.GetBudget(ctx, a.ID)
		if err != nil {
			return err
		}
		if budget.EnforceTimeRange && !withinWindow(budget.StartDate, budget.EndDate, date) {
			return validationErr("date %s is outside the time range of budget %d", date, budget.ID)
		}
	}
	return nil
}

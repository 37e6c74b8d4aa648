package vouchers

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/internal/audit"
	"github.com/vereinskasse/vereinskasse-backend/internal/periodlock"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	"github.com/vereinskasse/vereinskasse-backend/pkg/validators"
)

// Create books a new voucher with its allocations, files and tags.
func (s *Service) Create(ctx context.Context, in CreateVoucherInput) (*CreateResult, error) {
	in.PaymentMethod = normalizePayment(in.PaymentMethod)
	in.TransferFrom = normalizePayment(in.TransferFrom)
	in.TransferTo = normalizePayment(in.TransferTo)
	if err := validators.Struct(in); err != nil {
		return nil, err
	}
	if in.Date.IsZero() {
		return nil, validationErr("date is required")
	}
	amounts, err := createAmounts(in)
	if err != nil {
		return nil, err
	}
	if err := checkPayment(in.Type, in.PaymentMethod, in.TransferFrom, in.TransferTo); err != nil {
		return nil, err
	}
	budgets, hasBudgets, err := allocationList("budget", in.Budgets, in.BudgetID, in.BudgetAmount, amounts.Gross)
	if err != nil {
		return nil, err
	}
	earmarks, hasEarmarks, err := allocationList("earmark", in.Earmarks, in.EarmarkID, in.EarmarkAmount, amounts.Gross)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{Warnings: []string{}}
	var written []string
	ctx = s.logg.WithActorID(ctx, in.ActorID)
	err = s.mutate(ctx, opCreate, func(ctx context.Context, tx *gorm.DB) error {
		state, err := s.lock.WithTx(tx).Load(ctx)
		if err != nil {
			return err
		}
		if err := periodlock.Assert(state, in.Date, opCreate); err != nil {
			return err
		}
		if err := s.checkBudgets(ctx, tx, budgets, in.Date); err != nil {
			return err
		}
		if err := s.checkEarmarks(ctx, tx, earmarks, in.Date, in.Type, 0, &result.Warnings); err != nil {
			return err
		}

		v := &models.Voucher{
			Date:          in.Date,
			Type:          in.Type,
			Sphere:        in.Sphere,
			CategoryID:    in.CategoryID,
			Description:   optionalText(in.Description),
			NetAmount:     amounts.Net,
			VatRate:       amounts.Rate,
			VatAmount:     amounts.Vat,
			GrossAmount:   amounts.Gross,
			PaymentMethod: in.PaymentMethod,
			TransferFrom:  in.TransferFrom,
			TransferTo:    in.TransferTo,
			Counterparty:  optionalText(in.Counterparty),
			CreatedBy:     in.ActorID,
		}
		if err := s.assignNumber(ctx, tx, v, func(tx *gorm.DB) error {
			return tx.Create(v).Error
		}); err != nil {
			return err
		}
		ctx = s.logg.WithVoucherID(ctx, v.ID)

		if hasBudgets {
			if err := replaceBudgets(ctx, tx, v, budgets); err != nil {
				return err
			}
		}
		if hasEarmarks {
			if err := replaceEarmarks(ctx, tx, v, earmarks); err != nil {
				return err
			}
		}
		for _, f := range in.Files {
			if _, err := s.storeFile(ctx, tx, v.ID, f, &written); err != nil {
				return err
			}
		}
		if len(in.Tags) > 0 {
			if err := s.refs.WithTx(tx).ReplaceVoucherTags(ctx, v.ID, in.Tags); err != nil {
				return err
			}
		}

		s.audit.WithTx(tx).Record(ctx, audit.Entry{
			ActorID:  in.ActorID,
			Entity:   enums.AuditEntityVoucher,
			EntityID: v.ID,
			Action:   enums.AuditActionCreate,
			Diff: map[string]any{
				"id":        v.ID,
				"voucherNo": v.VoucherNo,
				"data":      in,
			},
		})

		result.ID, result.VoucherNo, result.GrossAmount = v.ID, v.VoucherNo, v.GrossAmount
		return nil
	})
	if err != nil {
		s.unlink(ctx, written)
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"voucher_id": result.ID,
		"voucher_no": result.VoucherNo,
	}), "voucher created")
	return result, nil
}

func optionalText(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

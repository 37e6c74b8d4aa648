package vouchers

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/internal/audit"
	"github.com/vereinskasse/vereinskasse-backend/internal/periodlock"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/money"
)

// Reverse books a counter-voucher dated today with inverted type and negated
// amounts, and links both vouchers to each other.
func (s *Service) Reverse(ctx context.Context, id int64, actorID *int64) (*ReverseResult, error) {
	result := &ReverseResult{OriginalID: id, Warnings: []string{}}
	ctx = s.logg.WithVoucherID(s.logg.WithActorID(ctx, actorID), id)
	err := s.mutate(ctx, opReverse, func(ctx context.Context, tx *gorm.DB) error {
		orig, err := load(ctx, tx, id)
		if err != nil {
			return err
		}
		if orig.ReversedByID != nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "voucher %s is already reversed", orig.VoucherNo).
				WithDetails(map[string]any{"id": id, "reversedById": *orig.ReversedByID})
		}
		if orig.OriginalID != nil {
			return validationErr("voucher %s is itself a reversal", orig.VoucherNo)
		}

		today := s.today()
		state, err := s.lock.WithTx(tx).Load(ctx)
		if err != nil {
			return err
		}
		if err := periodlock.Assert(state, today, opReverse); err != nil {
			return err
		}

		budgets, earmarks, err := currentAllocations(ctx, tx, orig)
		if err != nil {
			return err
		}
		tags, err := s.refs.WithTx(tx).TagsForVoucher(ctx, orig.ID)
		if err != nil {
			return err
		}

		amounts := money.Amounts{
			Net:   orig.NetAmount,
			Rate:  orig.VatRate,
			Vat:   orig.VatAmount,
			Gross: orig.GrossAmount,
		}.Negate()
		description := fmt.Sprintf("%s %s", s.cfg.ReversalPrefix, orig.VoucherNo)
		rev := &models.Voucher{
			Date:          today,
			Type:          orig.Type.Inverted(),
			Sphere:        orig.Sphere,
			CategoryID:    orig.CategoryID,
			Description:   &description,
			NetAmount:     amounts.Net,
			VatRate:       amounts.Rate,
			VatAmount:     amounts.Vat,
			GrossAmount:   amounts.Gross,
			PaymentMethod: orig.PaymentMethod,
			TransferFrom:  orig.TransferFrom,
			TransferTo:    orig.TransferTo,
			Counterparty:  orig.Counterparty,
			CreatedBy:     actorID,
			OriginalID:    &orig.ID,
		}

		if rev.Type == enums.VoucherTypeOut && len(earmarks) > 0 {
			allow, err := s.allowNegativeEarmarks(ctx, tx)
			if err != nil {
				return err
			}
			if !allow {
				for _, e := range earmarks {
					earmark, err := s.refs.WithTx(tx).GetEarmark(ctx, e.ID)
					if err != nil {
						return err
					}
					if err := s.warnNegativeEarmark(ctx, tx, e.ID, earmark.Code, e.Amount, today, 0, &result.Warnings); err != nil {
						return err
					}
				}
			}
		}

		if err := s.assignNumber(ctx, tx, rev, func(tx *gorm.DB) error {
			return tx.Create(rev).Error
		}); err != nil {
			return err
		}
		if len(budgets) > 0 {
			if err := replaceBudgets(ctx, tx, rev, budgets); err != nil {
				return err
			}
		}
		if len(earmarks) > 0 {
			if err := replaceEarmarks(ctx, tx, rev, earmarks); err != nil {
				return err
			}
		}
		if len(tags) > 0 {
			if err := s.refs.WithTx(tx).ReplaceVoucherTags(ctx, rev.ID, tags); err != nil {
				return err
			}
		}
		if err := tx.WithContext(ctx).Model(&models.Voucher{}).Where("id = ?", orig.ID).
			Update("reversed_by_id", rev.ID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link reversal")
		}

		s.audit.WithTx(tx).Record(ctx, audit.Entry{
			ActorID:  actorID,
			Entity:   enums.AuditEntityVoucher,
			EntityID: orig.ID,
			Action:   enums.AuditActionReverse,
			Diff: map[string]any{
				"originalId":        orig.ID,
				"originalVoucherNo": orig.VoucherNo,
				"reversalId":        rev.ID,
				"reversalVoucherNo": rev.VoucherNo,
			},
		})
		result.ID, result.VoucherNo = rev.ID, rev.VoucherNo
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

package vouchers

import (
	"context"

	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/internal/audit"
	"github.com/vereinskasse/vereinskasse-backend/internal/numbering"
	"github.com/vereinskasse/vereinskasse-backend/internal/periodlock"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
)

// Delete removes a voucher with its allocations, tags and file rows. The
// attachment blobs are unlinked after the transaction commits.
func (s *Service) Delete(ctx context.Context, id int64, actorID *int64) error {
	var keys []string
	ctx = s.logg.WithVoucherID(s.logg.WithActorID(ctx, actorID), id)
	err := s.mutate(ctx, opDelete, func(ctx context.Context, tx *gorm.DB) error {
		before, err := s.view(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.assertMutable(ctx, tx, id); err != nil {
			return err
		}
		state, err := s.lock.WithTx(tx).Load(ctx)
		if err != nil {
			return err
		}
		if err := periodlock.Assert(state, before.Date, opDelete); err != nil {
			return err
		}

		conn := tx.WithContext(ctx)
		if err := conn.Model(&models.Voucher{}).Where("reversed_by_id = ?", id).
			Update("reversed_by_id", nil).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unlink reversal")
		}
		if err := conn.Model(&models.Voucher{}).Where("original_id = ?", id).
			Update("original_id", nil).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unlink original")
		}
		if err := conn.Where("id = ?", id).Delete(&models.Voucher{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete voucher")
		}

		s.audit.WithTx(tx).Record(ctx, audit.Entry{
			ActorID:  actorID,
			Entity:   enums.AuditEntityVoucher,
			EntityID: id,
			Action:   enums.AuditActionDelete,
			Diff:     map[string]any{"before": before},
		})
		for _, f := range before.Files {
			keys = append(keys, f.FilePath)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.unlink(ctx, keys)
	return nil
}

// ClearAll deletes every voucher and resets the day counters. It is refused
// while any period is closed.
func (s *Service) ClearAll(ctx context.Context, actorID *int64) (*ClearResult, error) {
	var (
		keys   []string
		result ClearResult
	)
	ctx = s.logg.WithActorID(ctx, actorID)
	err := s.mutate(ctx, opClearAll, func(ctx context.Context, tx *gorm.DB) error {
		state, err := s.lock.WithTx(tx).Load(ctx)
		if err != nil {
			return err
		}
		if !state.IsOpen() {
			return pkgerrors.Newf(pkgerrors.CodePeriodLocked,
				"period closed until %s: cannot clear the ledger", state.ClosedUntil).
				WithDetails(map[string]any{
					"closedUntil": state.ClosedUntil.String(),
					"op":          opClearAll,
				})
		}

		conn := tx.WithContext(ctx)
		if err := conn.Model(&models.VoucherFile{}).Pluck("file_path", &keys).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list attachments")
		}
		res := conn.Where("1 = 1").Delete(&models.Voucher{})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete vouchers")
		}
		result.Deleted = res.RowsAffected

		if err := conn.Where("scope LIKE ?", numbering.DayScopePrefix+"%").
			Delete(&models.NumberSequence{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset day counters")
		}
		if err := conn.Where("1 = 1").Delete(&models.VoucherSequence{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset voucher sequences")
		}

		s.audit.WithTx(tx).Record(ctx, audit.Entry{
			ActorID:  actorID,
			Entity:   enums.AuditEntitySystem,
			EntityID: 0,
			Action:   enums.AuditActionClearAll,
			Diff:     map[string]any{"deleted": result.Deleted},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.unlink(ctx, keys)
	s.logg.Warn(s.logg.WithField(ctx, "deleted", result.Deleted), "ledger cleared")
	return &result, nil
}

package vouchers

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
)

func load(ctx context.Context, tx *gorm.DB, id int64) (*models.Voucher, error) {
	var v models.Voucher
	err := tx.WithContext(ctx).Where("id = ?", id).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "voucher %d not found", id).
			WithDetails(map[string]any{"entity": "voucher", "id": id})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read voucher")
	}
	return &v, nil
}

func (s *Service) view(ctx context.Context, tx *gorm.DB, id int64) (*VoucherView, error) {
	v, err := load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	out := &VoucherView{Voucher: *v}

	if out.Tags, err = s.refs.WithTx(tx).TagsForVoucher(ctx, id); err != nil {
		return nil, err
	}
	conn := tx.WithContext(ctx)
	if err := conn.Where("voucher_id = ?", id).Order("id ASC").Find(&out.Budgets).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read budget allocations")
	}
	if err := conn.Where("voucher_id = ?", id).Order("id ASC").Find(&out.Earmarks).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read earmark allocations")
	}
	if err := conn.Where("voucher_id = ?", id).Order("id ASC").Find(&out.Files).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read voucher files")
	}
	return out, nil
}

// Get returns a voucher with its tags, allocations and files.
func (s *Service) Get(ctx context.Context, id int64) (*VoucherView, error) {
	return s.view(ctx, s.db.DB(), id)
}

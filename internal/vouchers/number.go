package vouchers

import (
	"context"

	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/internal/numbering"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
)

// assignNumber gives v the next free number of its date and persists it with
// write. A unique violation on the voucher row rolls back to a savepoint and
// retries with the next sequence, up to the configured number of attempts.
func (s *Service) assignNumber(ctx context.Context, tx *gorm.DB, v *models.Voucher, write func(tx *gorm.DB) error) error {
	numbers := s.numbers.WithTx(tx)
	start, err := numbers.StartForDay(ctx, v.Date)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read day sequence")
	}

	v.Year = v.Date.Year
	for attempt := 0; attempt < s.cfg.NumberAttempts; attempt++ {
		seq := start + int64(attempt)
		no, err := numbering.FormatVoucherNo(v.Date, seq)
		if err != nil {
			return err
		}
		v.SeqNo, v.VoucherNo = seq, no

		err = db.WithSavepoint(tx, "voucher_number", func(tx *gorm.DB) error {
			return write(tx.WithContext(ctx))
		})
		if err == nil {
			if err := numbers.Commit(ctx, numbering.DayScope(v.Date), seq); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit day sequence")
			}
			if err := numbers.BumpYearSphere(ctx, v.Year, v.Sphere, seq); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump year sequence")
			}
			return nil
		}
		if !db.IsUniqueViolation(err, "vouchers.") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write voucher")
		}
		s.metrics.IncNumberingRetry()
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"voucher_no": no,
			"attempt":    attempt + 1,
		}), "voucher number taken, retrying")
	}

	return pkgerrors.Newf(pkgerrors.CodeNumberingExhausted,
		"no free voucher number for %s after %d attempts", v.Date, s.cfg.NumberAttempts).
		WithDetails(map[string]any{
			"date":     v.Date.String(),
			"start":    start,
			"attempts": s.cfg.NumberAttempts,
		})
}

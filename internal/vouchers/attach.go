package vouchers

import (
	"bytes"
	"context"
	"strings"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/internal/audit"
	"github.com/vereinskasse/vereinskasse-backend/internal/periodlock"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/storage/local"
	"github.com/vereinskasse/vereinskasse-backend/pkg/validators"
)

// storeFile writes the bytes to the blob store and records the file row. The
// key is appended to written before the row is created so the caller can
// unlink it if the transaction fails.
func (s *Service) storeFile(ctx context.Context, tx *gorm.DB, voucherID int64, f Attachment, written *[]string) (*models.VoucherFile, error) {
	key := local.ObjectKey(voucherID, f.FileName)
	obj, err := s.blobs.Put(ctx, key, bytes.NewReader(f.Data))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store attachment")
	}
	*written = append(*written, key)

	row := models.VoucherFile{
		VoucherID: voucherID,
		FileName:  f.FileName,
		FilePath:  key,
		Size:      obj.Size,
	}
	if mime := strings.TrimSpace(f.MimeType); mime != "" {
		row.MimeType = &mime
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record attachment")
	}
	return &row, nil
}

// unlink removes blobs best-effort. Failures are logged, never returned.
func (s *Service) unlink(ctx context.Context, keys []string) {
	var errs error
	for _, key := range keys {
		errs = multierr.Append(errs, s.blobs.Delete(ctx, key))
	}
	if errs != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"keys":  keys,
			"error": errs.Error(),
		}), "attachment cleanup incomplete")
	}
}

// AttachFile adds a file to an existing voucher.
func (s *Service) AttachFile(ctx context.Context, voucherID int64, f Attachment, actorID *int64) (*models.VoucherFile, error) {
	if err := validators.Struct(f); err != nil {
		return nil, err
	}

	var (
		row     *models.VoucherFile
		written []string
	)
	ctx = s.logg.WithVoucherID(s.logg.WithActorID(ctx, actorID), voucherID)
	err := s.mutate(ctx, opAttach, func(ctx context.Context, tx *gorm.DB) error {
		v, err := load(ctx, tx, voucherID)
		if err != nil {
			return err
		}
		state, err := s.lock.WithTx(tx).Load(ctx)
		if err != nil {
			return err
		}
		if err := periodlock.Assert(state, v.Date, opAttach); err != nil {
			return err
		}

		if row, err = s.storeFile(ctx, tx, v.ID, f, &written); err != nil {
			return err
		}
		s.audit.WithTx(tx).Record(ctx, audit.Entry{
			ActorID:  actorID,
			Entity:   enums.AuditEntityVoucher,
			EntityID: v.ID,
			Action:   enums.AuditActionAttach,
			Diff: map[string]any{
				"fileId":   row.ID,
				"fileName": row.FileName,
				"size":     row.Size,
			},
		})
		return nil
	})
	if err != nil {
		s.unlink(ctx, written)
		return nil, err
	}
	return row, nil
}

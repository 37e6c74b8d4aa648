package references

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vereinskasse/vereinskasse-backend/internal/repo"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
)

// Repository reads and writes budgets, earmarks, tags and the cash advance
// placeholder marker.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx)}
}

func (r *Repository) CreateBudget(ctx context.Context, b *models.Budget) error {
	if b.Year <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "budget year is required")
	}
	if !b.Sphere.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid sphere %q", b.Sphere)
	}
	if err := r.base.DB(ctx).Create(b).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create budget")
	}
	return nil
}

func (r *Repository) GetBudget(ctx context.Context, id int64) (*models.Budget, error) {
	var b models.Budget
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&b).Error; err != nil {
		return nil, notFound(err, "budget", id)
	}
	return &b, nil
}

func (r *Repository) CreateEarmark(ctx context.Context, e *models.Earmark) error {
	e.Code = strings.TrimSpace(e.Code)
	e.Name = strings.TrimSpace(e.Name)
	if e.Code == "" || e.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "earmark code and name are required")
	}
	if err := r.base.DB(ctx).Create(e).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create earmark")
	}
	return nil
}

func (r *Repository) GetEarmark(ctx context.Context, id int64) (*models.Earmark, error) {
	var e models.Earmark
	if err := r.base.DB(ctx).Where("id = ?", id).Take(&e).Error; err != nil {
		return nil, notFound(err, "earmark", id)
	}
	return &e, nil
}

// ListEarmarks returns earmarks ordered by code.
func (r *Repository) ListEarmarks(ctx context.Context, activeOnly bool) ([]models.Earmark, error) {
	q := r.base.DB(ctx).Order("code ASC")
	if activeOnly {
		q = q.Where("is_active = 1")
	}
	var out []models.Earmark
	if err := q.Find(&out).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list earmarks")
	}
	return out, nil
}

func (r *Repository) SetEarmarkActive(ctx context.Context, id int64, active bool) error {
	res := r.base.DB(ctx).Model(&models.Earmark{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update earmark")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "earmark %d not found", id)
	}
	return nil
}

// NormalizeTagNames trims, drops blanks and removes case-insensitive duplicates,
// keeping the first spelling.
func NormalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

// EnsureTags returns the tags named, creating the missing ones.
func (r *Repository) EnsureTags(ctx context.Context, names []string) ([]models.Tag, error) {
	names = NormalizeTagNames(names)
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag := models.Tag{Name: name}
		err := r.base.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&tag).Error
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tag")
		}
		var stored models.Tag
		if err := r.base.DB(ctx).Where("name = ? COLLATE NOCASE", name).Take(&stored).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read tag")
		}
		tags = append(tags, stored)
	}
	return tags, nil
}

// ReplaceVoucherTags makes names the complete tag set of the voucher.
func (r *Repository) ReplaceVoucherTags(ctx context.Context, voucherID int64, names []string) error {
	if err := r.base.DB(ctx).Where("voucher_id = ?", voucherID).Delete(&models.VoucherTag{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear voucher tags")
	}
	tags, err := r.EnsureTags(ctx, names)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		link := models.VoucherTag{VoucherID: voucherID, TagID: tag.ID}
		if err := r.base.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link voucher tag")
		}
	}
	return nil
}

// TagsForVoucher returns tag names sorted case-insensitively. An untagged
// voucher yields an empty, non-nil slice.
func (r *Repository) TagsForVoucher(ctx context.Context, voucherID int64) ([]string, error) {
	names := []string{}
	err := r.base.DB(ctx).
		Table("voucher_tags vt").
		Joins("JOIN tags t ON t.id = vt.tag_id").
		Where("vt.voucher_id = ?", voucherID).
		Pluck("t.name", &names).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read voucher tags")
	}
	if names == nil {
		names = []string{}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names, nil
}

// IsPlaceholder reports whether a cash advance holds voucherID as its placeholder.
func (r *Repository) IsPlaceholder(ctx context.Context, voucherID int64) (bool, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.CashAdvance{}).
		Where("placeholder_voucher_id = ?", voucherID).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check cash advance placeholder")
	}
	return count > 0, nil
}

func notFound(err error, kind string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s %d not found", kind, id).
			WithDetails(map[string]any{"entity": kind, "id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read %s %d", kind, id))
}

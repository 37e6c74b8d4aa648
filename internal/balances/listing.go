package balances

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/pagination"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

// Filter narrows listings and summaries. Zero values do not filter.
type Filter struct {
	From          types.Date
	To            types.Date
	Type          enums.VoucherType
	Sphere        enums.Sphere
	PaymentMethod enums.PaymentMethod
	EarmarkID     *int64
	BudgetID      *int64
	CategoryID    *int64
	Tag           string
	Query         string
}

// Validate rejects inverted ranges and unknown enum values.
func (f Filter) Validate() error {
	details := map[string]string{}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		details["to"] = "must not be before from"
	}
	if f.Type != "" && !f.Type.IsValid() {
		details["type"] = "unknown voucher type"
	}
	if f.Sphere != "" && !f.Sphere.IsValid() {
		details["sphere"] = "unknown sphere"
	}
	if f.PaymentMethod != "" && !f.PaymentMethod.IsValid() {
		details["paymentMethod"] = "unknown payment method"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid voucher filter").WithDetails(details)
	}
	return nil
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if !f.From.IsZero() {
		q = q.Where("v.date >= ?", f.From.String())
	}
	if !f.To.IsZero() {
		q = q.Where("v.date <= ?", f.To.String())
	}
	if f.Type != "" {
		q = q.Where("v.type = ?", string(f.Type))
	}
	if f.Sphere != "" {
		q = q.Where("v.sphere = ?", string(f.Sphere))
	}
	if f.PaymentMethod != "" {
		pm := string(f.PaymentMethod)
		q = q.Where("(v.payment_method = ? OR v.transfer_from = ? OR v.transfer_to = ?)", pm, pm, pm)
	}
	if f.EarmarkID != nil {
		q = q.Where("(v.earmark_id = ? OR EXISTS (SELECT 1 FROM voucher_earmarks ve WHERE ve.voucher_id = v.id AND ve.earmark_id = ?))", *f.EarmarkID, *f.EarmarkID)
	}
	if f.BudgetID != nil {
		q = q.Where("(v.budget_id = ? OR EXISTS (SELECT 1 FROM voucher_budgets vb WHERE vb.voucher_id = v.id AND vb.budget_id = ?))", *f.BudgetID, *f.BudgetID)
	}
	if f.CategoryID != nil {
		q = q.Where("v.category_id = ?", *f.CategoryID)
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		q = q.Where("EXISTS (SELECT 1 FROM voucher_tags vt JOIN tags t ON t.id = vt.tag_id WHERE vt.voucher_id = v.id AND t.name = ?)", tag)
	}
	if text := strings.TrimSpace(f.Query); text != "" {
		like := "%" + text + "%"
		q = q.Where("(v.description LIKE ? OR v.voucher_no LIKE ? OR v.counterparty LIKE ?)", like, like, like)
	}
	return q
}

// Page is one slice of a voucher listing.
type Page struct {
	Items      []models.Voucher `json:"items"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// ListVouchers returns vouchers newest first, ordered by (date DESC, id DESC).
func (q *Queries) ListVouchers(ctx context.Context, f Filter, params pagination.Params) (*Page, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	query := f.apply(q.db.WithContext(ctx).Table("vouchers v").Select("v.*"))
	if cursor != nil {
		query = query.Where("(v.date < ? OR (v.date = ? AND v.id < ?))", cursor.Date.String(), cursor.Date.String(), cursor.ID)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.Voucher
	if err := query.Order("v.date DESC, v.id DESC").Limit(pagination.LimitWithBuffer(params.Limit)).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vouchers")
	}

	page := &Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{Date: last.Date, ID: last.ID})
	}
	return page, nil
}

// Bucket aggregates vouchers sharing a key. In and Out are magnitudes by
// voucher type, so a reversal cancels its original; Saldo is In - Out.
type Bucket struct {
	Key   string          `json:"key"`
	Count int64           `json:"count"`
	In    decimal.Decimal `json:"in"`
	Out   decimal.Decimal `json:"out"`
	Saldo decimal.Decimal `json:"saldo"`
}

type Summary struct {
	Totals          Bucket   `json:"totals"`
	BySphere        []Bucket `json:"bySphere"`
	ByPaymentMethod []Bucket `json:"byPaymentMethod"`
	ByType          []Bucket `json:"byType"`
}

type bucketRow struct {
	Key   string  `gorm:"column:bucket"`
	Count int64   `gorm:"column:cnt"`
	In    float64 `gorm:"column:in_gross"`
	Out   float64 `gorm:"column:out_gross"`
}

const flowColumns = `COUNT(*) AS cnt,
  COALESCE(SUM(CASE WHEN v.type = 'IN' THEN ABS(v.gross_amount) ELSE 0 END), 0) AS in_gross,
  COALESCE(SUM(CASE WHEN v.type = 'OUT' THEN ABS(v.gross_amount) ELSE 0 END), 0) AS out_gross`

func (q *Queries) buckets(ctx context.Context, f Filter, keyExpr string) ([]Bucket, error) {
	var rows []bucketRow
	err := f.apply(q.db.WithContext(ctx).Table("vouchers v")).
		Select(keyExpr + " AS bucket, " + flowColumns).
		Group("bucket").
		Order("bucket ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate vouchers")
	}
	out := make([]Bucket, 0, len(rows))
	for _, r := range rows {
		out = append(out, newBucket(r))
	}
	return out, nil
}

func newBucket(r bucketRow) Bucket {
	in, out := toDecimal(r.In), toDecimal(r.Out)
	return Bucket{Key: r.Key, Count: r.Count, In: in, Out: out, Saldo: in.Sub(out)}
}

// Summarize aggregates the filtered vouchers overall and by sphere, payment
// method and type. Vouchers without a payment method are keyed "NONE".
func (q *Queries) Summarize(ctx context.Context, f Filter) (*Summary, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var total bucketRow
	err := f.apply(q.db.WithContext(ctx).Table("vouchers v")).
		Select("'' AS bucket, " + flowColumns).
		Scan(&total).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate vouchers")
	}

	summary := &Summary{Totals: newBucket(total)}
	if summary.BySphere, err = q.buckets(ctx, f, "v.sphere"); err != nil {
		return nil, err
	}
	if summary.ByPaymentMethod, err = q.buckets(ctx, f, "COALESCE(v.payment_method, 'NONE')"); err != nil {
		return nil, err
	}
	if summary.ByType, err = q.buckets(ctx, f, "v.type"); err != nil {
		return nil, err
	}
	return summary, nil
}

// Monthly buckets the filtered vouchers by YYYY-MM.
func (q *Queries) Monthly(ctx context.Context, f Filter) ([]Bucket, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return q.buckets(ctx, f, "substr(v.date, 1, 7)")
}

// Daily buckets the filtered vouchers by YYYY-MM-DD.
func (q *Queries) Daily(ctx context.Context, f Filter) ([]Bucket, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return q.buckets(ctx, f, "v.date")
}

package numbering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

// MaxDailySeq is the largest sequence the YYYY-MM-DD_NNNNN scheme can render.
const MaxDailySeq = 99999

// Service issues sequence numbers. It never opens its own transaction; bind
// it to the caller's tx with WithTx so the counter moves with the insert.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) WithTx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	return &Service{db: tx}
}

// DayScopePrefix starts every per-day counter scope.
const DayScopePrefix = "day:"

// DayScope is the counter bucket for per-day voucher numbers.
func DayScope(d types.Date) string {
	return DayScopePrefix + d.String()
}

// YearCategoryScope is the counter bucket for a (year, category) pair.
func YearCategoryScope(year int, categoryID int64) string {
	return fmt.Sprintf("year-category:%04d:%d", year, categoryID)
}

// Next returns last+1 for scope and records it.
func (s *Service) Next(ctx context.Context, scope string) (int64, error) {
	last, err := s.last(ctx, scope)
	if err != nil {
		return 0, err
	}
	next := last + 1
	if err := s.Commit(ctx, scope, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Commit records value for scope. The stored value never decreases, so a
// late catch-up write cannot rewind the counter.
func (s *Service) Commit(ctx context.Context, scope string, value int64) error {
	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO number_sequences (scope, last_value) VALUES (?, ?)
		 ON CONFLICT(scope) DO UPDATE SET last_value = MAX(last_value, excluded.last_value)`,
		scope, value,
	).Error
	if err != nil {
		return fmt.Errorf("commit sequence %s: %w", scope, err)
	}
	return nil
}

// StartForDay is the first candidate sequence for a new voucher on d: one past
// the larger of the highest stored seq_no and the day counter.
func (s *Service) StartForDay(ctx context.Context, d types.Date) (int64, error) {
	var maxSeq sql.NullInt64
	if err := s.db.WithContext(ctx).
		Raw("SELECT MAX(seq_no) FROM vouchers WHERE date = ?", d.String()).
		Row().Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("scan max seq for %s: %w", d, err)
	}
	counter, err := s.last(ctx, DayScope(d))
	if err != nil {
		return 0, err
	}
	return max(maxSeq.Int64, counter) + 1, nil
}

// NextYearSphere issues the next number of the legacy year x sphere mode and
// updates its counter cache.
func (s *Service) NextYearSphere(ctx context.Context, year int, sphere enums.Sphere) (int64, error) {
	var maxSeq sql.NullInt64
	if err := s.db.WithContext(ctx).
		Raw("SELECT MAX(seq_no) FROM vouchers WHERE year = ? AND sphere = ?", year, string(sphere)).
		Row().Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("scan max seq for %d/%s: %w", year, sphere, err)
	}

	var cached models.VoucherSequence
	err := s.db.WithContext(ctx).Where("year = ? AND sphere = ?", year, sphere).Take(&cached).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("read voucher sequence %d/%s: %w", year, sphere, err)
	}

	next := max(maxSeq.Int64, cached.LastSeqNo) + 1
	if err := s.BumpYearSphere(ctx, year, sphere, next); err != nil {
		return 0, err
	}
	return next, nil
}

// BumpYearSphere raises the year x sphere counter cache to at least seq.
func (s *Service) BumpYearSphere(ctx context.Context, year int, sphere enums.Sphere, seq int64) error {
	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO voucher_sequences (year, sphere, last_seq_no) VALUES (?, ?, ?)
		 ON CONFLICT(year, sphere) DO UPDATE SET last_seq_no = MAX(last_seq_no, excluded.last_seq_no)`,
		year, string(sphere), seq,
	).Error
	if err != nil {
		return fmt.Errorf("bump voucher sequence %d/%s: %w", year, sphere, err)
	}
	return nil
}

func (s *Service) last(ctx context.Context, scope string) (int64, error) {
	var row models.NumberSequence
	err := s.db.WithContext(ctx).Where("scope = ?", scope).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", scope, err)
	}
	return row.LastValue, nil
}

// FormatVoucherNo renders YYYY-MM-DD_NNNNN.
func FormatVoucherNo(d types.Date, seq int64) (string, error) {
	if seq <= 0 {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "sequence must be positive, got %d", seq)
	}
	if seq > MaxDailySeq {
		return "", pkgerrors.Newf(pkgerrors.CodeNumberingExhausted, "no voucher numbers left for %s", d)
	}
	return fmt.Sprintf("%s_%05d", d.String(), seq), nil
}

package numbering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/dbtest"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

func TestNextIncrementsPerScope(t *testing.T) {
	ctx := context.Background()
	svc := New(dbtest.New(t).DB())

	for want := int64(1); want <= 3; want++ {
		got, err := svc.Next(ctx, "day:2025-01-02")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	other, err := svc.Next(ctx, YearCategoryScope(2025, 4))
	require.NoError(t, err)
	assert.EqualValues(t, 1, other)
}

func TestCommitNeverRewinds(t *testing.T) {
	ctx := context.Background()
	svc := New(dbtest.New(t).DB())

	require.NoError(t, svc.Commit(ctx, "x", 10))
	require.NoError(t, svc.Commit(ctx, "x", 4))

	next, err := svc.Next(ctx, "x")
	require.NoError(t, err)
	assert.EqualValues(t, 11, next)
}

func TestStartForDayUsesHigherOfRowsAndCounter(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	svc := New(client.DB())
	day := types.MustParseDate("2025-05-01")

	start, err := svc.StartForDay(ctx, day)
	require.NoError(t, err)
	assert.EqualValues(t, 1, start)

	require.NoError(t, client.DB().Exec(
		`INSERT INTO vouchers (year, seq_no, voucher_no, date, type, sphere) VALUES (2025, 7, '2025-05-01_00007', '2025-05-01', 'IN', 'IDEELL')`,
	).Error)
	start, err = svc.StartForDay(ctx, day)
	require.NoError(t, err)
	assert.EqualValues(t, 8, start, "rows ahead of the counter win")

	require.NoError(t, svc.Commit(ctx, DayScope(day), 20))
	start, err = svc.StartForDay(ctx, day)
	require.NoError(t, err)
	assert.EqualValues(t, 21, start, "counter ahead of the rows wins")
}

func TestNextJoinsCallerTransaction(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	svc := New(client.DB())

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := svc.WithTx(tx).Next(ctx, "rollback-me")
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	next, err := svc.Next(ctx, "rollback-me")
	require.NoError(t, err)
	assert.EqualValues(t, 1, next, "rolled back increment is not visible")
}

func TestNextYearSphere(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	svc := New(client.DB())

	first, err := svc.NextYearSphere(ctx, 2025, enums.SphereIdeell)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first)

	second, err := svc.NextYearSphere(ctx, 2025, enums.SphereIdeell)
	require.NoError(t, err)
	assert.EqualValues(t, 2, second)

	other, err := svc.NextYearSphere(ctx, 2025, enums.SphereWGB)
	require.NoError(t, err)
	assert.EqualValues(t, 1, other)

	var cached int64
	require.NoError(t, client.DB().Raw(`SELECT last_seq_no FROM voucher_sequences WHERE year = 2025 AND sphere = 'IDEELL'`).Row().Scan(&cached))
	assert.EqualValues(t, 2, cached)
}

func TestFormatVoucherNo(t *testing.T) {
	day := types.MustParseDate("2025-01-09")

	no, err := FormatVoucherNo(day, 42)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-09_00042", no)

	no, err = FormatVoucherNo(day, MaxDailySeq)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-09_99999", no)

	_, err = FormatVoucherNo(day, MaxDailySeq+1)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNumberingExhausted))

	_, err = FormatVoucherNo(day, 0)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

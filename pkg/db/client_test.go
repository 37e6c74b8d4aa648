package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vereinskasse/vereinskasse-backend/pkg/config"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.DBConfig{Path: filepath.Join(t.TempDir(), "client.db")}
	conn, err := Open(cfg.DSN(), nil)
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromGorm(db)

	ctx := context.Background()
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))

	var count int64
	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)
	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	require.EqualValues(t, 1, count, "rollback should leave one record")
}

func TestWithSavepoint_RecoversFromUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	client := NewFromGorm(db)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "first"}).Error; err != nil {
			return err
		}
		dupErr := WithSavepoint(tx, "dup", func(tx *gorm.DB) error {
			return tx.Create(&testModel{Name: "first"}).Error
		})
		require.True(t, IsUniqueViolation(dupErr, ""), "expected unique violation, got %v", dupErr)
		require.True(t, IsUniqueViolation(dupErr, "test_models.name"))
		require.False(t, IsUniqueViolation(dupErr, "vouchers.seq_no"))
		return tx.Create(&testModel{Name: "second"}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&testModel{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestIsDuplicateColumn(t *testing.T) {
	db := newTestDB(t)
	err := db.Exec("ALTER TABLE test_models ADD COLUMN name TEXT").Error
	require.Error(t, err)
	require.True(t, IsDuplicateColumn(err))
	require.False(t, IsDuplicateColumn(errors.New("no such table: vouchers")))
	require.False(t, IsDuplicateColumn(nil))
}

func TestPing(t *testing.T) {
	client := NewFromGorm(newTestDB(t))
	require.NoError(t, client.Ping(context.Background()))
}

func TestOpenDefaultsToSilentLogger(t *testing.T) {
	conn := newTestDB(t)
	require.Equal(t, gormlogger.Default.LogMode(gormlogger.Silent), conn.Logger)
	require.True(t, conn.SkipDefaultTransaction)
}

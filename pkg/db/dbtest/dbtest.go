// Package dbtest opens migrated throwaway ledger databases for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vereinskasse/vereinskasse-backend/pkg/config"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db"
	"github.com/vereinskasse/vereinskasse-backend/pkg/migrate"
)

// New returns a client over a fresh database file with every migration applied.
func New(t testing.TB) *db.Client {
	t.Helper()

	cfg := config.DBConfig{
		Path:        filepath.Join(t.TempDir(), "ledger.db"),
		BusyTimeout: 5 * time.Second,
		JournalMode: "WAL",
	}
	conn, err := db.Open(cfg.DSN(), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	client := db.NewFromGorm(conn)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.SQL()
	require.NoError(t, err)
	runner, err := migrate.NewRunner(sqlDB, migrate.Options{})
	require.NoError(t, err)
	_, err = runner.Up(context.Background())
	require.NoError(t, err)

	return client
}

package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewUsesSilentQueryLogger(t *testing.T) {
	client := New(t)

	assert.Equal(t, gormlogger.Default.LogMode(gormlogger.Silent), client.DB().Logger)
	assert.True(t, client.DB().SkipDefaultTransaction)
}

func TestNewAppliesMigrations(t *testing.T) {
	client := New(t)

	var count int64
	err := client.Raw(context.Background(), "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'vouchers'").Scan(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

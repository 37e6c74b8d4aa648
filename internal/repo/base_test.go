package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/dbtest"
)

func TestNewBaseStoresConnection(t *testing.T) {
	conn := dbtest.New(t).DB()
	base := NewBase(conn)
	assert.Same(t, conn, base.db)
}

func TestBaseDB_BindsContext(t *testing.T) {
	conn := dbtest.New(t).DB()
	base := NewBase(conn)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	assert.Same(t, conn, base.DB(nil))
}

func TestBaseWithTx(t *testing.T) {
	client := dbtest.New(t)
	base := NewBase(client.DB())
	assert.Same(t, client.DB(), base.WithTx(nil).db)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		bound := base.WithTx(tx)
		assert.Same(t, tx, bound.db)
		return bound.DB(context.Background()).Exec(`INSERT INTO tags (name) VALUES ('Sommerfest')`).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, client.DB().Table("tags").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

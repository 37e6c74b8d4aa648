package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/dbtest"
)

type lockValue struct {
	ClosedUntil *string `json:"closedUntil"`
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(dbtest.New(t).DB())

	var got lockValue
	found, err := store.Get(ctx, KeyPeriodLock, &got)
	require.NoError(t, err)
	assert.False(t, found)

	until := "2024-12-31"
	require.NoError(t, store.Set(ctx, KeyPeriodLock, lockValue{ClosedUntil: &until}))
	found, err = store.Get(ctx, KeyPeriodLock, &got)
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, got.ClosedUntil)
	assert.Equal(t, until, *got.ClosedUntil)

	require.NoError(t, store.Set(ctx, KeyPeriodLock, lockValue{}))
	got = lockValue{}
	_, err = store.Get(ctx, KeyPeriodLock, &got)
	require.NoError(t, err)
	assert.Nil(t, got.ClosedUntil, "upsert replaced the value")

	rows, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"closedUntil":null}`, rows[0].ValueJSON)
}

func TestBoolAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(dbtest.New(t).DB())

	v, err := store.Bool(ctx, KeyAllowNegativeEarmarks, false)
	require.NoError(t, err)
	assert.False(t, v)

	require.NoError(t, store.Set(ctx, KeyAllowNegativeEarmarks, true))
	v, err = store.Bool(ctx, KeyAllowNegativeEarmarks, false)
	require.NoError(t, err)
	assert.True(t, v)

	require.NoError(t, store.Delete(ctx, KeyAllowNegativeEarmarks))
	v, err = store.Bool(ctx, KeyAllowNegativeEarmarks, true)
	require.NoError(t, err)
	assert.True(t, v, "fallback after delete")
}

func TestGetReportsCorruptValue(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	store := NewStore(client.DB())
	require.NoError(t, client.DB().Exec(`INSERT INTO settings (key, value_json) VALUES ('broken', '{nope')`).Error)

	var dest map[string]any
	found, err := store.Get(ctx, "broken", &dest)
	assert.True(t, found)
	assert.Error(t, err)

	assert.Error(t, store.Set(ctx, " ", 1))
}

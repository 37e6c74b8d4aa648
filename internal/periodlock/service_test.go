package periodlock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vereinskasse/vereinskasse-backend/internal/audit"
	"github.com/vereinskasse/vereinskasse-backend/internal/settings"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db/dbtest"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

func newTestService(t *testing.T) (*Service, *db.Client, *audit.Log) {
	t.Helper()
	client := dbtest.New(t)
	log := audit.New(client.DB(), audit.Options{})
	svc, err := NewService(client.DB(), log, nil)
	require.NoError(t, err)
	return svc, client, log
}

func TestAssertBarrier(t *testing.T) {
	state := State{ClosedUntil: types.MustParseDate("2024-12-31")}

	err := Assert(state, types.MustParseDate("2024-12-31"), "create")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePeriodLocked))

	assert.Error(t, Assert(state, types.MustParseDate("2023-06-01"), "update"))
	assert.NoError(t, Assert(state, types.MustParseDate("2025-01-01"), "create"))
	assert.NoError(t, Assert(State{}, types.MustParseDate("1999-01-01"), "delete"))
}

func TestLoadOpenByDefault(t *testing.T) {
	svc, _, _ := newTestService(t)
	state, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, state.IsOpen())
}

func TestLoadMigratesLegacyYears(t *testing.T) {
	ctx := context.Background()
	svc, client, _ := newTestService(t)
	require.NoError(t, settings.NewStore(client.DB()).Set(ctx, settings.KeyPeriodLock, map[string]any{"years": []int{2022, 2024, 2023}}))

	state, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", state.ClosedUntil.String())

	var raw map[string]any
	_, err = settings.NewStore(client.DB()).Get(ctx, settings.KeyPeriodLock, &raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"closedUntil": "2024-12-31"}, raw, "legacy form written back")
}

func TestCloseAndReopen(t *testing.T) {
	ctx := context.Background()
	svc, _, log := newTestService(t)
	actor := int64(5)

	state, err := svc.CloseUntil(ctx, types.MustParseDate("2024-12-31"), &actor)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", state.ClosedUntil.String())

	_, err = svc.CloseUntil(ctx, types.MustParseDate("2024-06-30"), &actor)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "closing cannot move backwards")

	partial := types.MustParseDate("2023-12-31")
	state, err = svc.Reopen(ctx, &partial, &actor)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", state.ClosedUntil.String())

	state, err = svc.Reopen(ctx, nil, &actor)
	require.NoError(t, err)
	assert.True(t, state.IsOpen())

	loaded, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.IsOpen())

	_, err = svc.Reopen(ctx, nil, &actor)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	entries, err := log.List(ctx, audit.Filter{Entity: enums.AuditEntityPeriodLock})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, enums.AuditActionReopen, entries[0].Action)
	assert.Equal(t, enums.AuditActionClose, entries[2].Action)
	assert.JSONEq(t, `{"before":{"closedUntil":null},"after":{"closedUntil":"2024-12-31"}}`, entries[2].DiffJSON)
}

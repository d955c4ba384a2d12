package prefs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/testutil"
)

func newOrderRepo(t *testing.T) (*OrderRepo, *KVStore) {
	t.Helper()
	kv := NewKVStore(testutil.NewTestDB(t))
	return NewOrderRepo(kv), kv
}

func TestOrderRepo_RoundTripPerInstance(t *testing.T) {
	repo, _ := newOrderRepo(t)
	ctx := context.Background()

	rows := []domain.OrderRecord{
		{ID: 2, Order: 1},
		{ID: 1, Order: 2},
	}
	require.NoError(t, repo.SaveBacklogOrder(ctx, "inst-1", rows))

	got, err := repo.LoadBacklogOrder(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	// A different instance sees its own (empty) entry.
	other, err := repo.LoadBacklogOrder(ctx, "inst-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestOrderRepo_PersonalFallbackIsUserScoped(t *testing.T) {
	repo, kv := newOrderRepo(t)
	ctx := context.Background()

	rows := []domain.OrderRecord{{ID: 7, Order: 1}}
	require.NoError(t, repo.SaveBacklogOrder(ctx, "", rows))

	got, err := repo.LoadBacklogOrder(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	// Nothing leaked into the shared scope.
	_, ok, err := kv.Load(ctx, KeyBacklogOrder, ScopeShared)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderRepo_EmptyRowsWithNothingStoredSkipsWrite(t *testing.T) {
	repo, kv := newOrderRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveBacklogOrder(ctx, "inst-1", nil))

	_, ok, err := kv.Load(ctx, KeyBacklogOrder, ScopeShared)
	require.NoError(t, err)
	assert.False(t, ok, "no round trip for an empty save into an empty store")
}

func TestOrderRepo_LegacyFlatArrayReadAsPersonal(t *testing.T) {
	repo, kv := newOrderRepo(t)
	ctx := context.Background()

	// Pre-scoped-map deployments stored a bare array.
	legacy := []domain.OrderRecord{{ID: 3, Order: 1}, {ID: 4, Order: 2}}
	require.NoError(t, kv.Save(ctx, KeyBacklogOrder, ScopeUser, legacy))

	got, err := repo.LoadBacklogOrder(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, legacy, got, "legacy array surfaces as the personal board's rows")
}

func TestOrderRepo_LegacyShapeUpgradedOnSave(t *testing.T) {
	repo, kv := newOrderRepo(t)
	ctx := context.Background()

	legacy := []domain.OrderRecord{{ID: 3, Order: 1}}
	require.NoError(t, kv.Save(ctx, KeyBacklogOrder, ScopeUser, legacy))

	rows := []domain.OrderRecord{{ID: 5, Order: 1}}
	require.NoError(t, repo.SaveBacklogOrder(ctx, "", rows))

	// The stored value is now the scoped-map shape.
	got, err := repo.LoadBacklogOrder(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	raw, ok, err := kv.Load(ctx, KeyBacklogOrder, ScopeUser)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), PersonalBacklogKey, "upgraded to the map shape")
}

func TestOrderRepo_RemoveInstanceOrders(t *testing.T) {
	repo, _ := newOrderRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveBacklogOrder(ctx, "inst-1", []domain.OrderRecord{{ID: 1, Order: 1}}))
	require.NoError(t, repo.SaveTaskOrder(ctx, "inst-1", []domain.OrderRecord{{ID: 2, ParentID: 1, Order: 1}}))
	require.NoError(t, repo.SaveBacklogOrder(ctx, "inst-2", []domain.OrderRecord{{ID: 9, Order: 1}}))

	require.NoError(t, repo.RemoveInstanceOrders(ctx, "inst-1"))

	got, err := repo.LoadBacklogOrder(ctx, "inst-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	tasks, err := repo.LoadTaskOrder(ctx, "inst-1")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	kept, err := repo.LoadBacklogOrder(ctx, "inst-2")
	require.NoError(t, err)
	assert.Len(t, kept, 1, "other instances keep their entries")
}

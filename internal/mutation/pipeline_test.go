package mutation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/state"
	"github.com/dverna/crossplan/internal/testutil"
)

func newTestPipeline(items ...*domain.WorkItem) (*Pipeline, *testutil.FakeClient, *state.Store, *state.Cache) {
	client := testutil.NewFakeClient(items...)
	store := state.NewStore()
	cache := state.NewCache()
	return NewPipeline(client, state.NewBroadcaster(store, cache), nil), client, store, cache
}

func TestUpdateFields_PatchesOptimisticallyAndConfirms(t *testing.T) {
	item := testutil.NewWorkItem(1, "before")
	p, client, store, cache := newTestPipeline(item)
	store.SetSlice(state.SliceWorkItems, []*domain.WorkItem{item})
	cache.Set("q", []*domain.WorkItem{item})

	err := p.UpdateFields(context.Background(), UpdateArgs{
		ID:      1,
		Project: "proj",
		Fields:  map[string]any{domain.FieldTitle: "after"},
		Targets: state.Targets{
			CacheKeys:   []state.Key{"q"},
			StoreSlices: []state.SliceKey{state.SliceWorkItems},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "after", store.Slice(state.SliceWorkItems)[0].Fields.String(domain.FieldTitle))
	cached, _ := cache.Get("q")
	assert.Equal(t, "after", cached[0].Fields.String(domain.FieldTitle))
	assert.Equal(t, []int{1}, client.Updated)
	assert.Empty(t, store.ItemError(1))
}

func TestUpdateFields_OptimisticMapDiffersFromLiteral(t *testing.T) {
	item := testutil.NewWorkItem(1, "item")
	p, client, store, _ := newTestPipeline(item)
	store.SetSlice(state.SliceWorkItems, []*domain.WorkItem{item})

	err := p.UpdateFields(context.Background(), UpdateArgs{
		ID:      1,
		Project: "proj",
		Fields:  map[string]any{domain.FieldAssignedTo: "user@example.com"},
		Optimistic: map[string]any{
			domain.FieldAssignedTo: map[string]any{"displayName": "User", "uniqueName": "user@example.com"},
		},
		Targets: state.Targets{StoreSlices: []state.SliceKey{state.SliceWorkItems}},
	})
	require.NoError(t, err)

	// The server saw the literal string; the remote item now carries it.
	assert.Equal(t, "user@example.com", client.Items[1].Fields.String(domain.FieldAssignedTo))
}

func TestUpdateFields_FailureRollsBackAndRecordsError(t *testing.T) {
	item := testutil.NewWorkItem(1, "before")
	p, client, store, cache := newTestPipeline(item)
	client.UpdateErr = ado.ErrRevisionConflict
	store.SetSlice(state.SliceWorkItems, []*domain.WorkItem{item})
	cache.Set("q", []*domain.WorkItem{item})

	err := p.UpdateFields(context.Background(), UpdateArgs{
		ID:      1,
		Project: "proj",
		Fields:  map[string]any{domain.FieldTitle: "after"},
		Targets: state.Targets{
			CacheKeys:   []state.Key{"q"},
			StoreSlices: []state.SliceKey{state.SliceWorkItems},
		},
	})
	require.ErrorIs(t, err, ado.ErrRevisionConflict)

	assert.Equal(t, "before", store.Slice(state.SliceWorkItems)[0].Fields.String(domain.FieldTitle),
		"store restored to pre-mutation shape")
	cached, _ := cache.Get("q")
	assert.Equal(t, "before", cached[0].Fields.String(domain.FieldTitle),
		"cache restored to pre-mutation shape")
	assert.NotEmpty(t, store.ItemError(1))
}

func TestUpdateFields_RollbackRestoresExactCacheEntry(t *testing.T) {
	item := testutil.NewWorkItem(5, "item", testutil.WithField(domain.FieldState, domain.StateInProgress))
	p, client, store, cache := newTestPipeline(item)
	client.UpdateErr = errors.New("boom")
	cache.Set("q", []*domain.WorkItem{item})

	err := p.UpdateFields(context.Background(), UpdateArgs{
		ID:      5,
		Project: "proj",
		Fields:  map[string]any{domain.FieldState: domain.StateDone},
		Targets: state.Targets{CacheKeys: []state.Key{"q"}},
	})
	require.Error(t, err)

	cached, ok := cache.Get("q")
	require.True(t, ok)
	require.Len(t, cached, 1)
	assert.Equal(t, 5, cached[0].ID)
	assert.Equal(t, domain.StateInProgress, cached[0].Fields.String(domain.FieldState),
		"cache entry restored field for field")
	assert.Equal(t, "boom", store.ItemError(5), "failure text recorded verbatim")
}

func TestUpdateFields_RejectsUnknownFieldLocally(t *testing.T) {
	item := testutil.NewWorkItem(1, "before")
	p, client, store, cache := newTestPipeline(item)
	store.SetSlice(state.SliceWorkItems, []*domain.WorkItem{item})
	cache.Set("q", []*domain.WorkItem{item})

	err := p.UpdateFields(context.Background(), UpdateArgs{
		ID:      1,
		Project: "proj",
		Fields:  map[string]any{"System.Titel": "after"},
		Targets: state.Targets{
			CacheKeys:   []state.Key{"q"},
			StoreSlices: []state.SliceKey{state.SliceWorkItems},
		},
	})
	require.ErrorIs(t, err, ErrUnknownField)

	assert.Equal(t, "before", store.Slice(state.SliceWorkItems)[0].Fields.String(domain.FieldTitle),
		"rejection happens before the optimistic patch")
	assert.Empty(t, client.Updated, "nothing sent to the server")
	assert.Empty(t, store.ItemError(1))
}

func TestUpdateFields_PatchesNestedChild(t *testing.T) {
	task := testutil.NewTask(3, 1, "task before")
	parent := testutil.NewWorkItem(1, "parent")
	parent.Children = []*domain.WorkItem{task}

	p, _, store, _ := newTestPipeline(task)
	store.SetSlice(state.SliceWorkItems, []*domain.WorkItem{parent})

	err := p.UpdateFields(context.Background(), UpdateArgs{
		ID:      3,
		Project: "proj",
		Fields:  map[string]any{domain.FieldTitle: "task after"},
		Targets: state.Targets{StoreSlices: []state.SliceKey{state.SliceWorkItems}},
	})
	require.NoError(t, err)

	got := store.Slice(state.SliceWorkItems)[0]
	require.Len(t, got.Children, 1)
	assert.Equal(t, "task after", got.Children[0].Fields.String(domain.FieldTitle))
	assert.Equal(t, "task before", task.Fields.String(domain.FieldTitle),
		"input item untouched, the patch works on clones")
}

func TestUpdateFields_RemoveOpDeletesField(t *testing.T) {
	item := testutil.NewWorkItem(1, "item", testutil.WithField(domain.FieldTags, "a; b"))
	p, client, store, _ := newTestPipeline(item)
	store.SetSlice(state.SliceWorkItems, []*domain.WorkItem{item})

	err := p.UpdateFields(context.Background(), UpdateArgs{
		ID:      1,
		Project: "proj",
		Fields:  map[string]any{domain.FieldTags: nil},
		Op:      OpRemove,
		Targets: state.Targets{StoreSlices: []state.SliceKey{state.SliceWorkItems}},
	})
	require.NoError(t, err)

	_, ok := store.Slice(state.SliceWorkItems)[0].Fields[domain.FieldTags]
	assert.False(t, ok)
	_, ok = client.Items[1].Fields[domain.FieldTags]
	assert.False(t, ok)
}

func TestMoveIteration_UpdatesIterationPath(t *testing.T) {
	item := testutil.NewWorkItem(1, "item", testutil.WithIterationPath(`Proj\Sprint 1`))
	p, client, store, _ := newTestPipeline(item)
	store.SetSlice(state.SliceWorkItems, []*domain.WorkItem{item})

	err := p.MoveIteration(context.Background(), MoveArgs{
		ID:            1,
		Project:       "proj",
		IterationPath: `Proj\Sprint 2`,
		Targets:       state.Targets{StoreSlices: []state.SliceKey{state.SliceWorkItems}},
	})
	require.NoError(t, err)

	assert.Equal(t, `Proj\Sprint 2`,
		store.Slice(state.SliceWorkItems)[0].Fields.String(domain.FieldIterationPath))
	assert.Equal(t, `Proj\Sprint 2`,
		client.Items[1].Fields.String(domain.FieldIterationPath))
}

package mutation

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/state"
	"github.com/dverna/crossplan/internal/testutil"
)

func TestDelete_RemovesFromTopLevelAndChildren(t *testing.T) {
	task := testutil.NewTask(3, 1, "task")
	parent := testutil.NewWorkItem(1, "parent")
	parent.Children = []*domain.WorkItem{task}

	p, client, store, _ := newTestPipeline(task, parent)
	store.SetSlice(state.SliceWorkItems, []*domain.WorkItem{parent, task})

	err := p.Delete(context.Background(), DeleteArgs{
		ID:      3,
		Project: "proj",
		Targets: state.Targets{StoreSlices: []state.SliceKey{state.SliceWorkItems}},
	})
	require.NoError(t, err)

	items := store.Slice(state.SliceWorkItems)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].Children, "task removed from its parent's child list too")
	assert.Equal(t, []int{3}, client.Deleted)
}

func TestDelete_FailureRestoresSiblingList(t *testing.T) {
	item := testutil.NewWorkItem(1, "item")
	p, client, store, _ := newTestPipeline(item)
	client.DeleteErr = ado.ErrPermission
	store.SetSlice(state.SliceWorkItems, []*domain.WorkItem{item})

	err := p.Delete(context.Background(), DeleteArgs{
		ID:      1,
		Project: "proj",
		Targets: state.Targets{StoreSlices: []state.SliceKey{state.SliceWorkItems}},
	})
	require.ErrorIs(t, err, ado.ErrPermission)

	assert.Len(t, store.Slice(state.SliceWorkItems), 1)
	assert.NotEmpty(t, store.ItemError(1))
}

// The hierarchy below has a diamond (4 reachable via both 2 and 3) to
// confirm the visited set deduplicates.
func diamondFixture() []*domain.WorkItem {
	return []*domain.WorkItem{
		testutil.NewWorkItem(1, "root",
			testutil.WithChildRelation(2), testutil.WithChildRelation(3)),
		testutil.NewWorkItem(2, "left",
			testutil.WithType(domain.TypeTask), testutil.WithChildRelation(4)),
		testutil.NewWorkItem(3, "right",
			testutil.WithType(domain.TypeTask), testutil.WithChildRelation(4)),
		testutil.NewWorkItem(4, "leaf", testutil.WithType(domain.TypeTask)),
	}
}

func TestCascadeDelete_AffectedSetCoversDiamond(t *testing.T) {
	items := diamondFixture()
	p, client, store, _ := newTestPipeline(items...)
	store.SetSlice(state.SliceWorkItems, items)

	err := p.CascadeDelete(context.Background(), CascadeArgs{
		ParentID:           1,
		Project:            "proj",
		IncludeDescendants: true,
		CancelParent:       true,
		Targets:            state.Targets{StoreSlices: []state.SliceKey{state.SliceWorkItems}},
	})
	require.NoError(t, err)

	updated := append([]int{}, client.Updated...)
	sort.Ints(updated)
	assert.Equal(t, []int{1, 2, 3, 4}, updated, "each affected id transitions exactly once")

	for _, w := range store.Slice(state.SliceWorkItems) {
		assert.Equal(t, domain.StateRemoved, w.Fields.String(domain.FieldState),
			"item %d transitions to the terminal state", w.ID)
	}
}

func TestCascadeDelete_CycleTerminates(t *testing.T) {
	items := []*domain.WorkItem{
		testutil.NewWorkItem(1, "a", testutil.WithChildRelation(2)),
		testutil.NewWorkItem(2, "b", testutil.WithChildRelation(1)),
	}
	p, client, store, _ := newTestPipeline(items...)
	store.SetSlice(state.SliceWorkItems, items)

	err := p.CascadeDelete(context.Background(), CascadeArgs{
		ParentID:           1,
		Project:            "proj",
		IncludeDescendants: true,
		CancelParent:       true,
		Targets:            state.Targets{StoreSlices: []state.SliceKey{state.SliceWorkItems}},
	})
	require.NoError(t, err)

	updated := append([]int{}, client.Updated...)
	sort.Ints(updated)
	assert.Equal(t, []int{1, 2}, updated)
}

func TestCascadeDelete_DescendantsOnlySkipsParent(t *testing.T) {
	items := diamondFixture()
	p, client, _, _ := newTestPipeline(items...)

	err := p.CascadeDelete(context.Background(), CascadeArgs{
		ParentID:           1,
		Project:            "proj",
		IncludeDescendants: true,
		CancelParent:       false,
	})
	require.NoError(t, err)

	updated := append([]int{}, client.Updated...)
	sort.Ints(updated)
	assert.Equal(t, []int{2, 3, 4}, updated)
}

func TestCascadeDelete_ZeroAffectedIsNoop(t *testing.T) {
	p, client, _, _ := newTestPipeline()

	err := p.CascadeDelete(context.Background(), CascadeArgs{
		ParentID: 0,
		Project:  "proj",
	})
	require.NoError(t, err)
	assert.Empty(t, client.Updated)
}

func TestCascadeDelete_PartialFailureRollsBackUniformly(t *testing.T) {
	items := diamondFixture()
	p, client, store, _ := newTestPipeline(items...)
	client.UpdateErrFor = map[int]error{3: errors.New("server rejected")}
	store.SetSlice(state.SliceWorkItems, items)

	err := p.CascadeDelete(context.Background(), CascadeArgs{
		ParentID:           1,
		Project:            "proj",
		IncludeDescendants: true,
		CancelParent:       true,
		Targets:            state.Targets{StoreSlices: []state.SliceKey{state.SliceWorkItems}},
	})
	require.Error(t, err)

	// One id failing rolls back every affected item, including the ones
	// whose remote call succeeded.
	for _, w := range store.Slice(state.SliceWorkItems) {
		assert.NotEqual(t, domain.StateRemoved, w.Fields.String(domain.FieldState),
			"item %d restored after uniform rollback", w.ID)
	}
	assert.NotEmpty(t, store.ItemError(1), "aggregate error recorded on the parent id")
	assert.Len(t, client.Updated, 4, "a single failure does not block the other calls")
}

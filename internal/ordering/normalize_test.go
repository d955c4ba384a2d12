package ordering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/testutil"
)

func refs(ids ...int) []ItemRef {
	out := make([]ItemRef, len(ids))
	for i, id := range ids {
		out[i] = ItemRef{ID: id}
	}
	return out
}

func rec(id, parent, order int) domain.OrderRecord {
	return domain.OrderRecord{ID: id, ParentID: parent, Order: order}
}

func TestNormalize_EmptyCurrentReturnsNil(t *testing.T) {
	out := Normalize(nil, []domain.OrderRecord{rec(1, 0, 1)})
	assert.Nil(t, out, "normalization must never clear stored state on its own")
}

func TestNormalize_NoStoredAnchorsToFetchPosition(t *testing.T) {
	out := Normalize(refs(30, 10, 20), nil)
	require.Len(t, out, 3)
	assert.Equal(t, []domain.OrderRecord{
		rec(30, 0, 1),
		rec(10, 0, 2),
		rec(20, 0, 3),
	}, out)
}

func TestNormalize_DegenerateStoredAnchorsToFetchPosition(t *testing.T) {
	// order==id for every record is a legacy shape, not a real ordering.
	stored := []domain.OrderRecord{rec(10, 0, 10), rec(20, 0, 20)}
	out := Normalize(refs(20, 10), stored)
	assert.Equal(t, []domain.OrderRecord{
		rec(20, 0, 1),
		rec(10, 0, 2),
	}, out)

	// All-zero orders are equally degenerate.
	stored = []domain.OrderRecord{rec(10, 0, 0), rec(20, 0, 0)}
	out = Normalize(refs(20, 10), stored)
	assert.Equal(t, 1, out[0].Order)
	assert.Equal(t, 20, out[0].ID)
}

func TestNormalize_MixedDegenerateValuesIsRealOrdering(t *testing.T) {
	// One record with a genuine order value rescues the whole set.
	stored := []domain.OrderRecord{rec(10, 0, 10), rec(20, 0, 1)}
	out := Normalize(refs(10, 20), stored)
	assert.Equal(t, []domain.OrderRecord{
		rec(20, 0, 1),
		rec(10, 0, 2),
	}, out)
}

func TestNormalize_UnseenItemsSortLast(t *testing.T) {
	stored := []domain.OrderRecord{rec(2, 0, 1), rec(3, 0, 2)}
	out := Normalize(refs(5, 3, 2, 4), stored)
	require.Len(t, out, 4)
	assert.Equal(t, []int{2, 3, 4, 5}, []int{out[0].ID, out[1].ID, out[2].ID, out[3].ID},
		"unseen items 4 and 5 sort after stored ones, tie-broken by id")
}

func TestNormalize_DenseAfterDeletion(t *testing.T) {
	stored := []domain.OrderRecord{rec(1, 0, 1), rec(2, 0, 2), rec(3, 0, 3)}
	// Item 2 disappeared from the current set.
	out := Normalize(refs(1, 3), stored)
	assert.Equal(t, []domain.OrderRecord{
		rec(1, 0, 1),
		rec(3, 0, 2),
	}, out, "deletions close holes immediately")
}

func TestNormalize_Idempotent(t *testing.T) {
	stored := []domain.OrderRecord{rec(7, 0, 3), rec(5, 0, 9), rec(9, 0, 4)}
	current := refs(9, 5, 7)

	first := Normalize(current, stored)
	second := Normalize(current, first)
	assert.Equal(t, first, second, "normalizing a normalized set is a fixpoint")
}

func TestNormalize_PartitionsAreIndependent(t *testing.T) {
	current := []ItemRef{
		{ID: 11, ParentID: 1},
		{ID: 12, ParentID: 1},
		{ID: 21, ParentID: 2},
	}
	stored := []domain.OrderRecord{
		rec(12, 1, 1),
		rec(11, 1, 2),
	}
	out := Normalize(current, stored)
	require.Len(t, out, 3)

	// Partition 1 follows its stored order; partition 2 had none and
	// anchors to fetch position. Both renumber from 1.
	assert.Equal(t, rec(12, 1, 1), out[0])
	assert.Equal(t, rec(11, 1, 2), out[1])
	assert.Equal(t, rec(21, 2, 1), out[2])
}

func TestNormalizeBacklog_SkipsDrafts(t *testing.T) {
	items := []*domain.WorkItem{
		testutil.NewWorkItem(1, "A"),
		{TempID: "draft-1", Fields: domain.FieldMap{}},
		testutil.NewWorkItem(2, "B"),
	}
	out := NormalizeBacklog(items, nil)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].ID)
	assert.Equal(t, 2, out[1].ID)
}

func TestNormalizeTasks_SkipsOrphans(t *testing.T) {
	tasks := []*domain.WorkItem{
		testutil.NewTask(11, 1, "linked"),
		testutil.NewWorkItem(12, "orphan", testutil.WithType(domain.TypeTask)),
	}
	out := NormalizeTasks(tasks, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 11, out[0].ID)
	assert.Equal(t, 1, out[0].ParentID)
}

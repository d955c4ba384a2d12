package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/scoping"
	"github.com/dverna/crossplan/internal/state"
	"github.com/dverna/crossplan/internal/testutil"
)

func scopedClient(items ...*domain.WorkItem) *testutil.FakeClient {
	client := testutil.NewFakeClient(items...)
	client.FieldValuesFn = func(tc ado.TeamContext) ([]string, error) {
		return []string{"Project " + tc.ProjectID}, nil
	}
	return client
}

func window(paths ...string) domain.IterationWindow {
	return domain.IterationWindow{Paths: paths}
}

func pairs(ids ...string) []domain.ProjectTeamPair {
	out := make([]domain.ProjectTeamPair, len(ids))
	for i, id := range ids {
		out[i] = domain.ProjectTeamPair{ProjectID: id, TeamID: "t-" + id}
	}
	return out
}

func TestRun_EmptyScopeIsNoop(t *testing.T) {
	client := scopedClient()
	p := NewPipeline(client, scoping.NewResolver(client), nil)

	res, err := p.Run(context.Background(), window(), pairs("p1"), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)

	res, err = p.Run(context.Background(), window(`P\S1`), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestRun_AssemblesHierarchyAndAttachesChildren(t *testing.T) {
	parent := testutil.NewWorkItem(1, "story")
	task := testutil.NewTask(2, 1, "task")
	client := scopedClient(parent, task)
	client.QueryIDsFn = func(project, query string) ([]int, error) {
		if strings.Contains(query, "'Task'") {
			return []int{2}, nil
		}
		return []int{1}, nil
	}

	p := NewPipeline(client, scoping.NewResolver(client), nil)
	res, err := p.Run(context.Background(), window(`P\S1`), pairs("p1"), Options{})
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, 1, res.Items[0].ID, "parents come before tasks")

	require.Len(t, res.Items[0].Children, 1)
	assert.Equal(t, 2, res.Items[0].Children[0].ID)
}

func TestRun_ParentOfWindowTaskFetchedEvenWhenOutsideWindow(t *testing.T) {
	// The parent matched no query; only its task did.
	parent := testutil.NewWorkItem(5, "elsewhere")
	task := testutil.NewTask(6, 5, "in window")
	client := scopedClient(parent, task)
	client.QueryIDsFn = func(project, query string) ([]int, error) {
		if strings.Contains(query, "'Task'") {
			return []int{6}, nil
		}
		return nil, nil
	}

	p := NewPipeline(client, scoping.NewResolver(client), nil)
	res, err := p.Run(context.Background(), window(`P\S1`), pairs("p1"), Options{})
	require.NoError(t, err)

	ids := make([]int, len(res.Items))
	for i, w := range res.Items {
		ids[i] = w.ID
	}
	assert.Contains(t, ids, 5, "task parent pulled in via reverse relation")
}

func TestRun_DedupeFirstOccurrenceWins(t *testing.T) {
	parent := testutil.NewWorkItem(1, "shared across teams")
	client := scopedClient(parent)
	client.QueryIDsFn = func(project, query string) ([]int, error) {
		if strings.Contains(query, "'Task'") {
			return nil, nil
		}
		return []int{1}, nil
	}

	p := NewPipeline(client, scoping.NewResolver(client), nil)
	// Two pairs both report item 1.
	res, err := p.Run(context.Background(), window(`P\S1`), pairs("p1", "p2"), Options{})
	require.NoError(t, err)

	assert.Len(t, res.Items, 1, "the same id surfacing in both groups appears once")
}

func TestRun_CancellationReturnsEmptyResult(t *testing.T) {
	client := scopedClient(testutil.NewWorkItem(1, "item"))
	ctx, cancel := context.WithCancel(context.Background())
	client.QueryIDsFn = func(project, query string) ([]int, error) {
		cancel()
		return []int{1}, nil
	}

	p := NewPipeline(client, scoping.NewResolver(client), nil)
	res, err := p.Run(ctx, window(`P\S1`), pairs("p1"), Options{})
	require.Error(t, err)
	assert.Empty(t, res.Items, "cancellation yields an empty result, never a partial tree")
	assert.Empty(t, res.TopLevelParents)
}

func TestRun_DegradedGroupStillMergesOthers(t *testing.T) {
	parent := testutil.NewWorkItem(1, "from healthy group")
	client := scopedClient(parent)
	client.QueryIDsFn = func(project, query string) ([]int, error) {
		if project == "p2" {
			return nil, errors.New("query quota exceeded")
		}
		if strings.Contains(query, "'Task'") {
			return nil, nil
		}
		return []int{1}, nil
	}

	var degraded []string
	obs := &recordingObserver{onDegraded: func(e GroupDegradedEvent) {
		degraded = append(degraded, e.ProjectID)
	}}

	p := NewPipeline(client, scoping.NewResolver(client), obs)
	res, err := p.Run(context.Background(), window(`P\S1`), pairs("p1", "p2"), Options{})
	require.NoError(t, err, "one failing group must not fail the fetch")

	require.Len(t, res.Items, 1)
	assert.Equal(t, []string{"p2"}, degraded)
}

func TestRun_AnnotatesIterationInfo(t *testing.T) {
	parent := testutil.NewWorkItem(1, "story", testutil.WithIterationPath(`P\S1`))
	client := scopedClient(parent)
	client.QueryIDsFn = func(project, query string) ([]int, error) {
		if strings.Contains(query, "'Task'") {
			return nil, nil
		}
		return []int{1}, nil
	}

	iteration := domain.Iteration{ID: "it-1", Path: `P\S1`, TimeFrame: domain.TimeFrameCurrent}
	p := NewPipeline(client, scoping.NewResolver(client), nil)
	res, err := p.Run(context.Background(), window(`P\S1`), pairs("p1"),
		Options{Iterations: []domain.Iteration{iteration}})
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	got, ok := res.Items[0].Fields[domain.FieldIterationInfo].(domain.Iteration)
	require.True(t, ok, "matched items carry resolved iteration metadata")
	assert.Equal(t, "it-1", got.ID)
}

func TestRunAndStore_PopulatesStoreAndCache(t *testing.T) {
	parent := testutil.NewWorkItem(1, "story")
	client := scopedClient(parent)
	client.QueryIDsFn = func(project, query string) ([]int, error) {
		if strings.Contains(query, "'Task'") {
			return nil, nil
		}
		return []int{1}, nil
	}

	p := NewPipeline(client, scoping.NewResolver(client), nil)
	store := state.NewStore()
	cache := state.NewCache()

	w := window(`P\S1`)
	pr := pairs("p1")
	res, err := p.RunAndStore(context.Background(), store, cache, w, pr, Options{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	assert.Len(t, store.Slice(state.SliceWorkItems), 1)
	cached, ok := cache.Get(QueryKey(w, pr, Options{}))
	require.True(t, ok)
	assert.Len(t, cached, 1)
	assert.False(t, store.Loading(), "loading flag cleared after the run")
}

func TestQueryKey_DistinguishesScopes(t *testing.T) {
	a := QueryKey(window(`P\S1`), pairs("p1"), Options{})
	b := QueryKey(window(`P\S2`), pairs("p1"), Options{})
	c := QueryKey(window(`P\S1`), pairs("p2"), Options{})
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestQueryKey_CanonicalizesElementOrder(t *testing.T) {
	a := QueryKey(window(`P\S1`, `Q\S1`), pairs("p1", "p2"),
		Options{Fields: []string{domain.FieldTitle, domain.FieldState}})
	b := QueryKey(window(`Q\S1`, `P\S1`), pairs("p2", "p1"),
		Options{Fields: []string{domain.FieldState, domain.FieldTitle}})
	assert.Equal(t, a, b, "the same scope named in a different order shares a cache entry")
}

type recordingObserver struct {
	onDegraded func(GroupDegradedEvent)
}

func (r *recordingObserver) OnGroupDegraded(e GroupDegradedEvent) {
	if r.onDegraded != nil {
		r.onDegraded(e)
	}
}

func (r *recordingObserver) OnRunCompleted(RunEvent) {}

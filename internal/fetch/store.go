package fetch

import (
	"context"

	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/state"
)

// RunAndStore executes the fetch and publishes the result into both the
// store slices and the cache entry for the derived key, registering a
// refetcher so later invalidations re-run the same parameterization.
func (p *Pipeline) RunAndStore(ctx context.Context, store *state.Store, cache *state.Cache, window domain.IterationWindow, pairs []domain.ProjectTeamPair, opts Options) (*Result, error) {
	key := QueryKey(window, pairs, opts)

	p.mu.Lock()
	p.runs[key] = runParams{window: window, pairs: pairs, opts: opts}
	p.mu.Unlock()

	cache.SetRefetcher(func(refetchCtx context.Context, invalidated state.Key) {
		p.mu.Lock()
		params, ok := p.runs[invalidated]
		p.mu.Unlock()
		if !ok {
			return
		}
		_, _ = p.RunAndStore(refetchCtx, store, cache, params.window, params.pairs, params.opts)
	})

	store.SetLoading(true)
	defer store.SetLoading(false)

	res, err := p.Run(ctx, window, pairs, opts)
	if err != nil {
		return res, err
	}

	store.SetSlice(state.SliceWorkItems, res.Items)
	store.SetSlice(state.SliceTopLevelParents, res.TopLevelParents)
	cache.Set(key, res.Items)

	p.observer.OnRunCompleted(RunEvent{
		Key:        string(key),
		Items:      len(res.Items),
		TopParents: len(res.TopLevelParents),
	})
	return res, nil
}

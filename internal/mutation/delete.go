package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/state"
)

// cascadeParallelism bounds the simultaneous per-id state changes a cascade
// issues.
const cascadeParallelism = 8

// DeleteArgs describes one item removal.
type DeleteArgs struct {
	ID      int
	Project string
	Targets state.Targets
}

// Delete optimistically removes the item from its sibling lists, then
// removes it remotely. Failure restores the lists and records an error.
func (p *Pipeline) Delete(ctx context.Context, args DeleteArgs) error {
	snap := p.broadcaster.Apply(args.Targets, removeItem(args.ID))
	p.observer.OnMutation(Event{Kind: "delete", ItemID: args.ID, Phase: PhaseApplied})

	if err := p.client.DeleteWorkItem(ctx, args.ID, args.Project); err != nil {
		p.rollback("delete", args.ID, snap, err)
		p.settle(ctx, "delete", args.ID, args.Targets)
		return fmt.Errorf("deleting work item %d: %w", args.ID, err)
	}

	p.broadcaster.Store().ClearItemError(args.ID)
	p.observer.OnMutation(Event{Kind: "delete", ItemID: args.ID, Phase: PhaseConfirmed})
	p.settle(ctx, "delete", args.ID, args.Targets)
	return nil
}

// CascadeArgs describes a cancel-with-descendants.
type CascadeArgs struct {
	ParentID           int
	Project            string
	IncludeDescendants bool
	CancelParent       bool
	Targets            state.Targets
}

// CascadeDelete transitions the parent and/or every reachable descendant to
// the terminal removed state. The per-id remote calls run in parallel and
// independently; any failure rolls the whole affected set back uniformly
// and reports an aggregate error on the parent id. An empty affected set is
// a successful no-op.
func (p *Pipeline) CascadeDelete(ctx context.Context, args CascadeArgs) error {
	affected, err := p.affectedIDs(ctx, args)
	if err != nil {
		return fmt.Errorf("collecting descendants of %d: %w", args.ParentID, err)
	}
	if len(affected) == 0 {
		return nil
	}

	snap := p.broadcaster.Apply(args.Targets, func(items []*domain.WorkItem) []*domain.WorkItem {
		patched := items
		for _, id := range affected {
			patched = patchItem(id, markRemoved)(patched)
		}
		return patched
	})
	p.observer.OnMutation(Event{Kind: "cascade", ItemID: args.ParentID, Phase: PhaseApplied})

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, cascadeParallelism)
	for _, id := range affected {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			ops := []ado.PatchOp{
				ado.FieldOp(string(OpReplace), domain.FieldState, domain.StateRemoved),
			}
			if _, err := p.client.UpdateWorkItem(ctx, id, args.Project, ops); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("item %d: %w", id, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		agg := errors.Join(errs...)
		p.rollback("cascade", args.ParentID, snap, agg)
		p.settle(ctx, "cascade", args.ParentID, args.Targets)
		return fmt.Errorf("cancelling %d with descendants: %w", args.ParentID, agg)
	}

	p.broadcaster.Store().ClearItemError(args.ParentID)
	p.observer.OnMutation(Event{Kind: "cascade", ItemID: args.ParentID, Phase: PhaseConfirmed})
	p.settle(ctx, "cascade", args.ParentID, args.Targets)
	return nil
}

// affectedIDs unions the (optional) parent with every descendant reachable
// over forward hierarchy links. The visited set tolerates cycles and
// diamonds.
func (p *Pipeline) affectedIDs(ctx context.Context, args CascadeArgs) ([]int, error) {
	var out []int
	seen := make(map[int]bool)
	if args.CancelParent && args.ParentID > 0 {
		seen[args.ParentID] = true
		out = append(out, args.ParentID)
	}
	if !args.IncludeDescendants || args.ParentID <= 0 {
		return out, nil
	}

	stack := []int{args.ParentID}
	visited := map[int]bool{args.ParentID: true}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		w, err := p.client.GetWorkItem(ctx, id, args.Project, ado.ExpandRelations)
		if err != nil {
			return nil, err
		}
		children := domain.ChildrenByParent(domain.Edges([]*domain.WorkItem{w}))
		for _, child := range children[w.ID] {
			if visited[child] {
				continue
			}
			visited[child] = true
			stack = append(stack, child)
			if !seen[child] {
				seen[child] = true
				out = append(out, child)
			}
		}
	}
	return out, nil
}

func markRemoved(w *domain.WorkItem) {
	if w.Fields == nil {
		w.Fields = domain.FieldMap{}
	}
	w.Fields[domain.FieldState] = domain.StateRemoved
}

// removeItem builds a ListPatch dropping the item from the top level and
// from any parent's child list.
func removeItem(id int) state.ListPatch {
	return func(items []*domain.WorkItem) []*domain.WorkItem {
		out := make([]*domain.WorkItem, 0, len(items))
		for _, w := range items {
			if w.ID == id {
				continue
			}
			if hasChild(w, id) {
				c := w.Clone()
				kept := c.Children[:0]
				for _, child := range c.Children {
					if child.ID != id {
						kept = append(kept, child)
					}
				}
				c.Children = kept
				out = append(out, c)
				continue
			}
			out = append(out, w)
		}
		return out
	}
}

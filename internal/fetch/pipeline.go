// Package fetch assembles the visible work item hierarchy for a time
// window across many project/team pairs: scoped queries per area group,
// batched item reads, parent derivation from task relations, and a bounded
// Feature/Epic rollup.
package fetch

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/scoping"
	"github.com/dverna/crossplan/internal/state"
	"github.com/dverna/crossplan/internal/wiql"
)

// iterationBatchSize bounds how many iteration paths one WIQL query may
// carry.
const iterationBatchSize = 5

// defaultMaxParallel bounds per-area-group query fan-out so large pair
// counts don't translate into one simultaneous call per pair.
const defaultMaxParallel = 4

// Options tune one pipeline run.
type Options struct {
	Fields []string
	Expand ado.Expand

	// Iterations is the known iteration list used to annotate fetched
	// items with window metadata (consumers fade parents outside the
	// selected window).
	Iterations []domain.Iteration
}

// Result is the assembled hierarchy: every deduplicated item with tasks
// attached under their parents, plus the Feature/Epic level above them.
type Result struct {
	Items           []*domain.WorkItem
	TopLevelParents []*domain.WorkItem
}

// Pipeline orchestrates the scoped hierarchical fetch. Safe for concurrent
// use; each Run is independent.
type Pipeline struct {
	client      ado.Client
	resolver    *scoping.Resolver
	observer    Observer
	maxParallel int

	mu   sync.Mutex
	runs map[state.Key]runParams
}

type runParams struct {
	window domain.IterationWindow
	pairs  []domain.ProjectTeamPair
	opts   Options
}

// NewPipeline creates a Pipeline.
func NewPipeline(client ado.Client, resolver *scoping.Resolver, observer Observer) *Pipeline {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Pipeline{
		client:      client,
		resolver:    resolver,
		observer:    observer,
		maxParallel: defaultMaxParallel,
		runs:        make(map[state.Key]runParams),
	}
}

// Run executes the fetch for one window. Cancellation returns an empty
// result, never a partial tree. A single area group's query failure
// degrades that group and merges the rest.
func (p *Pipeline) Run(ctx context.Context, window domain.IterationWindow, pairs []domain.ProjectTeamPair, opts Options) (*Result, error) {
	if opts.Expand == "" {
		opts.Expand = ado.ExpandRelations
	}
	if len(window.Paths) == 0 || len(pairs) == 0 {
		return &Result{}, nil
	}

	groups, err := p.resolver.AreaGroups(ctx, pairs)
	if err != nil {
		return &Result{}, err
	}

	parentIDs, taskIDs, err := p.queryIDSets(ctx, window.Paths, groups)
	if err != nil {
		return &Result{}, err
	}
	if len(parentIDs) == 0 && len(taskIDs) == 0 {
		return &Result{}, nil
	}

	tasks, err := p.client.GetWorkItemsByIDs(ctx, taskIDs, "", opts.Fields, opts.Expand)
	if err != nil && ctx.Err() != nil {
		return &Result{}, ctx.Err()
	}

	// A parent may own tasks in the window while itself sitting outside
	// it; without this union those tasks would render orphaned.
	allParentIDs := unionIDs(parentIDs, domain.ParentIDsOfTasks(tasks))

	parents, err := p.client.GetWorkItemsByIDs(ctx, allParentIDs, "", opts.Fields, opts.Expand)
	if err != nil && ctx.Err() != nil {
		return &Result{}, ctx.Err()
	}

	if err := ctx.Err(); err != nil {
		return &Result{}, err
	}

	annotate(tasks, opts.Iterations)
	annotate(parents, opts.Iterations)
	attachChildren(parents, tasks)

	combined := dedupe(append(append([]*domain.WorkItem{}, parents...), tasks...))

	topLevel, err := p.resolveTopLevel(ctx, combined, parents, opts)
	if err != nil {
		return &Result{}, err
	}

	return &Result{Items: combined, TopLevelParents: topLevel}, nil
}

// queryIDSets runs the parent and task queries for every (batch, group)
// combination with bounded parallelism and unions the resulting id sets.
func (p *Pipeline) queryIDSets(ctx context.Context, paths []string, groups []domain.AreaGroup) (parentIDs, taskIDs []int, err error) {
	var mu sync.Mutex
	parentSet := make(map[int]bool)
	taskSet := make(map[int]bool)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxParallel)

	for start := 0; start < len(paths); start += iterationBatchSize {
		batch := paths[start:min(start+iterationBatchSize, len(paths))]
		for _, group := range groups {
			if len(group.AreaPaths) == 0 {
				continue
			}
			g.Go(func() error {
				queries := wiql.ForIterations(batch, group.AreaPaths)

				pids, perr := p.client.QueryIDs(ctx, group.ProjectID, queries.ParentsQuery)
				if perr == nil {
					var tids []int
					tids, perr = p.client.QueryIDs(ctx, group.ProjectID, queries.TasksQuery)
					if perr == nil {
						mu.Lock()
						for _, id := range pids {
							parentSet[id] = true
						}
						for _, id := range tids {
							taskSet[id] = true
						}
						mu.Unlock()
						return nil
					}
				}

				// Degrade this group, keep the rest. Cancellation still
				// aborts the whole fan-out.
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.observer.OnGroupDegraded(GroupDegradedEvent{
					ProjectID: group.ProjectID,
					TeamID:    group.TeamID,
					Err:       perr,
				})
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sortedIDs(parentSet), sortedIDs(taskSet), nil
}

// resolveTopLevel fetches the Feature then Epic level above the combined
// set. With relation expansion this is exactly two further rounds; without
// it a recursive link query resolves the ancestors instead.
func (p *Pipeline) resolveTopLevel(ctx context.Context, combined, parents []*domain.WorkItem, opts Options) ([]*domain.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.Expand == ado.ExpandNone {
		ids := make([]int, 0, len(combined))
		for _, w := range combined {
			ids = append(ids, w.ID)
		}
		query := wiql.ForParentLinks(ids)
		if query == "" {
			return nil, nil
		}
		pairs, err := p.client.QueryLinks(ctx, "", query)
		if err != nil {
			return nil, err
		}
		sourceSet := make(map[int]bool)
		for _, pair := range pairs {
			if pair.SourceID > 0 {
				sourceSet[pair.SourceID] = true
			}
		}
		items, err := p.client.GetWorkItemsByIDs(ctx, sortedIDs(sourceSet), "", opts.Fields, opts.Expand)
		if err != nil {
			return nil, err
		}
		return dedupe(items), nil
	}

	features, err := p.client.GetWorkItemsByIDs(ctx, domain.ParentIDsOfTasks(parents), "", opts.Fields, opts.Expand)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	epics, err := p.client.GetWorkItemsByIDs(ctx, domain.ParentIDsOfTasks(features), "", opts.Fields, opts.Expand)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	annotate(features, opts.Iterations)
	annotate(epics, opts.Iterations)
	return dedupe(append(append([]*domain.WorkItem{}, features...), epics...)), nil
}

// annotate attaches resolved iteration metadata to each item by matching
// its iteration-path field against the known iteration list.
func annotate(items []*domain.WorkItem, iterations []domain.Iteration) {
	if len(iterations) == 0 {
		return
	}
	byPath := make(map[string]domain.Iteration, len(iterations))
	for _, it := range iterations {
		byPath[it.Path] = it
	}
	for _, w := range items {
		if it, ok := byPath[w.Fields.String(domain.FieldIterationPath)]; ok {
			w.Fields[domain.FieldIterationInfo] = it
		}
	}
}

// attachChildren links each task under its reverse-hierarchy parents.
func attachChildren(parents, tasks []*domain.WorkItem) {
	byID := make(map[int]*domain.WorkItem, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	byParent := make(map[int][]*domain.WorkItem)
	for _, e := range domain.Edges(tasks) {
		if e.Kind != domain.RelHierarchyReverse {
			continue
		}
		byParent[e.TargetID] = append(byParent[e.TargetID], byID[e.SourceID])
	}
	for _, p := range parents {
		p.Children = byParent[p.ID]
	}
}

// dedupe drops repeated ids, first occurrence wins.
func dedupe(items []*domain.WorkItem) []*domain.WorkItem {
	seen := make(map[int]bool, len(items))
	var out []*domain.WorkItem
	for _, w := range items {
		if w == nil || w.ID <= 0 || seen[w.ID] {
			continue
		}
		seen[w.ID] = true
		out = append(out, w)
	}
	return out
}

func unionIDs(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, ids := range [][]int{a, b} {
		for _, id := range ids {
			if id <= 0 || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func sortedIDs(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// QueryKey derives the cache key for one fetch parameterization. Paths,
// pairs, and fields are sorted first so two calls naming the same scope in
// a different order share one cache entry.
func QueryKey(window domain.IterationWindow, pairs []domain.ProjectTeamPair, opts Options) state.Key {
	paths := append([]string(nil), window.Paths...)
	sort.Strings(paths)

	pairParts := make([]string, len(pairs))
	for i, pair := range pairs {
		pairParts[i] = pair.ProjectID + ":" + pair.TeamID
	}
	sort.Strings(pairParts)

	fields := append([]string(nil), opts.Fields...)
	sort.Strings(fields)

	parts := []string{
		"workItems",
		strings.Join(paths, ","),
		strings.Join(pairParts, ","),
		strings.Join(fields, ","),
		string(opts.Expand),
	}
	return state.Key(strings.Join(parts, "|"))
}

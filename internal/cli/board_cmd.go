package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dverna/crossplan/internal/cli/formatter"
	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/fetch"
	"github.com/dverna/crossplan/internal/ordering"
)

func newBoardCmd(app *App) *cobra.Command {
	var instanceID, timeframe string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the cross-team backlog for the selected iteration window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			inst, err := resolveInstance(ctx, app, instanceID)
			if err != nil {
				return err
			}
			if len(inst.ProjectTeamPairs) == 0 {
				return fmt.Errorf("instance %q has no project/team pairs configured", inst.Name)
			}

			iterations, err := collectIterations(ctx, app, inst.ProjectTeamPairs, timeframe)
			if err != nil {
				return err
			}
			windows := domain.WindowsFromIterations(iterations)
			if len(windows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No iterations in the selected time frame."))
				return nil
			}

			opts := fetch.Options{Iterations: iterations}
			for _, window := range windows {
				res, err := app.Fetch.RunAndStore(ctx, app.Store, app.Cache, window, inst.ProjectTeamPairs, opts)
				if err != nil {
					return fmt.Errorf("fetching window %v: %w", window.Paths, err)
				}

				fmt.Fprintln(cmd.OutOrStdout(), formatter.Header(windowTitle(window, iterations)))
				if err := renderBoard(ctx, cmd, app, inst.ID, window, res); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&instanceID, "instance", "", "Board instance id (default: your default instance)")
	cmd.Flags().StringVar(&timeframe, "timeframe", string(domain.TimeFrameCurrent), "Iteration time frame: past, current, or future")
	return cmd
}

// renderBoard orders the fetched hierarchy by the persisted records and
// renders it as a tree, fading parents whose iteration lies outside the
// window.
func renderBoard(ctx context.Context, cmd *cobra.Command, app *App, instanceID string, window domain.IterationWindow, res *fetch.Result) error {
	var parents, tasks []*domain.WorkItem
	for _, w := range res.Items {
		if w.IsTask() {
			tasks = append(tasks, w)
		} else {
			parents = append(parents, w)
		}
	}

	storedBacklog, err := app.Orders.LoadBacklogOrder(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("loading backlog order: %w", err)
	}
	storedTasks, err := app.Orders.LoadTaskOrder(ctx, instanceID)
	if err != nil {
		return fmt.Errorf("loading task order: %w", err)
	}

	backlogOrder := ordering.NormalizeBacklog(parents, storedBacklog)
	taskOrder := ordering.NormalizeTasks(tasks, storedTasks)

	// Persist the re-established dense ordering so the next load starts
	// from a clean shape.
	if err := app.Orders.SaveBacklogOrder(ctx, instanceID, backlogOrder); err != nil {
		return fmt.Errorf("saving backlog order: %w", err)
	}
	if err := app.Orders.SaveTaskOrder(ctx, instanceID, taskOrder); err != nil {
		return fmt.Errorf("saving task order: %w", err)
	}

	sortByOrder(parents, backlogOrder)
	for _, p := range parents {
		sortByOrder(p.Children, taskOrder)
	}

	windowPaths := make(map[string]bool, len(window.Paths))
	for _, path := range window.Paths {
		windowPaths[path] = true
	}
	faded := func(w *domain.WorkItem) bool {
		return !windowPaths[w.Fields.String(domain.FieldIterationPath)]
	}

	roots := assembleTree(parents, res.TopLevelParents)
	fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTree(formatter.FlattenTree(roots, faded)))
	return nil
}

// assembleTree nests backlog items under their Feature and Epic rollups.
// Items without a resolvable feature stay at the top level.
func assembleTree(parents, topLevel []*domain.WorkItem) []*domain.WorkItem {
	featureByItem := domain.FeatureByItemID(topLevel)
	epicByFeature := domain.EpicByFeatureID(topLevel)

	byID := make(map[int]*domain.WorkItem, len(topLevel))
	for _, w := range topLevel {
		byID[w.ID] = w
	}

	// Clone the ancestors so nesting never mutates cached entries.
	nodes := make(map[int]*domain.WorkItem)
	node := func(id int) *domain.WorkItem {
		if n, ok := nodes[id]; ok {
			return n
		}
		src, ok := byID[id]
		if !ok {
			return nil
		}
		n := src.Clone()
		n.Children = nil
		nodes[id] = n
		return n
	}

	var roots []*domain.WorkItem
	seenRoot := make(map[int]bool)
	addRoot := func(w *domain.WorkItem) {
		if !seenRoot[w.ID] {
			seenRoot[w.ID] = true
			roots = append(roots, w)
		}
	}

	for _, item := range parents {
		feature, ok := featureByItem[item.ID]
		if !ok {
			addRoot(item)
			continue
		}
		featureNode := node(feature.ID)
		if featureNode == nil {
			addRoot(item)
			continue
		}
		featureNode.Children = append(featureNode.Children, item)

		if epic, ok := epicByFeature[feature.ID]; ok {
			if epicNode := node(epic.ID); epicNode != nil {
				if !containsChild(epicNode, featureNode.ID) {
					epicNode.Children = append(epicNode.Children, featureNode)
				}
				addRoot(epicNode)
				continue
			}
		}
		addRoot(featureNode)
	}
	return roots
}

func containsChild(w *domain.WorkItem, id int) bool {
	for _, c := range w.Children {
		if c.ID == id {
			return true
		}
	}
	return false
}

// sortByOrder sorts items in place by their normalized order records.
// Items without a record keep relative position after ordered ones.
func sortByOrder(items []*domain.WorkItem, records []domain.OrderRecord) {
	pos := make(map[int]int, len(records))
	for _, r := range records {
		pos[r.ID] = r.Order
	}
	sort.SliceStable(items, func(i, j int) bool {
		oi, iok := pos[items[i].ID]
		oj, jok := pos[items[j].ID]
		switch {
		case iok && jok:
			return oi < oj
		case iok:
			return true
		case jok:
			return false
		default:
			return false
		}
	})
}

// resolveInstance picks the instance by id, falling back to the user's
// default. An empty id with no default means the personal (unshared) board.
func resolveInstance(ctx context.Context, app *App, id string) (*domain.Instance, error) {
	if id != "" {
		inst, err := app.Instances.LoadByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading instance %q: %w", id, err)
		}
		return inst, nil
	}
	inst, err := app.Instances.LoadDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading default instance: %w", err)
	}
	if inst == nil {
		return &domain.Instance{Name: "personal"}, nil
	}
	return inst, nil
}

// collectIterations gathers team iterations across all pairs, keeping only
// the requested time frame.
func collectIterations(ctx context.Context, app *App, pairs []domain.ProjectTeamPair, timeframe string) ([]domain.Iteration, error) {
	frame := domain.TimeFrame(strings.ToLower(timeframe))
	var out []domain.Iteration
	seen := make(map[string]bool)
	for _, pair := range pairs {
		iterations, err := app.Client.GetTeamIterations(ctx, teamContext(pair))
		if err != nil {
			return nil, fmt.Errorf("listing iterations for %s/%s: %w", pair.ProjectID, pair.TeamID, err)
		}
		for _, it := range iterations {
			if it.TimeFrame != frame || seen[it.Path] {
				continue
			}
			seen[it.Path] = true
			out = append(out, it)
		}
	}
	return out, nil
}

func windowTitle(window domain.IterationWindow, iterations []domain.Iteration) string {
	for i := range iterations {
		if len(window.Paths) > 0 && iterations[i].Path == window.Paths[0] {
			return iterations[i].Title()
		}
	}
	return strings.Join(window.Paths, ", ")
}

// Package mutation implements the optimistic write path: every edit patches
// the local containers first, issues the revision-guarded remote call, and
// either confirms or rolls back to an exact pre-mutation snapshot. A
// settlement refetch reconciles the touched cache entries afterwards either
// way.
package mutation

import (
	"context"
	"errors"
	"fmt"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/state"
)

// ErrUnknownField is returned when an update names a field reference outside
// domain.KnownFields. The check runs before anything is patched locally, so a
// typo in a field name never reaches the server or the containers.
var ErrUnknownField = errors.New("unknown field reference")

// OpKind selects how an update applies each field.
type OpKind string

const (
	OpReplace OpKind = "replace"
	OpAdd     OpKind = "add"
	OpRemove  OpKind = "remove"
)

// Pipeline coordinates optimistic mutations against the dual containers and
// the remote platform.
type Pipeline struct {
	client      ado.Client
	broadcaster *state.Broadcaster
	observer    Observer
}

// NewPipeline creates a Pipeline.
func NewPipeline(client ado.Client, broadcaster *state.Broadcaster, observer Observer) *Pipeline {
	if observer == nil {
		observer = NoopObserver{}
	}
	return &Pipeline{client: client, broadcaster: broadcaster, observer: observer}
}

// UpdateArgs describes one field update.
type UpdateArgs struct {
	ID      int
	Project string

	// Fields is the literal map sent to the server.
	Fields map[string]any

	// Optimistic, when set, is shown locally instead of Fields (e.g. a
	// resolved display object where the server takes a plain identifier).
	Optimistic map[string]any

	Op      OpKind
	Targets state.Targets
}

// UpdateFields patches the item everywhere it appears (top-level or nested
// under a parent) in every targeted container, then issues the
// revision-guarded remote patch. Failure restores the snapshot and records
// a per-item error; settlement refetches the targeted cache entries.
func (p *Pipeline) UpdateFields(ctx context.Context, args UpdateArgs) error {
	op := args.Op
	if op == "" {
		op = OpReplace
	}
	for ref := range args.Fields {
		if !domain.KnownFields[ref] {
			return fmt.Errorf("updating work item %d: field %q: %w", args.ID, ref, ErrUnknownField)
		}
	}
	optimistic := args.Optimistic
	if optimistic == nil {
		optimistic = args.Fields
	}

	snap := p.broadcaster.Apply(args.Targets, patchItem(args.ID, func(w *domain.WorkItem) {
		applyFields(w, optimistic, op)
	}))
	p.observer.OnMutation(Event{Kind: "update", ItemID: args.ID, Phase: PhaseApplied})

	ops := make([]ado.PatchOp, 0, len(args.Fields))
	for ref, value := range args.Fields {
		if op == OpRemove {
			ops = append(ops, ado.PatchOp{Op: string(OpRemove), Path: "/fields/" + ref})
			continue
		}
		ops = append(ops, ado.FieldOp(string(op), ref, value))
	}

	_, err := p.client.UpdateWorkItem(ctx, args.ID, args.Project, ops)
	if err != nil {
		p.rollback("update", args.ID, snap, err)
		p.settle(ctx, "update", args.ID, args.Targets)
		return fmt.Errorf("updating work item %d: %w", args.ID, err)
	}

	p.broadcaster.Store().ClearItemError(args.ID)
	p.observer.OnMutation(Event{Kind: "update", ItemID: args.ID, Phase: PhaseConfirmed})
	p.settle(ctx, "update", args.ID, args.Targets)
	return nil
}

// MoveArgs describes an iteration move.
type MoveArgs struct {
	ID            int
	Project       string
	IterationPath string
	Targets       state.Targets
}

// MoveIteration moves the item to a new iteration path. The patch also
// reaches items nested by reference under a different cache root, so a task
// moved from a parent's child list updates wherever that parent appears.
func (p *Pipeline) MoveIteration(ctx context.Context, args MoveArgs) error {
	return p.UpdateFields(ctx, UpdateArgs{
		ID:      args.ID,
		Project: args.Project,
		Fields:  map[string]any{domain.FieldIterationPath: args.IterationPath},
		Targets: args.Targets,
	})
}

func (p *Pipeline) rollback(kind string, id int, snap *state.Snapshot, err error) {
	snap.Restore()
	p.broadcaster.Store().SetItemError(id, err.Error())
	p.observer.OnMutation(Event{Kind: kind, ItemID: id, Phase: PhaseRolledBack, Err: err})
}

// settle refetches every targeted cache entry so local state reconciles
// with the server regardless of outcome.
func (p *Pipeline) settle(ctx context.Context, kind string, id int, targets state.Targets) {
	for _, key := range targets.CacheKeys {
		p.broadcaster.Cache().Invalidate(ctx, key)
	}
	p.observer.OnMutation(Event{Kind: kind, ItemID: id, Phase: PhaseRefetch})
}

// patchItem builds a ListPatch applying fn to the item with the given id,
// whether it sits at the top level or nested in a parent's children. Input
// items are never mutated; touched entries are cloned.
func patchItem(id int, fn func(*domain.WorkItem)) state.ListPatch {
	return func(items []*domain.WorkItem) []*domain.WorkItem {
		out := make([]*domain.WorkItem, len(items))
		for i, w := range items {
			switch {
			case w.ID == id:
				c := w.Clone()
				fn(c)
				out[i] = c
			case hasChild(w, id):
				c := w.Clone()
				for _, child := range c.Children {
					if child.ID == id {
						fn(child)
					}
				}
				out[i] = c
			default:
				out[i] = w
			}
		}
		return out
	}
}

func hasChild(w *domain.WorkItem, id int) bool {
	for _, child := range w.Children {
		if child.ID == id {
			return true
		}
	}
	return false
}

func applyFields(w *domain.WorkItem, fields map[string]any, op OpKind) {
	if w.Fields == nil {
		w.Fields = domain.FieldMap{}
	}
	for k, v := range fields {
		if op == OpRemove {
			delete(w.Fields, k)
			continue
		}
		w.Fields[k] = v
	}
}

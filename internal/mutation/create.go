package mutation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dverna/crossplan/internal/domain"
	"github.com/dverna/crossplan/internal/state"
)

// CreateArgs describes a new work item.
type CreateArgs struct {
	Project  string
	Type     string
	Fields   domain.FieldMap
	ParentID int
	Targets  state.Targets
}

// CreateDraft appends a local draft with a temporary id to every targeted
// container. The draft renders immediately; Create replaces it once the
// server assigns a real id.
func (p *Pipeline) CreateDraft(args CreateArgs) *domain.WorkItem {
	draft := &domain.WorkItem{
		TempID: uuid.New().String(),
		Fields: args.Fields.Clone(),
	}
	if draft.Fields == nil {
		draft.Fields = domain.FieldMap{}
	}
	draft.Fields[domain.FieldWorkItemType] = args.Type
	if args.ParentID > 0 {
		draft.Fields[domain.FieldParent] = args.ParentID
	}

	p.broadcaster.Apply(args.Targets, func(items []*domain.WorkItem) []*domain.WorkItem {
		out := make([]*domain.WorkItem, 0, len(items)+1)
		out = append(out, items...)
		return append(out, draft)
	})
	return draft
}

// Create persists a draft. On success the draft is replaced in place by the
// server's item; on failure the draft is removed and an error recorded
// against the parent id.
func (p *Pipeline) Create(ctx context.Context, draft *domain.WorkItem, args CreateArgs) (*domain.WorkItem, error) {
	created, err := p.client.CreateWorkItem(ctx, args.Project, args.Type, args.Fields, args.ParentID)
	if err != nil {
		p.broadcaster.Apply(args.Targets, removeDraft(draft.TempID))
		if args.ParentID > 0 {
			p.broadcaster.Store().SetItemError(args.ParentID, err.Error())
		}
		p.observer.OnMutation(Event{Kind: "create", ItemID: args.ParentID, Phase: PhaseRolledBack, Err: err})
		p.settle(ctx, "create", args.ParentID, args.Targets)
		return nil, fmt.Errorf("creating %s: %w", args.Type, err)
	}

	p.broadcaster.Apply(args.Targets, func(items []*domain.WorkItem) []*domain.WorkItem {
		out := make([]*domain.WorkItem, len(items))
		for i, w := range items {
			if w.TempID != "" && w.TempID == draft.TempID {
				out[i] = created
				continue
			}
			out[i] = w
		}
		return out
	})
	p.observer.OnMutation(Event{Kind: "create", ItemID: created.ID, Phase: PhaseConfirmed})
	p.settle(ctx, "create", created.ID, args.Targets)
	return created, nil
}

// RemoveDraft discards an unsaved draft from every targeted container.
func (p *Pipeline) RemoveDraft(tempID string, targets state.Targets) {
	p.broadcaster.Apply(targets, removeDraft(tempID))
	p.broadcaster.Store().RemoveDrafts()
}

func removeDraft(tempID string) state.ListPatch {
	return func(items []*domain.WorkItem) []*domain.WorkItem {
		out := make([]*domain.WorkItem, 0, len(items))
		for _, w := range items {
			if w.TempID != "" && w.TempID == tempID {
				continue
			}
			out = append(out, w)
		}
		return out
	}
}

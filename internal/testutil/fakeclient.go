package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/dverna/crossplan/internal/ado"
	"github.com/dverna/crossplan/internal/domain"
)

// FakeClient is an in-memory ado.Client for pipeline tests. Items are
// served from the Items map; per-method hooks override behavior when set.
type FakeClient struct {
	mu sync.Mutex

	Items map[int]*domain.WorkItem

	// UpdateErr, when set, fails every UpdateWorkItem call.
	UpdateErr error
	// UpdateErrFor fails updates for specific ids only.
	UpdateErrFor map[int]error
	// DeleteErr, when set, fails every DeleteWorkItem call.
	DeleteErr error

	QueryIDsFn    func(project, query string) ([]int, error)
	CreateFn      func(project, itemType string, fields domain.FieldMap, parentID int) (*domain.WorkItem, error)
	IterationsFn  func(tc ado.TeamContext) ([]domain.Iteration, error)
	FieldValuesFn func(tc ado.TeamContext) ([]string, error)
	CapacitiesFn  func(tc ado.TeamContext, iterationID string) ([]ado.MemberCapacity, error)

	// Updated records the ids UpdateWorkItem was called with, in order.
	Updated []int
	// Deleted records the ids DeleteWorkItem was called with.
	Deleted []int
}

// NewFakeClient creates a FakeClient serving the given items.
func NewFakeClient(items ...*domain.WorkItem) *FakeClient {
	m := make(map[int]*domain.WorkItem, len(items))
	for _, w := range items {
		m[w.ID] = w
	}
	return &FakeClient{Items: m}
}

func (f *FakeClient) GetWorkItem(_ context.Context, id int, _ string, _ ado.Expand) (*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.Items[id]
	if !ok {
		return nil, ado.ErrNotFound
	}
	return w.Clone(), nil
}

func (f *FakeClient) GetWorkItemsByIDs(_ context.Context, ids []int, _ string, _ []string, _ ado.Expand) ([]*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.WorkItem
	for _, id := range ids {
		if w, ok := f.Items[id]; ok {
			out = append(out, w.Clone())
		}
	}
	return out, nil
}

func (f *FakeClient) UpdateWorkItem(_ context.Context, id int, _ string, ops []ado.PatchOp) (*domain.WorkItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Updated = append(f.Updated, id)
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}
	if err, ok := f.UpdateErrFor[id]; ok {
		return nil, err
	}
	w, ok := f.Items[id]
	if !ok {
		return nil, ado.ErrNotFound
	}
	c := w.Clone()
	for _, op := range ops {
		if op.Op == "test" {
			continue
		}
		field, found := strings.CutPrefix(op.Path, "/fields/")
		if !found {
			continue
		}
		if op.Op == "remove" {
			delete(c.Fields, field)
			continue
		}
		c.Fields[field] = op.Value
	}
	c.Rev++
	f.Items[id] = c
	return c.Clone(), nil
}

func (f *FakeClient) CreateWorkItem(_ context.Context, project, itemType string, fields domain.FieldMap, parentID int) (*domain.WorkItem, error) {
	if f.CreateFn != nil {
		return f.CreateFn(project, itemType, fields, parentID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := 1
	for existing := range f.Items {
		if existing >= id {
			id = existing + 1
		}
	}
	w := &domain.WorkItem{ID: id, Rev: 1, Fields: fields.Clone()}
	if w.Fields == nil {
		w.Fields = domain.FieldMap{}
	}
	w.Fields[domain.FieldWorkItemType] = itemType
	f.Items[id] = w
	return w.Clone(), nil
}

func (f *FakeClient) DeleteWorkItem(_ context.Context, id int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, id)
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.Items, id)
	return nil
}

func (f *FakeClient) QueryIDs(_ context.Context, project, query string) ([]int, error) {
	if f.QueryIDsFn != nil {
		return f.QueryIDsFn(project, query)
	}
	return nil, nil
}

func (f *FakeClient) QueryLinks(context.Context, string, string) ([]ado.IDPair, error) {
	return nil, nil
}

func (f *FakeClient) GetProject(_ context.Context, projectID string) (*ado.Project, error) {
	return &ado.Project{ID: projectID, Name: "Project " + projectID}, nil
}

func (f *FakeClient) GetTeam(_ context.Context, _, teamID string) (*ado.Team, error) {
	return &ado.Team{ID: teamID, Name: "Team " + teamID}, nil
}

func (f *FakeClient) GetTeamFieldValues(_ context.Context, tc ado.TeamContext) ([]string, error) {
	if f.FieldValuesFn != nil {
		return f.FieldValuesFn(tc)
	}
	return nil, nil
}

func (f *FakeClient) GetTeamIterations(_ context.Context, tc ado.TeamContext) ([]domain.Iteration, error) {
	if f.IterationsFn != nil {
		return f.IterationsFn(tc)
	}
	return nil, nil
}

func (f *FakeClient) GetCapacities(_ context.Context, tc ado.TeamContext, iterationID string) ([]ado.MemberCapacity, error) {
	if f.CapacitiesFn != nil {
		return f.CapacitiesFn(tc, iterationID)
	}
	return nil, nil
}

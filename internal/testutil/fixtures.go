package testutil

import (
	"fmt"

	"github.com/dverna/crossplan/internal/domain"
)

// WorkItemOption customizes a fixture work item.
type WorkItemOption func(*domain.WorkItem)

func WithType(itemType string) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.Fields[domain.FieldWorkItemType] = itemType
	}
}

func WithState(state string) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.Fields[domain.FieldState] = state
	}
}

func WithField(key string, value any) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.Fields[key] = value
	}
}

func WithIterationPath(path string) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.Fields[domain.FieldIterationPath] = path
	}
}

func WithRev(rev int) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.Rev = rev
	}
}

// WithParent adds a reverse-hierarchy relation to the given parent id.
func WithParent(parentID int) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.Relations = append(w.Relations, domain.Relation{
			Kind: domain.RelHierarchyReverse,
			URL:  fmt.Sprintf("https://dev.azure.com/org/_apis/wit/workItems/%d", parentID),
		})
	}
}

// WithChildRelation adds a forward-hierarchy relation to the given child id.
func WithChildRelation(childID int) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.Relations = append(w.Relations, domain.Relation{
			Kind: domain.RelHierarchyForward,
			URL:  fmt.Sprintf("https://dev.azure.com/org/_apis/wit/workItems/%d", childID),
		})
	}
}

// NewWorkItem builds a backlog item fixture with sensible defaults.
func NewWorkItem(id int, title string, opts ...WorkItemOption) *domain.WorkItem {
	w := &domain.WorkItem{
		ID:  id,
		Rev: 1,
		Fields: domain.FieldMap{
			domain.FieldTitle:        title,
			domain.FieldWorkItemType: domain.TypeBacklog,
			domain.FieldState:        domain.StateNew,
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NewTask builds a task fixture linked under parentID.
func NewTask(id, parentID int, title string, opts ...WorkItemOption) *domain.WorkItem {
	base := []WorkItemOption{WithType(domain.TypeTask), WithParent(parentID)}
	return NewWorkItem(id, title, append(base, opts...)...)
}

// Package state holds the two shared item containers: the application
// store (named slices read synchronously by every view) and the
// query-keyed cache (scoped reads). Only the fetch and mutation pipelines
// write to them; everything else reads.
package state

import (
	"strings"
	"sync"

	"github.com/dverna/crossplan/internal/domain"
)

// SliceKey names an application store slice.
type SliceKey string

const (
	SliceWorkItems       SliceKey = "workItems"
	SliceParents         SliceKey = "parentWorkItems"
	SliceTopLevelParents SliceKey = "topLevelParentWorkItems"
	SliceChildren        SliceKey = "childrenWorkItems"
)

// Store is the in-memory application state container. Writes to
// SliceWorkItems derive the parent and children slices so consumers that
// filter by level never drift from the full set.
type Store struct {
	mu         sync.RWMutex
	slices     map[SliceKey][]*domain.WorkItem
	itemErrors map[int]string
	loading    bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		slices:     make(map[SliceKey][]*domain.WorkItem),
		itemErrors: make(map[int]string),
	}
}

// Slice returns the current contents of the named slice.
func (s *Store) Slice(key SliceKey) []*domain.WorkItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slices[key]
}

// SetSlice replaces the named slice. Setting SliceWorkItems also rebuilds
// the derived parent and children slices.
func (s *Store) SetSlice(key SliceKey, items []*domain.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slices[key] = items
	if key == SliceWorkItems {
		s.deriveLocked(items)
	}
}

func (s *Store) deriveLocked(items []*domain.WorkItem) {
	var parents, children []*domain.WorkItem
	for _, w := range items {
		if w == nil {
			continue
		}
		switch {
		case w.IsTask():
			children = append(children, w)
		case isBacklogLevel(w):
			parents = append(parents, w)
		}
	}
	s.slices[SliceParents] = parents
	s.slices[SliceChildren] = children
}

func isBacklogLevel(w *domain.WorkItem) bool {
	t := w.Type()
	return strings.EqualFold(t, domain.TypeBacklog) || strings.EqualFold(t, domain.TypeBug)
}

// SetItemError records a per-item error message shown inline next to the
// affected row.
func (s *Store) SetItemError(id int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemErrors[id] = msg
}

// ClearItemError removes any recorded error for the item.
func (s *Store) ClearItemError(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.itemErrors, id)
}

// ItemError returns the recorded error for the item, or "".
func (s *Store) ItemError(id int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.itemErrors[id]
}

// SetLoading flags an in-flight full refresh.
func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

// Loading reports whether a full refresh is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// RemoveDrafts drops locally-created draft items from the children slice.
func (s *Store) RemoveDrafts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.slices[SliceChildren]
	var next []*domain.WorkItem
	for _, w := range prev {
		if w != nil && !w.IsDraft() {
			next = append(next, w)
		}
	}
	s.slices[SliceChildren] = next
}

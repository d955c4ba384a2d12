package domain

import (
	"strconv"
	"strings"
)

// WorkItem is the core entity mirrored from the tracking platform. Fields is
// an open string-keyed map; Children is a derived aggregation populated by
// the fetch pipeline and never sent back to the server.
type WorkItem struct {
	ID        int
	Rev       int
	Fields    FieldMap
	Relations []Relation
	Children  []*WorkItem

	// TempID identifies a locally-created draft before the server has
	// assigned an id. Empty for saved items.
	TempID string
}

// IsDraft reports whether the item only exists locally.
func (w *WorkItem) IsDraft() bool { return w.ID == 0 && w.TempID != "" }

// Type returns the work item type field, or "" when absent.
func (w *WorkItem) Type() string { return w.Fields.String(FieldWorkItemType) }

// IsTask reports whether the item is a leaf-level task.
func (w *WorkItem) IsTask() bool {
	return strings.EqualFold(w.Type(), TypeTask)
}

// ParentID resolves the parent id from the parent field when present,
// falling back to the first reverse-hierarchy relation. Returns 0 when no
// parent can be resolved.
func (w *WorkItem) ParentID() int {
	if id := w.Fields.Int(FieldParent); id > 0 {
		return id
	}
	for _, r := range w.Relations {
		if r.Kind != RelHierarchyReverse {
			continue
		}
		if id := r.TargetID(); id > 0 {
			return id
		}
	}
	return 0
}

// ChildIDs returns all ids referenced by forward-hierarchy relations.
func (w *WorkItem) ChildIDs() []int {
	var out []int
	for _, r := range w.Relations {
		if r.Kind != RelHierarchyForward {
			continue
		}
		if id := r.TargetID(); id > 0 {
			out = append(out, id)
		}
	}
	return out
}

// Tags parses the semicolon-separated tags field into a trimmed, non-empty
// list.
func (w *WorkItem) Tags() []string {
	raw := w.Fields.String(FieldTags)
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ";") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Assignee returns the assigned team member, or the Unassigned placeholder
// when the field is absent or malformed.
func (w *WorkItem) Assignee() TeamMember {
	switch v := w.Fields[FieldAssignedTo].(type) {
	case TeamMember:
		return v
	case map[string]any:
		m := TeamMember{}
		if s, ok := v["id"].(string); ok {
			m.ID = s
		}
		if s, ok := v["displayName"].(string); ok {
			m.DisplayName = s
		}
		if s, ok := v["uniqueName"].(string); ok {
			m.UniqueName = s
		}
		if m.DisplayName != "" || m.ID != "" {
			return m
		}
	}
	return TeamMember{DisplayName: "Unassigned"}
}

// Clone returns a deep copy of the item. Mutation snapshots rely on clones
// so a rollback restores the exact pre-mutation shape.
func (w *WorkItem) Clone() *WorkItem {
	if w == nil {
		return nil
	}
	c := *w
	c.Fields = w.Fields.Clone()
	c.Relations = append([]Relation(nil), w.Relations...)
	if w.Children != nil {
		c.Children = make([]*WorkItem, len(w.Children))
		for i, ch := range w.Children {
			c.Children[i] = ch.Clone()
		}
	}
	return &c
}

// TeamMember is the resolved identity shape stored in assignee fields.
type TeamMember struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

// FieldMap is an open string-keyed map of work item field values.
type FieldMap map[string]any

// Clone returns a shallow-value copy of the map.
func (f FieldMap) Clone() FieldMap {
	if f == nil {
		return nil
	}
	out := make(FieldMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the field as a string, or "" when absent or not
// string-like.
func (f FieldMap) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

// Int returns the field as an int, tolerating the float64 shape JSON
// decoding produces. Returns 0 when absent or malformed.
func (f FieldMap) Int(key string) int {
	switch v := f[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// Float returns the field as a float64, or 0 when absent or malformed.
func (f FieldMap) Float(key string) float64 {
	switch v := f[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return 0
}

// TotalRemainingWork sums the remaining-work field across items, treating
// absent or malformed values as zero.
func TotalRemainingWork(items []*WorkItem) float64 {
	var total float64
	for _, w := range items {
		if w != nil {
			total += w.Fields.Float(FieldRemainingWork)
		}
	}
	return total
}

// ExpandableIDs returns ids of non-task items that have at least one
// forward-hierarchy child. Consumers use this to decide which parent rows
// can expand.
func ExpandableIDs(items []*WorkItem) []int {
	var out []int
	for _, w := range items {
		if w == nil || w.IsTask() {
			continue
		}
		if len(w.ChildIDs()) > 0 {
			out = append(out, w.ID)
		}
	}
	return out
}

// ParentIDsOfTasks collects the unique parent ids referenced by the tasks'
// reverse-hierarchy relations, in first-seen order.
func ParentIDsOfTasks(tasks []*WorkItem) []int {
	seen := make(map[int]bool)
	var out []int
	for _, t := range tasks {
		for _, r := range t.Relations {
			if r.Kind != RelHierarchyReverse {
				continue
			}
			id := r.TargetID()
			if id <= 0 || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ParentRollup holds the id and title of an ancestor item.
type ParentRollup struct {
	ID    int
	Title string
}

// EpicByFeatureID builds a Feature id -> Epic rollup map by scanning epic
// forward-hierarchy links in the top-level parent set.
func EpicByFeatureID(topLevel []*WorkItem) map[int]ParentRollup {
	out := make(map[int]ParentRollup)
	for _, w := range topLevel {
		if !strings.EqualFold(w.Type(), TypeEpic) {
			continue
		}
		roll := ParentRollup{ID: w.ID, Title: w.Fields.String(FieldTitle)}
		for _, featureID := range w.ChildIDs() {
			out[featureID] = roll
		}
	}
	return out
}

// FeatureByItemID builds a child id -> Feature rollup map by scanning
// feature forward-hierarchy links in the top-level parent set.
func FeatureByItemID(topLevel []*WorkItem) map[int]ParentRollup {
	out := make(map[int]ParentRollup)
	for _, w := range topLevel {
		if !strings.EqualFold(w.Type(), TypeFeature) {
			continue
		}
		roll := ParentRollup{ID: w.ID, Title: w.Fields.String(FieldTitle)}
		for _, childID := range w.ChildIDs() {
			out[childID] = roll
		}
	}
	return out
}

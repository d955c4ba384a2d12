package domain

import (
	"strconv"
	"strings"
)

// Relation is a typed link from one work item to another, as the platform
// returns it: a relation kind plus a URL whose trailing path segment is the
// target id.
type Relation struct {
	Kind RelationKind `json:"rel"`
	URL  string       `json:"url"`
}

// TargetID parses the target work item id from the relation URL. Returns 0
// when the URL does not end in a numeric segment.
func (r Relation) TargetID() int {
	url := strings.TrimRight(r.URL, "/")
	idx := strings.LastIndexByte(url, '/')
	if idx < 0 {
		return 0
	}
	id, err := strconv.Atoi(url[idx+1:])
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// RelationEdge is a relation resolved into typed endpoints. Edges are parsed
// once at the fetch boundary; downstream traversal never touches URLs.
type RelationEdge struct {
	Kind     RelationKind
	SourceID int
	TargetID int
}

// Edges parses every resolvable relation of the given items into a typed
// edge list. Relations with unparseable targets are dropped.
func Edges(items []*WorkItem) []RelationEdge {
	var out []RelationEdge
	for _, w := range items {
		for _, r := range w.Relations {
			target := r.TargetID()
			if target <= 0 {
				continue
			}
			out = append(out, RelationEdge{Kind: r.Kind, SourceID: w.ID, TargetID: target})
		}
	}
	return out
}

// ChildrenByParent groups forward-hierarchy edge targets by source id.
func ChildrenByParent(edges []RelationEdge) map[int][]int {
	out := make(map[int][]int)
	for _, e := range edges {
		if e.Kind != RelHierarchyForward {
			continue
		}
		out[e.SourceID] = append(out[e.SourceID], e.TargetID)
	}
	return out
}

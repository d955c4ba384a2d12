package domain

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemWithRelations(id int, rels ...Relation) *WorkItem {
	return &WorkItem{ID: id, Fields: FieldMap{}, Relations: rels}
}

func relTo(kind RelationKind, target int) Relation {
	return Relation{Kind: kind, URL: "https://dev.azure.com/org/_apis/wit/workItems/" +
		strconv.Itoa(target)}
}

func TestRelation_TargetID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want int
	}{
		{"plain id", "https://dev.azure.com/org/_apis/wit/workItems/42", 42},
		{"trailing slash", "https://dev.azure.com/org/_apis/wit/workItems/42/", 42},
		{"vstfs url", "vstfs:///WorkItemTracking/WorkItem/7", 7},
		{"non-numeric tail", "https://dev.azure.com/org/_apis/wit/workItems/latest", 0},
		{"empty", "", 0},
		{"negative", "https://x/items/-3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Relation{Kind: RelHierarchyReverse, URL: tt.url}
			assert.Equal(t, tt.want, r.TargetID())
		})
	}
}

func TestWorkItem_ParentID(t *testing.T) {
	t.Run("parent field wins over relations", func(t *testing.T) {
		w := itemWithRelations(1, relTo(RelHierarchyReverse, 9))
		w.Fields[FieldParent] = 5
		assert.Equal(t, 5, w.ParentID())
	})

	t.Run("falls back to reverse relation", func(t *testing.T) {
		w := itemWithRelations(1,
			relTo(RelHierarchyForward, 3),
			relTo(RelHierarchyReverse, 9))
		assert.Equal(t, 9, w.ParentID())
	})

	t.Run("no parent resolves to zero", func(t *testing.T) {
		w := itemWithRelations(1, relTo(RelRelated, 4))
		assert.Equal(t, 0, w.ParentID())
	})
}

func TestWorkItem_IsTaskAndDraft(t *testing.T) {
	task := &WorkItem{ID: 1, Fields: FieldMap{FieldWorkItemType: "task"}}
	assert.True(t, task.IsTask(), "type compare is case-insensitive")

	draft := &WorkItem{TempID: "tmp-1", Fields: FieldMap{}}
	assert.True(t, draft.IsDraft())
	assert.False(t, task.IsDraft())
}

func TestWorkItem_Tags(t *testing.T) {
	w := &WorkItem{Fields: FieldMap{FieldTags: " infra ; ; backend;"}}
	assert.Equal(t, []string{"infra", "backend"}, w.Tags())

	empty := &WorkItem{Fields: FieldMap{}}
	assert.Nil(t, empty.Tags())
}

func TestWorkItem_Assignee(t *testing.T) {
	w := &WorkItem{Fields: FieldMap{FieldAssignedTo: map[string]any{
		"id": "u1", "displayName": "Dana", "uniqueName": "dana@example.com",
	}}}
	got := w.Assignee()
	assert.Equal(t, "Dana", got.DisplayName)
	assert.Equal(t, "u1", got.ID)

	missing := &WorkItem{Fields: FieldMap{}}
	assert.Equal(t, "Unassigned", missing.Assignee().DisplayName)
}

func TestWorkItem_CloneIsDeep(t *testing.T) {
	child := itemWithRelations(2)
	child.Fields[FieldTitle] = "child"
	w := itemWithRelations(1, relTo(RelHierarchyForward, 2))
	w.Fields[FieldTitle] = "parent"
	w.Children = []*WorkItem{child}

	c := w.Clone()
	c.Fields[FieldTitle] = "changed"
	c.Children[0].Fields[FieldTitle] = "changed child"
	c.Relations[0].URL = "mutated"

	assert.Equal(t, "parent", w.Fields.String(FieldTitle))
	assert.Equal(t, "child", w.Children[0].Fields.String(FieldTitle))
	assert.NotEqual(t, "mutated", w.Relations[0].URL)
}

func TestFieldMap_Accessors(t *testing.T) {
	f := FieldMap{
		"s":  "hello",
		"i":  float64(7), // JSON numbers decode as float64
		"i2": 3,
		"f":  "4.5",
	}
	assert.Equal(t, "hello", f.String("s"))
	assert.Equal(t, 7, f.Int("i"))
	assert.Equal(t, 3, f.Int("i2"))
	assert.Equal(t, 4.5, f.Float("f"))
	assert.Equal(t, 0, f.Int("missing"))
	assert.Equal(t, "", f.String("missing"))
}

func TestParentIDsOfTasks(t *testing.T) {
	tasks := []*WorkItem{
		itemWithRelations(10, relTo(RelHierarchyReverse, 1)),
		itemWithRelations(11, relTo(RelHierarchyReverse, 2), relTo(RelHierarchyForward, 99)),
		itemWithRelations(12, relTo(RelHierarchyReverse, 1)),
	}
	assert.Equal(t, []int{1, 2}, ParentIDsOfTasks(tasks), "unique parents in first-seen order")
}

func TestTotalRemainingWork(t *testing.T) {
	items := []*WorkItem{
		{Fields: FieldMap{FieldRemainingWork: float64(4)}},
		{Fields: FieldMap{FieldRemainingWork: "2.5"}},
		{Fields: FieldMap{}},
		nil,
	}
	assert.Equal(t, 6.5, TotalRemainingWork(items))
}

func TestEdgesAndChildrenByParent(t *testing.T) {
	items := []*WorkItem{
		itemWithRelations(1, relTo(RelHierarchyForward, 2), relTo(RelHierarchyForward, 3)),
		itemWithRelations(2,
			relTo(RelHierarchyReverse, 1),
			Relation{Kind: RelHierarchyForward, URL: "not-a-url"}),
	}

	edges := Edges(items)
	require.Len(t, edges, 3, "unparseable targets are dropped")
	assert.Equal(t, RelationEdge{Kind: RelHierarchyForward, SourceID: 1, TargetID: 2}, edges[0])

	children := ChildrenByParent(edges)
	assert.Equal(t, []int{2, 3}, children[1])
	assert.Empty(t, children[2], "reverse edges do not count as children")
}

func TestExpandableIDs(t *testing.T) {
	parent := itemWithRelations(1, relTo(RelHierarchyForward, 10))
	childless := itemWithRelations(2)
	task := itemWithRelations(3, relTo(RelHierarchyForward, 11))
	task.Fields[FieldWorkItemType] = TypeTask

	assert.Equal(t, []int{1}, ExpandableIDs([]*WorkItem{parent, childless, task}),
		"only non-task items with forward children expand")
}

func TestFeatureAndEpicRollups(t *testing.T) {
	epic := itemWithRelations(1, relTo(RelHierarchyForward, 2))
	epic.Fields[FieldWorkItemType] = TypeEpic
	epic.Fields[FieldTitle] = "Epic A"

	feature := itemWithRelations(2, relTo(RelHierarchyForward, 3), relTo(RelHierarchyForward, 4))
	feature.Fields[FieldWorkItemType] = TypeFeature
	feature.Fields[FieldTitle] = "Feature B"

	pbi := itemWithRelations(3)
	pbi.Fields[FieldWorkItemType] = TypeBacklog

	topLevel := []*WorkItem{epic, feature, pbi}

	features := FeatureByItemID(topLevel)
	require.Contains(t, features, 3)
	assert.Equal(t, ParentRollup{ID: 2, Title: "Feature B"}, features[3])
	assert.Contains(t, features, 4, "links may point outside the fetched set")

	epics := EpicByFeatureID(topLevel)
	require.Contains(t, epics, 2)
	assert.Equal(t, ParentRollup{ID: 1, Title: "Epic A"}, epics[2])
}

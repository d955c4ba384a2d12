package domain

// Field reference names for the work item fields the application reads or
// writes. The FieldMap keeps unrecognized keys as-is.
const (
	FieldID            = "System.Id"
	FieldTitle         = "System.Title"
	FieldState         = "System.State"
	FieldWorkItemType  = "System.WorkItemType"
	FieldAssignedTo    = "System.AssignedTo"
	FieldIterationPath = "System.IterationPath"
	FieldAreaPath      = "System.AreaPath"
	FieldParent        = "System.Parent"
	FieldTags          = "System.Tags"
	FieldRemainingWork = "Microsoft.VSTS.Scheduling.RemainingWork"
	FieldPriority      = "Microsoft.VSTS.Common.Priority"

	// FieldIterationInfo is a derived annotation attached by the fetch
	// pipeline, never sent to the server.
	FieldIterationInfo = "Crossplan.IterationInfo"
)

// KnownFields is the canonical set of field reference names this application
// writes. Field updates outside this set are rejected locally.
var KnownFields = map[string]bool{
	FieldTitle: true, FieldState: true, FieldAssignedTo: true,
	FieldIterationPath: true, FieldAreaPath: true, FieldParent: true,
	FieldTags: true, FieldRemainingWork: true, FieldPriority: true,
}

// Work item type names as the platform reports them.
const (
	TypeEpic    = "Epic"
	TypeFeature = "Feature"
	TypeBacklog = "Product Backlog Item"
	TypeBug     = "Bug"
	TypeTask    = "Task"
)

// Work item states relevant to the sync core.
const (
	StateNew        = "New"
	StateToDo       = "To Do"
	StateInProgress = "In Progress"
	StateDone       = "Done"
	StateRemoved    = "Removed"
)

type RelationKind string

const (
	RelHierarchyForward RelationKind = "System.LinkTypes.Hierarchy-Forward"
	RelHierarchyReverse RelationKind = "System.LinkTypes.Hierarchy-Reverse"
	RelRelated          RelationKind = "System.LinkTypes.Related"
)

type TimeFrame string

const (
	TimeFramePast    TimeFrame = "past"
	TimeFrameCurrent TimeFrame = "current"
	TimeFrameFuture  TimeFrame = "future"
)

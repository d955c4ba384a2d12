// Package prefs persists user and shared preferences in a scoped
// key-value table: board instances, the default-instance choice, and the
// backlog/task order maps.
package prefs

// Scope partitions preference visibility.
type Scope string

const (
	// ScopeUser is per-user private state.
	ScopeUser Scope = "user"
	// ScopeShared is organization-visible state shared across users.
	ScopeShared Scope = "shared"
)

// Storage keys. Order maps hold one entry per scope key (instance id or
// the personal fallback).
const (
	KeyBacklogOrder    = "crossTeamBacklogOrder"
	KeyTaskOrder       = "crossTeamTaskOrder"
	KeyInstances       = "crossTeamInstances"
	KeyDefaultInstance = "crossTeamDefaultInstance"
)

// Personal fallback scope keys used when no instance is active.
const (
	PersonalBacklogKey = "personalBacklogOrder"
	PersonalTaskKey    = "personalTaskOrder"
)

// BacklogScopeKey resolves the order-map key for an instance id, falling
// back to the personal backlog key.
func BacklogScopeKey(instanceID string) string {
	if instanceID == "" {
		return PersonalBacklogKey
	}
	return instanceID
}

// TaskScopeKey resolves the task-order-map key for an instance id, falling
// back to the personal task key.
func TaskScopeKey(instanceID string) string {
	if instanceID == "" {
		return PersonalTaskKey
	}
	return instanceID
}

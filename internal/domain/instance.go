package domain

import "time"

// Instance is a named, shareable board configuration: which project/team
// pairs it spans and who may edit it. The zero-value id means the personal
// (unshared) board.
type Instance struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Org              string            `json:"org,omitempty"`
	CreatedBy        string            `json:"createdBy"`
	Owners           []string          `json:"owners"`
	ProjectTeamPairs []ProjectTeamPair `json:"projectTeamPairs"`
	IsDefault        bool              `json:"isDefault"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Normalize ensures owners is never empty: a stored instance without owners
// falls back to its creator.
func (i Instance) Normalize() Instance {
	if len(i.Owners) == 0 && i.CreatedBy != "" {
		i.Owners = []string{i.CreatedBy}
	}
	return i
}

// CanEdit reports whether the given user id is the creator or an owner.
func (i Instance) CanEdit(userID string) bool {
	if userID == "" {
		return false
	}
	if i.CreatedBy == userID {
		return true
	}
	for _, o := range i.Owners {
		if o == userID {
			return true
		}
	}
	return false
}

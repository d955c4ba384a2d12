package domain

// OrderRecord is one item's position within its sibling set. Top-level
// siblings carry ParentID 0; task siblings are scoped by their parent id.
// After normalization, order values within any (scope, parent) partition
// form a dense 1..N sequence.
type OrderRecord struct {
	ID       int `json:"id"`
	ParentID int `json:"parentId,omitempty"`
	Order    int `json:"order"`
}

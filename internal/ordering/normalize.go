// Package ordering reconciles persisted row-order records against the live
// work item set, producing a dense, stable order per sibling partition.
package ordering

import (
	"math"
	"sort"

	"github.com/dverna/crossplan/internal/domain"
)

// ItemRef is the minimal view of a live item the normalizer needs: its id
// and resolved parent id (0 for top-level items).
type ItemRef struct {
	ID       int
	ParentID int
}

// Normalize reconciles stored order records with the current item set.
//
// Items are partitioned by parent id. Within each partition:
//   - no stored records, or a degenerate stored order (every record's order
//     falsy or equal to its id), anchors the partition to current fetch
//     position, 1..N;
//   - otherwise each item gets its stored order (unseen items sort last),
//     the partition is sorted by (order, id), and renumbered densely 1..N.
//
// The id tie-break makes the result deterministic. An empty current set
// returns nil: normalization never clears stored state on its own.
func Normalize(current []ItemRef, stored []domain.OrderRecord) []domain.OrderRecord {
	if len(current) == 0 {
		return nil
	}

	// Partition current items by parent, preserving first-seen partition
	// order so output is reproducible.
	byParent := make(map[int][]ItemRef)
	var parentOrder []int
	for _, ref := range current {
		if ref.ID <= 0 {
			continue
		}
		if _, ok := byParent[ref.ParentID]; !ok {
			parentOrder = append(parentOrder, ref.ParentID)
		}
		byParent[ref.ParentID] = append(byParent[ref.ParentID], ref)
	}

	storedByParent := make(map[int][]domain.OrderRecord)
	for _, rec := range stored {
		storedByParent[rec.ParentID] = append(storedByParent[rec.ParentID], rec)
	}

	var out []domain.OrderRecord
	for _, parentID := range parentOrder {
		items := byParent[parentID]
		out = append(out, normalizePartition(parentID, items, storedByParent[parentID])...)
	}
	return out
}

func normalizePartition(parentID int, items []ItemRef, stored []domain.OrderRecord) []domain.OrderRecord {
	if degenerate(stored) || len(stored) == 0 {
		// Legacy or never-initialized ordering: anchor to current
		// iteration position.
		out := make([]domain.OrderRecord, len(items))
		for i, ref := range items {
			out[i] = domain.OrderRecord{ID: ref.ID, ParentID: parentID, Order: i + 1}
		}
		return out
	}

	byID := make(map[int]int, len(stored))
	for _, rec := range stored {
		byID[rec.ID] = rec.Order
	}

	out := make([]domain.OrderRecord, len(items))
	for i, ref := range items {
		order, ok := byID[ref.ID]
		if !ok {
			// Unseen items sort after every known item.
			order = math.MaxInt
		}
		out[i] = domain.OrderRecord{ID: ref.ID, ParentID: parentID, Order: order}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})

	// Renumber densely: deletions close holes immediately.
	for i := range out {
		out[i].Order = i + 1
	}
	return out
}

// degenerate reports whether a non-empty stored set is indistinguishable
// from "no real ordering": every record's order falsy or equal to its id.
func degenerate(stored []domain.OrderRecord) bool {
	if len(stored) == 0 {
		return false
	}
	for _, rec := range stored {
		if rec.Order != 0 && rec.Order != rec.ID {
			return false
		}
	}
	return true
}

// NormalizeBacklog normalizes the top-level backlog: every item sits in the
// single parentless partition.
func NormalizeBacklog(items []*domain.WorkItem, stored []domain.OrderRecord) []domain.OrderRecord {
	refs := make([]ItemRef, 0, len(items))
	for _, w := range items {
		if w != nil && w.ID > 0 {
			refs = append(refs, ItemRef{ID: w.ID})
		}
	}
	return Normalize(refs, stored)
}

// NormalizeTasks normalizes task ordering partitioned by resolved parent.
// Tasks whose parent cannot be resolved are skipped: an orphaned task has
// no sibling set to order within.
func NormalizeTasks(tasks []*domain.WorkItem, stored []domain.OrderRecord) []domain.OrderRecord {
	refs := make([]ItemRef, 0, len(tasks))
	for _, t := range tasks {
		if t == nil || t.ID <= 0 {
			continue
		}
		parentID := t.ParentID()
		if parentID <= 0 {
			continue
		}
		refs = append(refs, ItemRef{ID: t.ID, ParentID: parentID})
	}
	return Normalize(refs, stored)
}

package state

import "github.com/dverna/crossplan/internal/domain"

// Targets names the cache entries and store slices one mutation will
// touch. Mutations go through the Broadcaster so a call site can never
// patch one container and forget the other.
type Targets struct {
	CacheKeys   []Key
	StoreSlices []SliceKey
}

// ListPatch transforms one container's item list. Implementations must not
// mutate the input items; they return a new list (shared tails are fine,
// the snapshot holds deep clones).
type ListPatch func(items []*domain.WorkItem) []*domain.WorkItem

// Snapshot captures the pre-mutation contents of exactly the slices and
// entries a mutation touched. Restoring puts back only those, leaving
// concurrent unrelated changes alone.
type Snapshot struct {
	broadcaster *Broadcaster
	cachePrev   map[Key][]*domain.WorkItem
	storePrev   map[SliceKey][]*domain.WorkItem
}

// Restore writes every snapshotted slice and entry back.
func (s *Snapshot) Restore() {
	for key, items := range s.cachePrev {
		s.broadcaster.cache.Set(key, items)
	}
	for key, items := range s.storePrev {
		s.broadcaster.store.SetSlice(key, items)
	}
}

// Broadcaster applies one patch to every targeted container and hands back
// a rollback handle. Snapshot-and-restore lives here, not at call sites.
type Broadcaster struct {
	store *Store
	cache *Cache
}

// NewBroadcaster couples a store and cache behind one patch surface.
func NewBroadcaster(store *Store, cache *Cache) *Broadcaster {
	return &Broadcaster{store: store, cache: cache}
}

// Store returns the underlying application store.
func (b *Broadcaster) Store() *Store { return b.store }

// Cache returns the underlying query cache.
func (b *Broadcaster) Cache() *Cache { return b.cache }

// Apply snapshots every targeted container, applies patch to each, and
// returns the snapshot. Cache keys without an entry are skipped (nothing
// to patch, nothing to restore).
func (b *Broadcaster) Apply(targets Targets, patch ListPatch) *Snapshot {
	snap := &Snapshot{
		broadcaster: b,
		cachePrev:   make(map[Key][]*domain.WorkItem),
		storePrev:   make(map[SliceKey][]*domain.WorkItem),
	}

	for _, key := range targets.CacheKeys {
		items, ok := b.cache.Get(key)
		if !ok {
			continue
		}
		snap.cachePrev[key] = cloneItems(items)
		b.cache.Set(key, patch(items))
	}

	for _, key := range targets.StoreSlices {
		items := b.store.Slice(key)
		snap.storePrev[key] = cloneItems(items)
		b.store.SetSlice(key, patch(items))
	}

	return snap
}

func cloneItems(items []*domain.WorkItem) []*domain.WorkItem {
	if items == nil {
		return nil
	}
	out := make([]*domain.WorkItem, len(items))
	for i, w := range items {
		out[i] = w.Clone()
	}
	return out
}

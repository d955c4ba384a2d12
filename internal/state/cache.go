package state

import (
	"context"
	"sync"

	"github.com/dverna/crossplan/internal/domain"
)

// Key identifies one cache entry. Keys are derived from the fetch
// parameters (iteration window, project/team pairs, fields, expansion) so
// independently-scoped consumers never collide.
type Key string

// Refetcher reconciles a cache entry with the server's authoritative state
// after a mutation settles.
type Refetcher func(ctx context.Context, key Key)

// Cache is the query-keyed container holding the same logical data as the
// Store for consumers that read by scope.
type Cache struct {
	mu        sync.RWMutex
	entries   map[Key][]*domain.WorkItem
	refetcher Refetcher
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Key][]*domain.WorkItem)}
}

// SetRefetcher registers the settlement refetch hook. The fetch layer
// installs this at wiring time.
func (c *Cache) SetRefetcher(fn Refetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refetcher = fn
}

// Get returns the entry for key and whether it exists.
func (c *Cache) Get(key Key) ([]*domain.WorkItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items, ok := c.entries[key]
	return items, ok
}

// Set replaces the entry for key.
func (c *Cache) Set(key Key, items []*domain.WorkItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = items
}

// Delete removes the entry for key.
func (c *Cache) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Invalidate triggers the registered refetcher for key. It does not clear
// the entry: stale data stays visible until the refetch lands.
func (c *Cache) Invalidate(ctx context.Context, key Key) {
	c.mu.RLock()
	fn := c.refetcher
	c.mu.RUnlock()
	if fn != nil {
		fn(ctx, key)
	}
}

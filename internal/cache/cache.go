// Package cache holds the in-memory, optimistically updated mirror of the
// organization's work orders. It is the UI's only read path: commands
// update it synchronously before any remote round trip, and a post-sync
// re-fetch replaces it wholesale with server truth.
package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/norvik-as/fieldops-api/internal/domain"
)

// Cache is a pure in-memory structure with no error conditions of its
// own. All mutation goes through the sync engine, never directly from
// the UI layer.
type Cache struct {
	mu     sync.RWMutex
	orders []domain.WorkOrder
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the full content of the cache (fresh server fetch)
func (c *Cache) Replace(orders []domain.WorkOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = make([]domain.WorkOrder, len(orders))
	copy(c.orders, orders)
}

// List returns a snapshot of all cached work orders
func (c *Cache) List() []domain.WorkOrder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.WorkOrder, len(c.orders))
	copy(out, c.orders)
	return out
}

// Get returns a copy of one work order by id
func (c *Cache) Get(id uuid.UUID) (domain.WorkOrder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.orders {
		if c.orders[i].ID == id {
			return c.orders[i], true
		}
	}
	return domain.WorkOrder{}, false
}

// Add inserts a new work order at the front of the list
func (c *Cache) Add(wo domain.WorkOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append([]domain.WorkOrder{wo}, c.orders...)
}

// Len returns the number of cached work orders
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.orders)
}

// ApplyOptimistic merges a partial update into the matching entry and
// bumps updated_at to now. The change is observable by readers before
// any network round trip completes. Returns false when the id is absent.
func (c *Cache) ApplyOptimistic(id uuid.UUID, patch domain.WorkOrderPatch, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.orders {
		if c.orders[i].ID != id {
			continue
		}
		wo := &c.orders[i]
		if patch.Title != nil {
			wo.Title = *patch.Title
		}
		if patch.Description != nil {
			wo.Description = *patch.Description
		}
		if patch.CustomerName != nil {
			wo.CustomerName = *patch.CustomerName
		}
		if patch.SiteAddress != nil {
			wo.SiteAddress = *patch.SiteAddress
		}
		if patch.JobType != nil {
			wo.JobType = *patch.JobType
		}
		if patch.Status != nil {
			wo.Status = *patch.Status
		}
		if patch.Priority != nil {
			wo.Priority = *patch.Priority
		}
		if patch.AssignedTo != nil {
			wo.AssignedTo = *patch.AssignedTo
		}
		if patch.AssignedToName != nil {
			wo.AssignedToName = *patch.AssignedToName
		}
		wo.UpdatedAt = now
		return true
	}
	return false
}

// Update applies fn to the matching entry under the lock and bumps
// updated_at. Used for composite edits (completion sign-off, child
// appends, detail replacement) that a field patch cannot express.
func (c *Cache) Update(id uuid.UUID, now time.Time, fn func(*domain.WorkOrder)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.orders {
		if c.orders[i].ID == id {
			fn(&c.orders[i])
			c.orders[i].UpdatedAt = now
			return true
		}
	}
	return false
}

package application

import (
	"context"
	"sync"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/scheduler"
)

// FacilityCache holds the shared facility index snapshot. Services patch it
// on every mutation; a periodic refresh rebuilds it from storage so that
// changes made by other processes become visible within the TTL.
type FacilityCache struct {
	mu        sync.RWMutex
	source    EventSource
	now       func() time.Time
	ttl       time.Duration
	index     *scheduler.FacilityIndex
	expiresAt time.Time
}

// NewFacilityCache builds an empty cache. The first Index call loads it.
func NewFacilityCache(source EventSource, ttl time.Duration, now func() time.Time) *FacilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &FacilityCache{source: source, now: now, ttl: ttl}
}

// Index returns the current snapshot, rebuilding it when missing or expired.
func (c *FacilityCache) Index(ctx context.Context) (*scheduler.FacilityIndex, error) {
	if c == nil {
		return scheduler.NewFacilityIndex(nil), nil
	}
	c.mu.RLock()
	index, expiresAt := c.index, c.expiresAt
	c.mu.RUnlock()
	if index != nil && c.now().Before(expiresAt) {
		return index, nil
	}
	if err := c.Refresh(ctx); err != nil {
		if index != nil {
			// Serve the stale snapshot rather than failing reads.
			return index, nil
		}
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index, nil
}

// Refresh rebuilds the snapshot from the event source.
func (c *FacilityCache) Refresh(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.source == nil {
		c.swap(scheduler.NewFacilityIndex(nil))
		return nil
	}
	events, err := c.source.FetchLocatedEvents(ctx)
	if err != nil {
		return unavailable("fetch located events", err)
	}
	c.swap(scheduler.NewFacilityIndex(events))
	return nil
}

// Upsert records a created, moved or re-statused event in the snapshot.
func (c *FacilityCache) Upsert(event scheduler.Event) {
	if index := c.current(); index != nil {
		index.Upsert(event)
	}
}

// Remove drops a deleted event from the snapshot.
func (c *FacilityCache) Remove(eventID string) {
	if index := c.current(); index != nil {
		index.Remove(eventID)
	}
}

// Invalidate forces the next Index call to rebuild the snapshot.
func (c *FacilityCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *FacilityCache) current() *scheduler.FacilityIndex {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

func (c *FacilityCache) swap(index *scheduler.FacilityIndex) {
	expiry := c.now().Add(c.ttl)
	c.mu.Lock()
	c.index = index
	c.expiresAt = expiry
	c.mu.Unlock()
}

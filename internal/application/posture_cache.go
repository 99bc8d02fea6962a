package application

import (
	"sync"
	"time"

	"github.com/example/smarthome-admin/internal/persistence"
)

// postureCache stores recently read postures to avoid a store round trip on
// every access evaluation. Entries are invalidated on mutation, so the cache
// only ever serves postures at least as fresh as the last local write.
type postureCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]postureCacheEntry
}

type postureCacheEntry struct {
	posture   persistence.SecurityPosture
	expiresAt time.Time
}

func newPostureCache(ttl time.Duration, maxEntries int, now func() time.Time) *postureCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &postureCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]postureCacheEntry),
	}
}

func (c *postureCache) Get(adminID string) (persistence.SecurityPosture, bool) {
	if c == nil {
		return persistence.SecurityPosture{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[adminID]
	c.mu.RUnlock()
	if !ok {
		return persistence.SecurityPosture{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, adminID)
		c.mu.Unlock()
		return persistence.SecurityPosture{}, false
	}
	return clonePosture(entry.posture), true
}

func (c *postureCache) Store(posture persistence.SecurityPosture) {
	if c == nil {
		return
	}
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[posture.AdminID] = postureCacheEntry{posture: clonePosture(posture), expiresAt: expiry}
}

func (c *postureCache) Invalidate(adminID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, adminID)
	c.mu.Unlock()
}

func (c *postureCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *postureCache) evictOneLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, entry := range c.entries {
		if !found || entry.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = entry.expiresAt
			found = true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

func clonePosture(posture persistence.SecurityPosture) persistence.SecurityPosture {
	out := posture
	out.AccessSchedules = make(map[string]persistence.AccessSchedule, len(posture.AccessSchedules))
	for id, schedule := range posture.AccessSchedules {
		out.AccessSchedules[id] = schedule
	}
	return out
}

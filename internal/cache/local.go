package cache

import (
	"context"
	"sync"
	"time"

	"github.com/angeloszaimis/wol-monitor/internal/status"
)

// LocalCache is the in-process fallback. Entries carry their write time and
// are judged against the TTL policy whenever they are read.
type LocalCache struct {
	mutex   sync.RWMutex
	entries map[string]status.Entry
	ttl     TTLPolicy
	now     func() time.Time
}

func NewLocalCache(ttl TTLPolicy) *LocalCache {
	return NewLocalCacheWithClock(ttl, time.Now)
}

func NewLocalCacheWithClock(ttl TTLPolicy, now func() time.Time) *LocalCache {
	return &LocalCache{
		entries: make(map[string]status.Entry),
		ttl:     ttl,
		now:     now,
	}
}

func (c *LocalCache) Update(_ context.Context, hostID string, online bool, responseTime *float64, errMsg *string) error {
	entry := status.NewEntry(online, responseTime, errMsg, c.now())

	c.mutex.Lock()
	c.entries[normalizeID(hostID)] = entry
	c.mutex.Unlock()
	return nil
}

func (c *LocalCache) Get(_ context.Context, hostID string) (status.Entry, bool, error) {
	now := c.now()

	c.mutex.RLock()
	entry, ok := c.entries[normalizeID(hostID)]
	c.mutex.RUnlock()

	if !ok || !c.ttl.Fresh(entry, now) {
		return status.Entry{}, false, nil
	}
	return entry, true, nil
}

func (c *LocalCache) GetMany(_ context.Context, hostIDs []string) (map[string]status.Entry, error) {
	now := c.now()
	found := make(map[string]status.Entry, len(hostIDs))

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for _, id := range hostIDs {
		entry, ok := c.entries[normalizeID(id)]
		if ok && c.ttl.Fresh(entry, now) {
			found[id] = entry
		}
	}
	return found, nil
}

func (c *LocalCache) Clear(_ context.Context) error {
	c.mutex.Lock()
	c.entries = make(map[string]status.Entry)
	c.mutex.Unlock()
	return nil
}

func (c *LocalCache) Backend() string { return BackendMemory }

// Prune drops expired entries and returns how many were removed.
func (c *LocalCache) Prune() int {
	now := c.now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed := 0
	for id, entry := range c.entries {
		if !c.ttl.Fresh(entry, now) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

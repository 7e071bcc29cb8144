package history

import "sync"

// existenceCache remembers chat IDs confirmed to exist. It is a positive
// cache only: misses always fall through to the database, and deletes
// invalidate eagerly.
type existenceCache struct {
	mu    sync.RWMutex
	known map[string]struct{}
}

func newExistenceCache() *existenceCache {
	return &existenceCache{known: make(map[string]struct{})}
}

func (c *existenceCache) has(chatID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.known[chatID]
	return ok
}

func (c *existenceCache) add(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known[chatID] = struct{}{}
}

func (c *existenceCache) invalidate(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.known, chatID)
}

package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is an in-process Store used when no Redis is configured and as the
// test double. Expiry is lazy: entries are checked on read and dropped then.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *Memory) Get(_ context.Context, key string, dst any) bool {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return false
	}
	return json.Unmarshal(e.payload, dst) == nil
}

func (c *Memory) Set(_ context.Context, key string, val any, ttl time.Duration) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{payload: data, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

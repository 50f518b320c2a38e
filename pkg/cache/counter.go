package cache

import (
	"context"
	"sync"
	"time"
)

// Counter is a fixed-window hit counter. Incr returns the count for key
// within the current window, starting a new window when the previous one
// has expired.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
	Close() error
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter is the single-process Counter used when Redis is not
// configured.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = &memoryEntry{expiresAt: now.Add(window)}
		c.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (c *MemoryCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Sweep drops expired windows.
func (c *MemoryCounter) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func (c *MemoryCounter) Close() error { return nil }

// ABOUTME: TTL cache over platform message IDs for idempotent webhook handling
// ABOUTME: Upstream services redeliver on non-2xx, duplicates must be silent no-ops

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// entry pairs a key's last-seen time with its position in the eviction list.
type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers recently processed message IDs so redelivered webhook
// events are dropped instead of routed twice. Size-bounded with oldest-first
// eviction; entries also age out after the TTL.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache and starts a background goroutine that drops expired
// entries once a minute.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.reap()
	return c
}

// Seen atomically checks whether key was already processed within the TTL
// window, marking it if not. Returns true for duplicates.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok && time.Since(e.seenAt) < c.ttl {
		return true
	}
	c.mark(key)
	return false
}

// mark records key as seen now. Must be called with mu held.
func (c *Cache) mark(key string) {
	now := time.Now()
	if e, ok := c.seen[key]; ok {
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			old, _ := front.Value.(string)
			c.order.Remove(front)
			delete(c.seen, old)
		}
	}

	c.seen[key] = &entry{seenAt: now, element: c.order.PushBack(key)}
}

// reap periodically removes expired entries until Close.
func (c *Cache) reap() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.expire()
		case <-c.done:
			return
		}
	}
}

// expire drops every entry older than the TTL.
func (c *Cache) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.seen {
		if now.Sub(e.seenAt) > c.ttl {
			c.order.Remove(e.element)
			delete(c.seen, key)
		}
	}
}

// Close stops the background reaper. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}

package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

// Entry is a cached value with its freshness bounds. StaleUntil is never
// before FreshUntil.
type Entry[T any] struct {
	Data       T         `json:"data"`
	FreshUntil time.Time `json:"freshUntil"`
	StaleUntil time.Time `json:"staleUntil"`
}

// Options configures a Cache.
type Options struct {
	// Name labels cache metrics.
	Name string
	// Capacity bounds the number of entries; 0 means unbounded.
	Capacity int
	// StaleDefault is the global floor of the stale TTL.
	StaleDefault time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

type node[T any] struct {
	key   string
	entry Entry[T]
}

// Cache is a bounded TTL cache with a stale window. Entries are kept in
// recency order; a fresh hit moves the entry to the back and the front is
// evicted when capacity is exceeded.
type Cache[T any] struct {
	mu      sync.Mutex
	name    string
	cap     int
	stale   time.Duration
	now     func() time.Time
	order   *list.List
	entries map[string]*list.Element
}

// New creates a cache.
func New[T any](opts Options) *Cache[T] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	name := opts.Name
	if name == "" {
		name = "default"
	}
	return &Cache[T]{
		name:    name,
		cap:     opts.Capacity,
		stale:   opts.StaleDefault,
		now:     now,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

// Get returns the value for key. A stale value is returned only when
// allowStale is set.
func (c *Cache[T]) Get(key string, allowStale bool) (T, bool) {
	v, stale, ok := c.GetWithStaleInfo(key)
	if !ok || (stale && !allowStale) {
		var zero T
		return zero, false
	}
	return v, true
}

// GetWithStaleInfo returns the value for key and whether it is past its
// fresh TTL. A read past the stale TTL is a miss and evicts the entry.
func (c *Cache[T]) GetWithStaleInfo(key string) (T, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.entries[key]
	if !ok {
		c.record("miss")
		return zero, false, false
	}

	n := el.Value.(*node[T])
	now := c.now()
	switch {
	case !now.After(n.entry.FreshUntil):
		c.order.MoveToBack(el)
		c.record("fresh")
		return n.entry.Data, false, true
	case !now.After(n.entry.StaleUntil):
		c.record("stale")
		return n.entry.Data, true, true
	default:
		c.removeElement(el)
		c.record("expired")
		return zero, false, false
	}
}

// Peek returns the entry for key without touching recency or expiry.
func (c *Cache[T]) Peek(key string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return Entry[T]{}, false
	}
	return el.Value.(*node[T]).entry, true
}

// Set stores value under key for freshTTL. The stale TTL defaults to
// max(StaleDefault, 3*freshTTL) and is raised to freshTTL if shorter.
func (c *Cache[T]) Set(key string, value T, freshTTL time.Duration, staleTTL ...time.Duration) Entry[T] {
	stale := c.stale
	if 3*freshTTL > stale {
		stale = 3 * freshTTL
	}
	if len(staleTTL) > 0 && staleTTL[0] > 0 {
		stale = staleTTL[0]
	}
	if stale < freshTTL {
		stale = freshTTL
	}

	now := c.now()
	entry := Entry[T]{
		Data:       value,
		FreshUntil: now.Add(freshTTL),
		StaleUntil: now.Add(stale),
	}
	c.SetEntry(key, entry)
	return entry
}

// SetEntry stores a prepared entry, enforcing StaleUntil >= FreshUntil.
func (c *Cache[T]) SetEntry(key string, entry Entry[T]) {
	if entry.StaleUntil.Before(entry.FreshUntil) {
		entry.StaleUntil = entry.FreshUntil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*node[T]).entry = entry
		c.order.MoveToBack(el)
		return
	}

	c.entries[key] = c.order.PushBack(&node[T]{key: key, entry: entry})
	for c.cap > 0 && c.order.Len() > c.cap {
		c.removeElement(c.order.Front())
	}
}

// Delete removes key.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

// Clear removes every entry.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// Len returns the number of entries, expired ones included until read.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns keys from least to most recently used.
func (c *Cache[T]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*node[T]).key)
	}
	return keys
}

func (c *Cache[T]) removeElement(el *list.Element) {
	n := el.Value.(*node[T])
	delete(c.entries, n.key)
	c.order.Remove(el)
}

func (c *Cache[T]) record(result string) {
	logger.CacheLookups.WithLabelValues(c.name, result).Inc()
}

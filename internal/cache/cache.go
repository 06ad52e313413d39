// Package cache keeps compiled templates keyed by content hash, with LRU
// eviction by total source size and a TTL.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/weft/pkg/weft"
)

// TemplateCache caches compiled templates with LRU eviction and TTL.
type TemplateCache struct {
	entries     map[string]*entry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	now         func() time.Time
	// Dummy head and tail of the LRU list; head.next is most recent.
	head *entry
	tail *entry

	hits      int64
	misses    int64
	evictions int64
}

type entry struct {
	key       string
	template  *weft.Template
	size      int64
	createdAt time.Time
	prev      *entry
	next      *entry
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries   int     `json:"entries" yaml:"entries"`
	Size      int64   `json:"size" yaml:"size"`
	MaxSize   int64   `json:"max_size" yaml:"max_size"`
	Hits      int64   `json:"hits" yaml:"hits"`
	Misses    int64   `json:"misses" yaml:"misses"`
	Evictions int64   `json:"evictions" yaml:"evictions"`
	HitRate   float64 `json:"hit_rate" yaml:"hit_rate"`
}

// New creates a cache holding at most maxSize bytes of template source.
// A ttl of zero never expires entries.
func New(maxSize int64, ttl time.Duration) *TemplateCache {
	c := &TemplateCache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		head:    &entry{},
		tail:    &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get returns the template cached under key.
func (c *TemplateCache) Get(key string) (*weft.Template, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, exists := c.entries[key]
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	if c.expired(e) {
		c.drop(e)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	c.moveToFront(e)
	atomic.AddInt64(&c.hits, 1)
	return e.template, true
}

// Set stores t under key. size is the byte length of its source and counts
// against the cache's capacity; entries larger than the capacity are not
// stored.
func (c *TemplateCache) Set(key string, t *weft.Template, size int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if size > c.maxSize {
		return
	}

	if e, exists := c.entries[key]; exists {
		c.currentSize += size - e.size
		e.template = t
		e.size = size
		e.createdAt = c.now()
		c.moveToFront(e)
		c.evictIfNeeded(0)
		return
	}

	c.evictIfNeeded(size)

	e := &entry{key: key, template: t, size: size, createdAt: c.now()}
	c.entries[key] = e
	c.currentSize += size
	c.addToFront(e)
}

// Delete removes key from the cache.
func (c *TemplateCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, exists := c.entries[key]; exists {
		c.drop(e)
	}
}

// Clear removes all entries and resets statistics.
func (c *TemplateCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*entry)
	c.currentSize = 0
	c.head.next = c.tail
	c.tail.prev = c.head

	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	atomic.StoreInt64(&c.evictions, 0)
}

// Stats returns the current counters.
func (c *TemplateCache) Stats() Stats {
	c.mutex.Lock()
	count, size := len(c.entries), c.currentSize
	c.mutex.Unlock()

	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	s := Stats{
		Entries:   count,
		Size:      size,
		MaxSize:   c.maxSize,
		Hits:      hits,
		Misses:    misses,
		Evictions: atomic.LoadInt64(&c.evictions),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}

	return s
}

func (c *TemplateCache) expired(e *entry) bool {
	return c.ttl > 0 && c.now().Sub(e.createdAt) > c.ttl
}

func (c *TemplateCache) evictIfNeeded(newSize int64) {
	for c.currentSize+newSize > c.maxSize && c.tail.prev != c.head {
		c.drop(c.tail.prev)
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *TemplateCache) drop(e *entry) {
	c.removeFromList(e)
	delete(c.entries, e.key)
	c.currentSize -= e.size
}

func (c *TemplateCache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *TemplateCache) removeFromList(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *TemplateCache) moveToFront(e *entry) {
	c.removeFromList(e)
	c.addToFront(e)
}

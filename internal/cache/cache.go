// Package cache implements the response cache described by the service's
// design: a time-to-live + least-recently-used map that is safe for
// concurrent use and keeps evicted values alive for readers that still
// hold a reference.
//
// Internally this follows the arena-of-indices re-architecture noted for
// the original pointer-heavy doubly linked list: a fixed-capacity slab of
// entry records addressed by uint32 index (noIndex = sentinel "none"),
// external-chaining buckets hashed with FNV-1a, and a doubly linked
// recency list threaded through the same slab.
package cache

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const noIndex = ^uint32(0)

// MaxKeyBytes is the largest key this cache accepts.
const MaxKeyBytes = 256

// DefaultTTL is used by set when ttlOverride is zero.
const DefaultTTL = 60 * time.Second

// Value is a refcounted, immutable byte buffer. A reader obtained from Get
// must call Release exactly once when done with the bytes.
type Value struct {
	bytes []byte
	refs  *int32
	mu    *sync.Mutex
}

// Bytes returns the underlying buffer. The caller must not retain it past
// Release.
func (v Value) Bytes() []byte { return v.bytes }

// Release drops this reader's reference. Once the refcount reaches zero
// and the entry has left the table, the buffer is eligible for GC.
func (v Value) Release() {
	if v.refs == nil {
		return
	}
	v.mu.Lock()
	*v.refs--
	v.mu.Unlock()
}

type entry struct {
	key        []byte
	value      []byte
	refs       int32
	expiresAt  time.Time
	inUse      bool
	prev, next uint32 // recency list, slab indices
	bucketNext uint32 // external chaining within a bucket
}

// Cache is a thread-safe, bounded, TTL + LRU byte-map.
type Cache struct {
	mu       sync.Mutex
	refMu    sync.Mutex
	slab     []entry
	free     []uint32
	buckets  []uint32 // bucket head -> slab index, or noIndex
	index    map[string]uint32
	capacity int
	size     int
	head     uint32 // MRU
	tail     uint32 // LRU / eviction candidate

	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
}

// New creates a cache with the given fixed capacity.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	slab := make([]entry, capacity)
	free := make([]uint32, capacity)
	buckets := make([]uint32, 2*capacity+1)
	for i := range buckets {
		buckets[i] = noIndex
	}
	for i := 0; i < capacity; i++ {
		// Push in descending order so index 0 is allocated first.
		free[i] = uint32(capacity - 1 - i)
	}

	return &Cache{
		slab:      slab,
		free:      free,
		buckets:   buckets,
		index:     make(map[string]uint32, capacity),
		capacity:  capacity,
		head:      noIndex,
		tail:      noIndex,
		hits:      noopCounter(),
		misses:    noopCounter(),
		evictions: noopCounter(),
	}
}

// WithMetrics attaches prometheus counters for hit/miss/eviction tracking.
// Safe to call once, before concurrent use begins.
func (c *Cache) WithMetrics(hits, misses, evictions prometheus.Counter) *Cache {
	c.hits, c.misses, c.evictions = hits, misses, evictions
	return c
}

func noopCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: "lexicon_cache_noop"})
}

// MakeKey formats the deterministic cache key for a file/page lookup.
// pageNum < 0 addresses the whole file (no page suffix).
func MakeKey(fileID int64, pageNum int) string {
	if pageNum < 0 {
		return "file:" + itoa(fileID)
	}
	return "file:" + itoa(fileID) + ":page:" + itoa(int64(pageNum))
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func bucketOf(key string, nbuckets int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % nbuckets
}

// Get looks up key. On a hit it promotes the entry to most-recently-used
// and returns a reference the caller must Release. On a miss, or if the
// entry has expired, it returns ok=false; an expired entry is evicted as a
// side effect.
func (c *Cache) Get(key string) (Value, bool) {
	if len(key) == 0 || len(key) > MaxKeyBytes {
		c.miss()
		return Value{}, false
	}

	c.mu.Lock()
	idx, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		c.miss()
		return Value{}, false
	}

	e := &c.slab[idx]
	if time.Now().After(e.expiresAt) {
		c.removeLocked(idx)
		c.mu.Unlock()
		c.miss()
		return Value{}, false
	}

	c.touchLocked(idx)

	c.refMu.Lock()
	e.refs++
	c.refMu.Unlock()

	v := Value{bytes: e.value, refs: &e.refs, mu: &c.refMu}
	c.mu.Unlock()
	c.hit()
	return v, true
}

// Set inserts or replaces key's value. If the key already exists its value
// is replaced and its expiry refreshed; otherwise a new entry is inserted,
// evicting the least-recently-used entry first if the cache is full.
// ttlOverride of zero uses DefaultTTL. Set returns false only if key is
// empty or longer than MaxKeyBytes; the map is left unchanged in that case.
func (c *Cache) Set(key string, value []byte, ttlOverride time.Duration) bool {
	if len(key) == 0 || len(key) > MaxKeyBytes {
		return false
	}
	ttl := ttlOverride
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	buf := make([]byte, len(value))
	copy(buf, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if idx, ok := c.index[key]; ok {
		e := &c.slab[idx]
		e.value = buf
		e.expiresAt = time.Now().Add(ttl)
		c.touchLocked(idx)
		return true
	}

	if c.size >= c.capacity {
		c.evictLRULocked()
	}

	idx := c.allocLocked()
	e := &c.slab[idx]
	e.key = []byte(key)
	e.value = buf
	e.refs = 0
	e.expiresAt = time.Now().Add(ttl)
	e.inUse = true

	b := bucketOf(key, len(c.buckets))
	e.bucketNext = c.buckets[b]
	c.buckets[b] = idx

	c.index[key] = idx
	c.size++
	c.pushFrontLocked(idx)
	return true
}

// Invalidate removes key if present.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.index[key]; ok {
		c.removeLocked(idx)
	}
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.free = c.free[:0]
	for i := 0; i < c.capacity; i++ {
		c.slab[i] = entry{}
		c.free = append(c.free, uint32(c.capacity-1-i))
	}
	for i := range c.buckets {
		c.buckets[i] = noIndex
	}
	c.index = make(map[string]uint32, c.capacity)
	c.size = 0
	c.head = noIndex
	c.tail = noIndex
}

// Size returns the current number of live entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *Cache) hit() {
	if c.hits != nil {
		c.hits.Inc()
	}
}

func (c *Cache) miss() {
	if c.misses != nil {
		c.misses.Inc()
	}
}

// allocLocked returns a free slab slot. The slab is allocated at fixed
// capacity up front, so this never reallocates the backing array — slab
// entry pointers handed out via Get's refcount remain valid for the
// lifetime of the Cache.
func (c *Cache) allocLocked() uint32 {
	n := len(c.free)
	idx := c.free[n-1]
	c.free = c.free[:n-1]
	return idx
}

// evictLRULocked removes the tail (least-recently-used) entry.
func (c *Cache) evictLRULocked() {
	if c.tail == noIndex {
		return
	}
	c.removeLocked(c.tail)
	if c.evictions != nil {
		c.evictions.Inc()
	}
}

// removeLocked detaches idx from the bucket chain and recency list and
// returns its slot to the free list. The buffer itself is only released
// from the refcount's perspective; a reader already holding a Value keeps
// the bytes valid until it calls Release.
func (c *Cache) removeLocked(idx uint32) {
	e := &c.slab[idx]
	key := string(e.key)

	b := bucketOf(key, len(c.buckets))
	cur := c.buckets[b]
	if cur == idx {
		c.buckets[b] = e.bucketNext
	} else {
		for cur != noIndex {
			n := &c.slab[cur]
			if n.bucketNext == idx {
				n.bucketNext = e.bucketNext
				break
			}
			cur = n.bucketNext
		}
	}

	c.unlinkLocked(idx)
	delete(c.index, key)
	c.size--

	e.inUse = false
	e.key = nil
	e.value = nil
	c.free = append(c.free, idx)
}

func (c *Cache) unlinkLocked(idx uint32) {
	e := &c.slab[idx]
	if e.prev != noIndex {
		c.slab[e.prev].next = e.next
	} else if c.head == idx {
		c.head = e.next
	}
	if e.next != noIndex {
		c.slab[e.next].prev = e.prev
	} else if c.tail == idx {
		c.tail = e.prev
	}
	e.prev, e.next = noIndex, noIndex
}

func (c *Cache) pushFrontLocked(idx uint32) {
	e := &c.slab[idx]
	e.prev = noIndex
	e.next = c.head
	if c.head != noIndex {
		c.slab[c.head].prev = idx
	}
	c.head = idx
	if c.tail == noIndex {
		c.tail = idx
	}
}

func (c *Cache) touchLocked(idx uint32) {
	if c.head == idx {
		return
	}
	c.unlinkLocked(idx)
	c.pushFrontLocked(idx)
}

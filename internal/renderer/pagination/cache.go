package pagination

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/scriptstorm/internal/engine/script"
)

// Entry is a cached line height.
type Entry struct {
	Height     float64
	MeasuredAt time.Time

	contentHash uint64
}

// Pending is a measurement waiting to be written to the cache.
type Pending struct {
	Line   script.Line
	Height float64
}

// CacheStats reports cache counters.
type CacheStats struct {
	Entries    int
	Hits       uint64
	Misses     uint64
	Generation uint64
}

// HeightCache caches measured line heights keyed by line identity.
//
// Entries are dropped explicitly, per line through Invalidate or all at
// once through Reset. An entry whose line content no longer matches is
// also treated as a miss. Reset advances the generation; a PutAll carrying
// an older generation is discarded so measurements taken before a resize
// never land after it.
type HeightCache struct {
	mu         sync.RWMutex
	entries    map[script.LineID]Entry
	generation uint64
	now        func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewHeightCache creates an empty cache.
func NewHeightCache() *HeightCache {
	return &HeightCache{
		entries: make(map[script.LineID]Entry),
		now:     time.Now,
	}
}

// Get returns the cached height for line if present and current.
func (c *HeightCache) Get(line script.Line) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[line.ID]
	c.mu.RUnlock()

	if !ok || e.contentHash != hashLine(line) {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return e, true
}

// Put stores one height.
func (c *HeightCache) Put(line script.Line, height float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(line, height)
}

// PutAll stores a batch of heights measured during generation gen. It
// returns false and stores nothing if the cache was reset since.
func (c *HeightCache) PutAll(gen uint64, pending []Pending) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	for _, p := range pending {
		c.putLocked(p.Line, p.Height)
	}
	return true
}

func (c *HeightCache) putLocked(line script.Line, height float64) {
	c.entries[line.ID] = Entry{
		Height:      height,
		MeasuredAt:  c.now(),
		contentHash: hashLine(line),
	}
}

// Invalidate drops the entries for the given lines.
func (c *HeightCache) Invalidate(ids ...script.LineID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
}

// Reset drops every entry and starts a new generation.
func (c *HeightCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[script.LineID]Entry)
	c.generation++
}

// Generation returns the current generation.
func (c *HeightCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Len returns the number of entries.
func (c *HeightCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the cache counters.
func (c *HeightCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Entries:    len(c.entries),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Generation: c.generation,
	}
}

func hashLine(l script.Line) uint64 {
	h := fnv.New64a()
	h.Write([]byte(l.Tag))
	h.Write([]byte{0})
	h.Write([]byte(l.Text))
	return h.Sum64()
}

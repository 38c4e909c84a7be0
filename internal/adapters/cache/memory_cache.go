package cache

import (
	"context"
	"sync"

	"github.com/mikey/mail-classifier/internal/core"
	"go.uber.org/zap"
)

// MemoryCache is an in-memory implementation of the PredictionCache port.
// Capacity is bounded with first-in-first-out eviction: a plain insertion
// queue gives O(1) eviction without access-order bookkeeping, at the cost
// of a small hit-rate loss versus LRU.
type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]*core.CacheEntry
	queue    []string
	capacity int
	logger   *zap.Logger
	onEvict  func()
}

// NewMemoryCache creates a new in-memory prediction cache. onEvict may be
// nil; when set it is called once per evicted entry.
func NewMemoryCache(capacity int, logger *zap.Logger, onEvict func()) *MemoryCache {
	return &MemoryCache{
		entries:  make(map[string]*core.CacheEntry, capacity),
		capacity: capacity,
		logger:   logger,
		onEvict:  onEvict,
	}
}

// Get retrieves a cached result. An entry written under any model version
// other than modelVersion is stale: it is evicted and reported as a miss,
// so predictions never leak across a model swap.
func (c *MemoryCache) Get(ctx context.Context, fingerprint, modelVersion string) (*core.ClassificationResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if entry.ModelVersion != modelVersion {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have
		// refreshed the entry.
		if cur, ok := c.entries[fingerprint]; ok && cur.ModelVersion != modelVersion {
			delete(c.entries, fingerprint)
			c.evicted()
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.Result, true
}

// Put stores a result under its fingerprint, tagged with the result's model
// version. Re-putting an existing fingerprint refreshes the entry in place.
func (c *MemoryCache) Put(ctx context.Context, fingerprint string, result *core.ClassificationResult) {
	entry := &core.CacheEntry{
		Fingerprint:  fingerprint,
		Result:       result,
		ModelVersion: result.ModelVersion,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fingerprint]; !exists {
		c.queue = append(c.queue, fingerprint)
	}
	c.entries[fingerprint] = entry

	// The queue can hold keys already removed by staleness eviction;
	// popping those is a harmless no-op.
	for len(c.entries) > c.capacity && len(c.queue) > 0 {
		oldest := c.queue[0]
		c.queue = c.queue[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			c.evicted()
		}
	}
}

func (c *MemoryCache) evicted() {
	if c.onEvict != nil {
		c.onEvict()
	}
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop implements the PredictionCache lifecycle; the memory cache holds no
// background resources.
func (c *MemoryCache) Stop() {}

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mikey/mail-classifier/internal/core"
	"go.uber.org/zap"
)

func result(category core.Category, version string) *core.ClassificationResult {
	return &core.ClassificationResult{
		Category:     category,
		Confidence:   0.9,
		Distribution: map[core.Category]float64{category: 0.9},
		ModelVersion: version,
	}
}

func TestMemoryCacheHitAndMiss(t *testing.T) {
	c := NewMemoryCache(10, zap.NewNop(), nil)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "fp1", "v1"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put(ctx, "fp1", result(core.CategorySpam, "v1"))
	got, ok := c.Get(ctx, "fp1", "v1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Category != core.CategorySpam {
		t.Fatalf("unexpected category %s", got.Category)
	}
}

func TestMemoryCacheStaleVersionEvicted(t *testing.T) {
	evictions := 0
	c := NewMemoryCache(10, zap.NewNop(), func() { evictions++ })
	ctx := context.Background()

	c.Put(ctx, "fp1", result(core.CategorySpam, "v1"))
	if _, ok := c.Get(ctx, "fp1", "v2"); ok {
		t.Fatal("entry from an old model version must not serve")
	}
	if evictions != 1 {
		t.Fatalf("expected 1 staleness eviction, got %d", evictions)
	}
	// The stale entry is gone even under the original version.
	if _, ok := c.Get(ctx, "fp1", "v1"); ok {
		t.Fatal("stale entry should have been deleted")
	}
}

func TestMemoryCacheFIFOEviction(t *testing.T) {
	c := NewMemoryCache(3, zap.NewNop(), nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		c.Put(ctx, fmt.Sprintf("fp%d", i), result(core.CategoryWork, "v1"))
	}
	if _, ok := c.Get(ctx, "fp0", "v1"); ok {
		t.Fatal("oldest entry should be FIFO-evicted")
	}
	for i := 1; i < 4; i++ {
		if _, ok := c.Get(ctx, fmt.Sprintf("fp%d", i), "v1"); !ok {
			t.Fatalf("entry fp%d should survive", i)
		}
	}
	if c.Len() != 3 {
		t.Fatalf("cache should hold 3 entries, has %d", c.Len())
	}
}

func TestMemoryCacheRePutDoesNotGrow(t *testing.T) {
	c := NewMemoryCache(3, zap.NewNop(), nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		c.Put(ctx, "same", result(core.CategorySpam, "v1"))
	}
	if c.Len() != 1 {
		t.Fatalf("re-putting one fingerprint should keep one entry, has %d", c.Len())
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(64, zap.NewNop(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("fp%d", (g*200+i)%100)
				c.Put(ctx, key, result(core.CategoryUpdates, "v1"))
				if got, ok := c.Get(ctx, key, "v1"); ok && got.Category != core.CategoryUpdates {
					t.Errorf("observed partially written entry: %+v", got)
				}
			}
		}(g)
	}
	wg.Wait()
}

package cache

import (
	"fmt"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/uvtools/uvcache/pkg/types"
)

// DefaultFrontEntries is the default capacity of the tiered store's LRU front.
const DefaultFrontEntries = 32

// TieredTier layers a small LRU front over a backing tier. Saves write
// through to the back; hits on the back promote into the front. The front
// is a read accelerator only, so its eviction policy is plain LRU.
type TieredTier struct {
	back  types.Tier
	front *lru.Cache[string, *types.CacheEntry]

	mu        sync.Mutex
	frontHits uint64
}

// NewTieredTier wraps the backing tier with an LRU front of the given
// capacity
func NewTieredTier(back types.Tier, frontEntries int) (*TieredTier, error) {
	if frontEntries <= 0 {
		frontEntries = DefaultFrontEntries
	}

	front, err := lru.New[string, *types.CacheEntry](frontEntries)
	if err != nil {
		return nil, err
	}

	return &TieredTier{
		back:  back,
		front: front,
	}, nil
}

// Name returns the tier name, identifying the backing tier
func (t *TieredTier) Name() string {
	return fmt.Sprintf("tiered(%s)", t.back.Name())
}

// SaveEntry writes through to the backing tier and refreshes the front
func (t *TieredTier) SaveEntry(key string, entry *types.CacheEntry) error {
	if err := t.back.SaveEntry(key, entry); err != nil {
		return err
	}
	t.front.Add(key, entry.Clone())
	return nil
}

// LoadEntry serves from the front when possible, promoting backing-tier hits
func (t *TieredTier) LoadEntry(key string) (*types.CacheEntry, error) {
	if entry, ok := t.front.Get(key); ok {
		t.mu.Lock()
		t.frontHits++
		t.mu.Unlock()
		return entry.Clone(), nil
	}

	entry, err := t.back.LoadEntry(key)
	if err != nil {
		return nil, err
	}

	t.front.Add(key, entry.Clone())
	return entry, nil
}

// SaveTexture updates the backing tier and drops the stale front copy
func (t *TieredTier) SaveTexture(key string, pixels *types.PixelBuffer) error {
	if err := t.back.SaveTexture(key, pixels); err != nil {
		return err
	}
	t.front.Remove(key)
	return nil
}

// LoadTexture serves from the front when the cached entry carries a preview
func (t *TieredTier) LoadTexture(key string) (*types.PixelBuffer, error) {
	if entry, ok := t.front.Get(key); ok && entry.Preview != nil {
		t.mu.Lock()
		t.frontHits++
		t.mu.Unlock()
		return entry.Preview.Clone(), nil
	}

	return t.back.LoadTexture(key)
}

// HasCache consults the front, then the backing tier
func (t *TieredTier) HasCache(key string) bool {
	if t.front.Contains(key) {
		return true
	}
	return t.back.HasCache(key)
}

// ClearCache removes the key from both layers
func (t *TieredTier) ClearCache(key string) error {
	t.front.Remove(key)
	return t.back.ClearCache(key)
}

// ClearAllCache clears both layers
func (t *TieredTier) ClearAllCache() error {
	t.front.Purge()
	return t.back.ClearAllCache()
}

// GetStatistics merges front hits into the backing tier's report
func (t *TieredTier) GetStatistics() types.CacheStatistics {
	stats := t.back.GetStatistics()
	stats.Tier = t.Name()

	t.mu.Lock()
	stats.Hits += t.frontHits
	t.mu.Unlock()

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Optimize forwards to the backing tier when it supports optimization
func (t *TieredTier) Optimize() {
	if opt, ok := t.back.(types.Optimizer); ok {
		opt.Optimize()
	}
}

// Close purges the front and closes the backing tier when it is closable
func (t *TieredTier) Close() error {
	t.front.Purge()
	if closer, ok := t.back.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

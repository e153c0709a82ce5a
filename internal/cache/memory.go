package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/uvtools/uvcache/pkg/errors"
	"github.com/uvtools/uvcache/pkg/types"
)

// DefaultMemoryEntries is the default capacity of the memory tier.
const DefaultMemoryEntries = 100

// MemoryTier implements a thread-safe in-memory tier with insertion-order
// eviction. When the tier is full, the entry inserted longest ago is evicted
// first; access does not refresh an entry's position, but overwriting it does.
type MemoryTier struct {
	mu        sync.RWMutex
	capacity  int
	items     map[string]*memoryItem
	evictList *list.List

	// Statistics
	hits        uint64
	misses      uint64
	evictions   uint64
	totalSize   int64
	accessCount uint64
	accessTime  time.Duration
}

// memoryItem represents an entry held by the memory tier
type memoryItem struct {
	key     string
	entry   *types.CacheEntry
	size    int64
	element *list.Element
}

// listEntry represents the value stored in the eviction list element
type listEntry struct {
	key string
}

// NewMemoryTier creates a new memory tier with the given capacity.
// Non-positive capacities fall back to the default.
func NewMemoryTier(capacity int) *MemoryTier {
	if capacity <= 0 {
		capacity = DefaultMemoryEntries
	}

	return &MemoryTier{
		capacity:  capacity,
		items:     make(map[string]*memoryItem),
		evictList: list.New(),
	}
}

// Name returns the tier name
func (t *MemoryTier) Name() string {
	return "memory"
}

// SaveEntry stores a deep copy of the entry under the key. Overwriting an
// existing key refreshes its position in the eviction order.
func (t *MemoryTier) SaveEntry(key string, entry *types.CacheEntry) error {
	if entry == nil {
		return errors.NewError(errors.ErrCodeStorageWrite, "cannot store nil entry").
			WithComponent("memory").WithOperation("SaveEntry").WithKey(key)
	}

	stored := entry.Clone()
	size := stored.EstimateSize()

	t.mu.Lock()
	defer t.mu.Unlock()

	if item, exists := t.items[key]; exists {
		t.totalSize -= item.size
		item.entry = stored
		item.size = size
		t.totalSize += size
		t.evictList.MoveToFront(item.element)
		return nil
	}

	item := &memoryItem{
		key:   key,
		entry: stored,
		size:  size,
	}
	item.element = t.evictList.PushFront(&listEntry{key: key})
	t.items[key] = item
	t.totalSize += size

	t.evictIfNeeded()
	return nil
}

// LoadEntry retrieves a deep copy of the entry stored under the key
func (t *MemoryTier) LoadEntry(key string) (*types.CacheEntry, error) {
	start := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	item, exists := t.items[key]
	if !exists {
		t.misses++
		return nil, errors.NewError(errors.ErrCodeEntryNotFound, "entry not found").
			WithComponent("memory").WithOperation("LoadEntry").WithKey(key)
	}

	t.hits++
	t.accessCount++
	t.accessTime += time.Since(start)
	return item.entry.Clone(), nil
}

// SaveTexture attaches a preview texture to an existing entry. Returns the
// not-found error when no entry exists under the key.
func (t *MemoryTier) SaveTexture(key string, pixels *types.PixelBuffer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, exists := t.items[key]
	if !exists {
		return errors.NewError(errors.ErrCodeEntryNotFound, "entry not found").
			WithComponent("memory").WithOperation("SaveTexture").WithKey(key)
	}

	t.totalSize -= item.size
	item.entry.Preview = pixels.Clone()
	item.size = item.entry.EstimateSize()
	t.totalSize += item.size
	return nil
}

// LoadTexture retrieves a deep copy of the entry's preview texture
func (t *MemoryTier) LoadTexture(key string) (*types.PixelBuffer, error) {
	start := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	item, exists := t.items[key]
	if !exists || item.entry.Preview == nil {
		t.misses++
		return nil, errors.NewError(errors.ErrCodeEntryNotFound, "texture not found").
			WithComponent("memory").WithOperation("LoadTexture").WithKey(key)
	}

	t.hits++
	t.accessCount++
	t.accessTime += time.Since(start)
	return item.entry.Preview.Clone(), nil
}

// HasCache reports whether an entry exists under the key
func (t *MemoryTier) HasCache(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, exists := t.items[key]
	return exists
}

// ClearCache removes the entry stored under the key. Missing keys are a no-op.
func (t *MemoryTier) ClearCache(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.removeItem(key, false)
	return nil
}

// ClearAllCache removes every entry
func (t *MemoryTier) ClearAllCache() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = make(map[string]*memoryItem)
	t.evictList.Init()
	t.totalSize = 0
	return nil
}

// GetStatistics returns a snapshot of the tier's counters
func (t *MemoryTier) GetStatistics() types.CacheStatistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := types.CacheStatistics{
		Tier:           t.Name(),
		EntryCount:     len(t.items),
		TotalSizeBytes: t.totalSize,
		Hits:           t.hits,
		Misses:         t.misses,
		Evictions:      t.evictions,
	}
	if total := t.hits + t.misses; total > 0 {
		stats.HitRate = float64(t.hits) / float64(total)
	}
	if t.accessCount > 0 {
		stats.AverageAccessMs = float64(t.accessTime.Milliseconds()) / float64(t.accessCount)
	}
	return stats
}

// Optimize re-enforces the capacity bound
func (t *MemoryTier) Optimize() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictIfNeeded()
}

// Keys returns the cached keys in eviction order, oldest first
func (t *MemoryTier) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, t.evictList.Len())
	for e := t.evictList.Back(); e != nil; e = e.Prev() {
		keys = append(keys, e.Value.(*listEntry).key)
	}
	return keys
}

// Helper methods

func (t *MemoryTier) removeItem(key string, evicted bool) {
	item, exists := t.items[key]
	if !exists {
		return
	}

	if item.element != nil {
		t.evictList.Remove(item.element)
	}
	delete(t.items, key)
	t.totalSize -= item.size
	if evicted {
		t.evictions++
	}
}

func (t *MemoryTier) evictIfNeeded() {
	for len(t.items) > t.capacity && t.evictList.Len() > 0 {
		element := t.evictList.Back()
		if element == nil {
			return
		}
		t.removeItem(element.Value.(*listEntry).key, true)
	}
}

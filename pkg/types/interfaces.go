package types

// Tier defines the interface implemented by every storage tier
type Tier interface {
	// Identification
	Name() string

	// Entry operations
	SaveEntry(key string, entry *CacheEntry) error
	LoadEntry(key string) (*CacheEntry, error)

	// Preview texture operations
	SaveTexture(key string, pixels *PixelBuffer) error
	LoadTexture(key string) (*PixelBuffer, error)

	// Existence and removal
	HasCache(key string) bool
	ClearCache(key string) error
	ClearAllCache() error

	// Observability
	GetStatistics() CacheStatistics
}

// Optimizer is implemented by tiers that support an internal
// compaction/eviction pass
type Optimizer interface {
	Optimize()
}

// PreviewScaler is implemented by tiers that can regenerate a stored
// preview at a requested resolution. Tiers without this capability
// return the stored fixed-resolution preview unconditionally.
type PreviewScaler interface {
	LoadTextureAt(key string, resolution int) (*PixelBuffer, error)
}

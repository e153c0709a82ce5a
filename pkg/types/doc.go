/*
Package types defines the data model and tier contract shared by the UV
island cache.

This package carries no behavior beyond value helpers; it exists so that
storage tiers, the cache facade, and consumers agree on one entry format
without importing each other.

# Data Model

The stored unit is the CacheEntry:

	CacheEntry
	├── FormatVersion    schema tag; mismatches invalidate the entry
	├── MeshHash         content fingerprint of the source mesh
	├── Timestamp        UTC creation/refresh instant for expiry checks
	├── Islands          []UVIsland — the UV partition result
	│     ├── TriangleIndices / VertexIndices
	│     ├── Bounds (UVRect)
	│     └── Color
	├── Preview          *PixelBuffer — rasterized RGBA preview
	└── SelectedIslands  []int — island selection at caching time

The zero CacheEntry is the miss sentinel: facade lookups return it when
no valid entry exists, and IsZero distinguishes it from real payloads.

# Tier Contract

Every backing store implements Tier. Tiers report misses and failures
as coded errors; converting those into the consumer-facing bool/nil
results is the facade's job, so tiers stay interchangeable.

Two optional capabilities are discovered by type assertion: Optimizer
for tiers with an internal compaction pass, and PreviewScaler for tiers
that can resample a stored preview to a requested resolution.

# Ownership

Entries never cross a tier boundary by reference. Tiers deep-copy on
save and load (see Clone on CacheEntry, UVIsland, and PixelBuffer), so
mutating a loaded entry never corrupts stored state.
*/
package types

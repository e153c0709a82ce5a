/*
Package cache provides the storage tiers that back the UV island cache.

This package implements the tier contract shared by all backing stores: an
in-memory tier with insertion-order eviction, a persistent disk tier with a
JSON index and per-entry files, an S3 tier, a Redis tier, and an optional
LRU front that can be layered over any of them. The facade package selects
and drives a tier; each tier only knows how to store and retrieve entries.

# Tier Architecture

Tier hierarchy as seen by the facade:

	┌─────────────────────────────────────────────┐
	│              Facade                         │
	│   (validity checks, retry, fallback)        │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Tiered Front (optional)           │
	│       LRU over the active tier              │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│              Active Tier                    │
	│  ┌───────────┐ ┌───────────┐ ┌───────────┐  │
	│  │  Memory   │ │   Disk    │ │ S3/Redis  │  │
	│  │  (FIFO)   │ │ (indexed) │ │ (remote)  │  │
	│  └───────────┘ └───────────┘ └───────────┘  │
	└─────────────────────────────────────────────┘

# Tiers

Memory Tier:
- Bounded map of deep-copied entries
- Insertion-order eviction when full
- Overwriting a key refreshes its position
- Volatile, used standalone or as the fallback store

Disk Tier:
- One file per cache key plus a single JSON index
- Optional gzip compression with checksum verification
- Per-file size limit, trigger-based cleanup of oldest entries
- Survives restarts; a damaged index is treated as empty

S3 Tier:
- One object per cache key under a configurable prefix
- Compressed JSON payloads
- Missing objects map to the not-found error code

Redis Tier:
- One value per cache key under a configurable key prefix
- Server-side TTL matched to the expiry window
- Prefix scan for full clears

# Usage Examples

Constructing a tier directly:

	tier := cache.NewMemoryTier(100)
	err := tier.SaveEntry("Cube_12345_24", entry)
	loaded, err := tier.LoadEntry("Cube_12345_24")

Constructing from configuration:

	cfg := config.NewDefault()
	cfg.Cache.ActiveTier = "disk"
	tier, err := cache.NewTierFromConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}

Layering the LRU front:

	front, err := cache.NewTieredTier(tier, 32)

# Persistence

The disk tier keeps its index as a single JSON file updated on every
mutation. Index writes go through a temporary file and rename so a crash
never leaves a half-written index. On startup a missing or corrupt index
yields an empty tier; entry files left behind are removed by Optimize.

# Thread Safety

All tiers are safe for concurrent use. The memory and disk tiers guard
state with a read-write mutex; statistics counters are kept under the same
lock so reads are consistent. Entries returned by LoadEntry are deep copies
and may be mutated freely by callers.
*/
package cache

// Package uvcache provides a keyed, versioned cache for UV topology
// analysis results: island partitions, preview textures, and island
// selections, keyed by mesh identity.
//
// # Architecture
//
// The Cache facade dispatches every operation to one active storage
// tier and absorbs its failures:
//
//	┌────────────────────────────────────────────┐
//	│                   Cache                    │
//	│  sanitize keys · stamp version & timestamp │
//	│  validity checks · statistics · warnings   │
//	└───────────────┬────────────────────────────┘
//	                │ retry × 3, circuit breaker
//	                ▼
//	        ┌──────────────┐      on failure      ┌──────────────┐
//	        │  active tier │ ───────────────────▶ │ memory tier  │
//	        │ memory/disk/ │                      │  (fallback)  │
//	        │   s3/redis   │                      └──────────────┘
//	        └──────────────┘
//
// Data-path methods never return errors. A failing active tier is
// retried, then the operation degrades to the in-memory fallback
// tier; when both fail the operation reports a miss or no-op result.
// Missing entries are ordinary misses and never trigger fallback.
//
// # Usage
//
// Memory-only cache with defaults:
//
//	uv := uvcache.New(nil)
//	defer uv.Close()
//
//	uv.CacheUVData("Cube_12345_24", meshHash, preview, islands, []int{0})
//	entry := uv.LoadUVData("Cube_12345_24")
//	if !entry.IsZero() {
//	    render(entry.Islands, entry.Preview)
//	}
//
// Configuration-driven construction:
//
//	uv, err := uvcache.Open("/etc/uvcache/config.yaml",
//	    uvcache.WithFallbackHook(func(op string, outcome uvcache.Outcome, err error) {
//	        notifyDegraded(op, outcome)
//	    }))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer uv.Close()
//
// # Validity
//
// An entry validates only when its format version matches the
// configured version, its mesh hash matches the caller's hash, and
// it is younger than the expiry window (default seven days). Stale
// entries read as misses but stay in place until overwritten or
// invalidated.
//
// # Statistics
//
// GetStatistics combines tier-level counts with facade-level hit
// rate, average access time, and fallback count. Once ten samples
// accumulate, a hit rate below 0.5 or an average access time above
// 5ms logs a warning; each warning fires once per threshold crossing
// and re-arms after the statistic recovers.
package uvcache

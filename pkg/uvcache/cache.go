package uvcache

import (
	"context"
	stderr "errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/uvtools/uvcache/internal/cache"
	"github.com/uvtools/uvcache/internal/circuit"
	"github.com/uvtools/uvcache/internal/metrics"
	"github.com/uvtools/uvcache/pkg/errors"
	"github.com/uvtools/uvcache/pkg/mesh"
	"github.com/uvtools/uvcache/pkg/retry"
	"github.com/uvtools/uvcache/pkg/types"
)

// Defaults applied when no option overrides them.
const (
	// DefaultExpiry is the validity window for cached entries.
	// Entries older than this stop validating but are left in place.
	DefaultExpiry = 7 * 24 * time.Hour

	// DefaultFormatVersion is the entry format version produced and
	// accepted by the cache.
	DefaultFormatVersion = 1

	// DefaultPreviewResolution is the square preview texture edge
	// length in pixels.
	DefaultPreviewResolution = 128
)

// Outcome classifies how an operation was served.
type Outcome int

const (
	// OutcomeOK means the active tier served the operation.
	OutcomeOK Outcome = iota

	// OutcomeDegraded means the active tier failed and the fallback
	// tier served the operation instead.
	OutcomeDegraded

	// OutcomeFailed means both the active and the fallback tier
	// failed and the operation returned its no-op result.
	OutcomeFailed
)

// String returns the lowercase label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FallbackHook is invoked after every degraded or failed dispatch.
// The error is the failure that triggered the transition. Hooks run
// synchronously on the calling goroutine and must not block.
type FallbackHook func(operation string, outcome Outcome, err error)

// Cache is the facade over the configured storage tiers. All methods
// absorb storage failures: a failing active tier degrades to the
// in-memory fallback tier, and operations report misses or no-op
// results instead of propagating errors. Callers never see an error
// from the data-path methods.
//
// Cache is safe for concurrent use.
type Cache struct {
	active   types.Tier
	fallback types.Tier

	logger            *slog.Logger
	expiry            time.Duration
	formatVersion     int
	previewResolution int

	retryer *retry.Retryer
	breaker *circuit.Breaker
	tracker *statsTracker
	hook    FallbackHook

	collector     *metrics.Collector
	ownsCollector bool
}

// New creates a Cache over the given active tier. A nil tier yields a
// memory-only cache. Unless overridden with WithFallbackTier, the
// fallback is a private memory tier; when the active tier is itself a
// memory tier it doubles as its own fallback.
func New(tier types.Tier, opts ...Option) *Cache {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if tier == nil {
		tier = cache.NewMemoryTier(o.memoryLimit)
	}
	fallback := o.fallback
	if fallback == nil {
		if _, ok := tier.(*cache.MemoryTier); ok {
			fallback = tier
		} else {
			fallback = cache.NewMemoryTier(o.memoryLimit)
		}
	}

	logger := o.logger.With("component", "uvcache")
	rc := o.retryConfig
	if rc.OnRetry == nil {
		rc.OnRetry = func(attempt int, err error, delay time.Duration) {
			logger.Debug("retrying cache operation",
				"attempt", attempt,
				"delay", delay,
				"error", err)
		}
	}

	c := &Cache{
		active:            tier,
		fallback:          fallback,
		logger:            logger,
		expiry:            o.expiry,
		formatVersion:     o.formatVersion,
		previewResolution: o.previewResolution,
		retryer:           retry.New(rc),
		tracker:           newStatsTracker(logger),
		hook:              o.hook,
		collector:         o.collector,
		ownsCollector:     o.ownsCollector,
	}

	if !o.breakerDisabled {
		bc := circuit.Config{}
		if o.breakerConfig != nil {
			bc = *o.breakerConfig
		}
		if bc.IsSuccessful == nil {
			bc.IsSuccessful = breakerSuccess
		}
		if bc.OnStateChange == nil {
			bc.OnStateChange = func(name string, from, to circuit.State) {
				logger.Warn("circuit breaker state change",
					"breaker", name,
					"from", from.String(),
					"to", to.String())
			}
		}
		c.breaker = circuit.NewBreaker(tier.Name(), bc)
	}

	return c
}

// CacheUVData stores the UV analysis results for a mesh under its
// cache key. The entry is timestamped now (UTC) and stamped with the
// configured format version, replacing any previous entry for the
// key. Returns true when a tier accepted the entry.
func (c *Cache) CacheUVData(meshKey string, meshHash uint64, preview *types.PixelBuffer, islands []types.UVIsland, selectedIslands []int) bool {
	key := mesh.Sanitize(meshKey)
	entry := &types.CacheEntry{
		FormatVersion:   c.formatVersion,
		MeshHash:        meshHash,
		Timestamp:       time.Now().UTC(),
		Islands:         islands,
		Preview:         preview,
		SelectedIslands: selectedIslands,
	}

	_, err := c.dispatch("save", func(t types.Tier) error {
		return t.SaveEntry(key, entry)
	})
	if err != nil {
		c.logger.Warn("cache save rejected", "key", key, "error", err)
		return false
	}
	return true
}

// LoadUVData returns the cached entry for a mesh key. The zero entry
// is returned when no entry exists, the stored format version does
// not match, or the entry has expired. Expired and version-mismatched
// entries are left in place until overwritten or invalidated.
func (c *Cache) LoadUVData(meshKey string) types.CacheEntry {
	key := mesh.Sanitize(meshKey)

	var loaded *types.CacheEntry
	outcome, err := c.dispatch("load", func(t types.Tier) error {
		entry, loadErr := t.LoadEntry(key)
		if loadErr != nil {
			return loadErr
		}
		loaded = entry
		return nil
	})
	if err != nil || loaded == nil {
		c.recordRequest(outcome, false)
		return types.CacheEntry{}
	}
	if loaded.FormatVersion != c.formatVersion {
		c.logger.Debug("cache entry version mismatch",
			"key", key,
			"stored", loaded.FormatVersion,
			"expected", c.formatVersion)
		c.recordRequest(outcome, false)
		return types.CacheEntry{}
	}
	if loaded.Expired(c.expiry) {
		c.logger.Debug("cache entry expired", "key", key, "age", loaded.Age())
		c.recordRequest(outcome, false)
		return types.CacheEntry{}
	}
	c.recordRequest(outcome, true)
	return *loaded
}

// IsValidCache reports whether a fresh entry exists for the key with
// a matching format version and mesh hash.
func (c *Cache) IsValidCache(meshKey string, meshHash uint64) bool {
	key := mesh.Sanitize(meshKey)

	var loaded *types.CacheEntry
	outcome, err := c.dispatch("validate", func(t types.Tier) error {
		entry, loadErr := t.LoadEntry(key)
		if loadErr != nil {
			return loadErr
		}
		loaded = entry
		return nil
	})

	valid := err == nil && loaded != nil &&
		loaded.FormatVersion == c.formatVersion &&
		loaded.MeshHash == meshHash &&
		!loaded.Expired(c.expiry)
	c.recordRequest(outcome, valid)
	return valid
}

// GetPreviewTexture returns the preview texture cached for a mesh
// key, or nil when none is stored. The requested resolution is
// advisory: tiers that can rescale honor it, all others return the
// preview at its stored resolution. Zero or negative requests the
// default resolution.
func (c *Cache) GetPreviewTexture(meshKey string, resolution int) *types.PixelBuffer {
	key := mesh.Sanitize(meshKey)
	if resolution <= 0 {
		resolution = c.previewResolution
	}

	var pixels *types.PixelBuffer
	_, err := c.dispatch("load_texture", func(t types.Tier) error {
		var loadErr error
		if scaler, ok := t.(types.PreviewScaler); ok {
			pixels, loadErr = scaler.LoadTextureAt(key, resolution)
		} else {
			pixels, loadErr = t.LoadTexture(key)
		}
		return loadErr
	})
	if err != nil {
		return nil
	}
	return pixels
}

// SavePreviewTexture replaces the preview texture on an existing
// entry. Returns false when no entry exists for the key or the save
// failed on every tier.
func (c *Cache) SavePreviewTexture(meshKey string, preview *types.PixelBuffer) bool {
	key := mesh.Sanitize(meshKey)
	_, err := c.dispatch("save_texture", func(t types.Tier) error {
		return t.SaveTexture(key, preview)
	})
	return err == nil
}

// InvalidateCache removes the entry for a mesh key from the active
// and the fallback tier. Invalidating an absent key is a no-op.
func (c *Cache) InvalidateCache(meshKey string) {
	key := mesh.Sanitize(meshKey)
	start := time.Now()

	err := c.guarded(func() error { return c.active.ClearCache(key) })
	if err != nil && !isSemanticMiss(err) {
		c.logger.Warn("active tier invalidation incomplete",
			"key", key,
			"tier", c.active.Name(),
			"error", err)
		c.recordError("invalidate", err)
	} else {
		err = nil
	}

	var fbErr error
	if c.fallback != c.active {
		if fbErr = c.fallback.ClearCache(key); fbErr != nil && !isSemanticMiss(fbErr) {
			c.logger.Warn("fallback tier invalidation incomplete",
				"key", key,
				"tier", c.fallback.Name(),
				"error", fbErr)
		} else {
			fbErr = nil
		}
	}

	outcome := OutcomeOK
	switch {
	case err == nil:
		// Active removal is authoritative; a fallback hiccup is only logged.
	case c.fallback != c.active && fbErr == nil:
		outcome = OutcomeDegraded
		c.tracker.recordFallback()
		if c.collector != nil {
			c.collector.RecordFallback("invalidate")
		}
		c.notify("invalidate", OutcomeDegraded, err)
	default:
		outcome = OutcomeFailed
		c.notify("invalidate", OutcomeFailed, err)
	}
	c.recordOperation("invalidate", outcome, time.Since(start))
}

// OptimizeMemoryUsage runs each tier's maintenance pass: memory
// tiers re-enforce their entry bound, disk tiers prune expired
// entries and enforce their size trigger. Tiers without a
// maintenance pass are skipped.
func (c *Cache) OptimizeMemoryUsage() {
	start := time.Now()
	if opt, ok := c.active.(types.Optimizer); ok {
		opt.Optimize()
	}
	if c.fallback != c.active {
		if opt, ok := c.fallback.(types.Optimizer); ok {
			opt.Optimize()
		}
	}
	c.recordOperation("optimize", OutcomeOK, time.Since(start))
	c.refreshGauges()
}

// GetStatistics returns the combined view of cache performance.
// Entry count, size, and evictions come from the active tier; hit
// rate, access latency, and fallback count come from the facade's
// own tracking across tier switches.
func (c *Cache) GetStatistics() types.CacheStatistics {
	tierStats := c.active.GetStatistics()
	hits, misses, fallbacks, averageMs := c.tracker.snapshot()

	stats := types.CacheStatistics{
		Tier:            c.active.Name(),
		EntryCount:      tierStats.EntryCount,
		TotalSizeBytes:  tierStats.TotalSizeBytes,
		Evictions:       tierStats.Evictions,
		Hits:            hits,
		Misses:          misses,
		Fallbacks:       fallbacks,
		AverageAccessMs: averageMs,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	c.refreshGauges()
	return stats
}

// TierStatistics returns per-tier statistics for the active tier
// and, when distinct, the fallback tier.
func (c *Cache) TierStatistics() []types.CacheStatistics {
	stats := []types.CacheStatistics{c.active.GetStatistics()}
	if c.fallback != c.active {
		stats = append(stats, c.fallback.GetStatistics())
	}
	return stats
}

// MetricsHandler returns the Prometheus handler for the cache
// metrics, or nil when metrics are disabled. Useful for serving the
// metrics endpoint from an existing HTTP server.
func (c *Cache) MetricsHandler() http.Handler {
	if c.collector == nil {
		return nil
	}
	return c.collector.Handler()
}

// Close flushes tier state and releases resources, logging a final
// statistics summary. The cache must not be used after Close.
func (c *Cache) Close() error {
	hits, misses, fallbacks, averageMs := c.tracker.snapshot()
	profile := c.tracker.profile()
	c.logger.Info("cache closing",
		"hits", hits,
		"misses", misses,
		"fallbacks", fallbacks,
		"average_access_ms", averageMs,
		"p95_ms", durationMs(profile.P95))

	var errs []error
	if c.collector != nil && c.ownsCollector {
		ctx, cancel := context.WithTimeout(context.Background(), cache.DefaultOperationTimeout)
		if err := c.collector.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}

	if closer, ok := c.active.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.fallback != c.active {
		if closer, ok := c.fallback.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return stderr.Join(errs...)
}

// dispatch runs fn against the active tier under the retry and
// circuit breaker policy, falling back to the fallback tier when the
// active tier fails. The returned error is the semantic result of
// whichever tier served the operation; misses pass through without
// triggering fallback.
func (c *Cache) dispatch(op string, fn func(types.Tier) error) (Outcome, error) {
	start := time.Now()
	err := c.guarded(func() error { return fn(c.active) })

	if err == nil || isSemanticMiss(err) {
		elapsed := time.Since(start)
		c.tracker.recordAccess(elapsed)
		c.recordOperation(op, OutcomeOK, elapsed)
		return OutcomeOK, err
	}

	c.logger.Warn("active tier operation failed, falling back",
		"operation", op,
		"tier", c.active.Name(),
		"error", err)
	c.recordError(op, err)

	if c.fallback == c.active {
		c.notify(op, OutcomeFailed, err)
		c.recordOperation(op, OutcomeFailed, time.Since(start))
		return OutcomeFailed, err
	}

	c.tracker.recordFallback()
	if c.collector != nil {
		c.collector.RecordFallback(op)
	}

	fbErr := fn(c.fallback)
	if fbErr == nil || isSemanticMiss(fbErr) {
		c.notify(op, OutcomeDegraded, err)
		c.recordOperation(op, OutcomeDegraded, time.Since(start))
		return OutcomeDegraded, fbErr
	}

	c.logger.Error("fallback tier operation failed",
		"operation", op,
		"tier", c.fallback.Name(),
		"error", fbErr)
	c.recordError(op, fbErr)
	c.notify(op, OutcomeFailed, fbErr)
	c.recordOperation(op, OutcomeFailed, time.Since(start))
	return OutcomeFailed, fbErr
}

// guarded applies the retry policy inside the circuit breaker. An
// open breaker rejects immediately without consuming retry attempts.
func (c *Cache) guarded(fn func() error) error {
	if c.breaker == nil {
		return c.retryer.Do(fn)
	}
	return c.breaker.Execute(func() error {
		return c.retryer.Do(fn)
	})
}

// isSemanticMiss reports whether an error denotes a missing, invalid,
// or oversized entry rather than a tier failure. Misses are not
// retried, do not count as breaker failures, and do not trigger
// fallback.
func isSemanticMiss(err error) bool {
	return errors.IsNotFound(err) || errors.IsValidity(err) ||
		errors.CodeOf(err) == errors.ErrCodeEntryTooLarge
}

// breakerSuccess keeps semantic misses from tripping the breaker.
func breakerSuccess(err error) bool {
	return err == nil || isSemanticMiss(err)
}

func (c *Cache) notify(op string, outcome Outcome, err error) {
	if c.hook != nil {
		c.hook(op, outcome, err)
	}
}

// recordRequest counts a hit or miss against the facade statistics
// and the tier that served the request.
func (c *Cache) recordRequest(outcome Outcome, hit bool) {
	if hit {
		c.tracker.recordHit()
	} else {
		c.tracker.recordMiss()
	}
	if c.collector != nil {
		tier := c.active
		if outcome == OutcomeDegraded {
			tier = c.fallback
		}
		c.collector.RecordCacheRequest(tier.Name(), hit)
	}
}

func (c *Cache) recordOperation(op string, outcome Outcome, d time.Duration) {
	if c.collector != nil {
		c.collector.RecordOperation(op, outcome.String(), d)
	}
}

func (c *Cache) recordError(op string, err error) {
	if c.collector != nil {
		c.collector.RecordError(op, string(errors.CodeOf(err)))
	}
}

func (c *Cache) refreshGauges() {
	if c.collector == nil {
		return
	}
	stats := c.active.GetStatistics()
	c.collector.UpdateTierSize(c.active.Name(), stats.EntryCount, stats.TotalSizeBytes)
	if c.fallback != c.active {
		fbStats := c.fallback.GetStatistics()
		c.collector.UpdateTierSize(c.fallback.Name(), fbStats.EntryCount, fbStats.TotalSizeBytes)
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

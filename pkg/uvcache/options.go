package uvcache

import (
	"log/slog"
	"time"

	"github.com/uvtools/uvcache/internal/cache"
	"github.com/uvtools/uvcache/internal/circuit"
	"github.com/uvtools/uvcache/internal/metrics"
	"github.com/uvtools/uvcache/pkg/retry"
	"github.com/uvtools/uvcache/pkg/types"
)

// options collects construction-time settings before the Cache is
// assembled.
type options struct {
	logger            *slog.Logger
	expiry            time.Duration
	formatVersion     int
	previewResolution int
	retryConfig       retry.Config
	memoryLimit       int
	fallback          types.Tier
	hook              FallbackHook

	breakerDisabled bool
	breakerConfig   *circuit.Config

	collector     *metrics.Collector
	ownsCollector bool
}

func defaultOptions() options {
	return options{
		logger:            slog.Default(),
		expiry:            DefaultExpiry,
		formatVersion:     DefaultFormatVersion,
		previewResolution: DefaultPreviewResolution,
		retryConfig:       retry.DefaultConfig(),
		memoryLimit:       cache.DefaultMemoryEntries,
	}
}

// Option customizes Cache construction.
type Option func(*options)

// WithLogger sets the logger used by the cache. A nil logger keeps
// the default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithExpiry sets the validity window for cached entries. Zero or
// negative disables expiry.
func WithExpiry(window time.Duration) Option {
	return func(o *options) { o.expiry = window }
}

// WithFormatVersion sets the entry format version produced and
// accepted by the cache. Versions below 1 are ignored.
func WithFormatVersion(version int) Option {
	return func(o *options) {
		if version >= 1 {
			o.formatVersion = version
		}
	}
}

// WithPreviewResolution sets the default preview texture edge length
// in pixels.
func WithPreviewResolution(resolution int) Option {
	return func(o *options) {
		if resolution > 0 {
			o.previewResolution = resolution
		}
	}
}

// WithRetryConfig sets the retry policy applied to active tier
// operations.
func WithRetryConfig(cfg retry.Config) Option {
	return func(o *options) { o.retryConfig = cfg }
}

// WithMemoryLimit sets the entry capacity used when the cache
// constructs its own memory tier, whether as the active tier or as
// the fallback.
func WithMemoryLimit(entries int) Option {
	return func(o *options) {
		if entries > 0 {
			o.memoryLimit = entries
		}
	}
}

// WithFallbackTier replaces the default in-memory fallback tier.
func WithFallbackTier(tier types.Tier) Option {
	return func(o *options) { o.fallback = tier }
}

// WithFallbackHook registers a callback invoked after every dispatch
// that degrades to the fallback tier or fails on both tiers.
func WithFallbackHook(hook FallbackHook) Option {
	return func(o *options) { o.hook = hook }
}

// withBreaker applies circuit breaker settings from configuration.
func withBreaker(enabled bool, cfg circuit.Config) Option {
	return func(o *options) {
		o.breakerDisabled = !enabled
		o.breakerConfig = &cfg
	}
}

// withCollector attaches a metrics collector. An owned collector has
// its HTTP server stopped by Close.
func withCollector(collector *metrics.Collector, owns bool) Option {
	return func(o *options) {
		o.collector = collector
		o.ownsCollector = owns
	}
}

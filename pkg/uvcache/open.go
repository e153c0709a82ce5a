package uvcache

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/uvtools/uvcache/internal/cache"
	"github.com/uvtools/uvcache/internal/circuit"
	"github.com/uvtools/uvcache/internal/config"
	"github.com/uvtools/uvcache/internal/metrics"
	"github.com/uvtools/uvcache/pkg/errors"
	"github.com/uvtools/uvcache/pkg/retry"
)

// Open constructs a Cache from configuration. Defaults are applied
// first, then the file when path is non-empty, then environment
// overrides. Options passed here are applied last and take
// precedence over configuration values.
func Open(path string, opts ...Option) (*Cache, error) {
	cfg := config.NewDefault()
	if path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigLoad, "configuration load failed", err)
		}
	}
	cfg.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigValidation, "configuration invalid", err)
	}

	logger := newLogger(cfg.Logging)

	tier, err := cache.NewTierFromConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	configured := []Option{
		WithLogger(logger),
		WithExpiry(cfg.Cache.Expiry),
		WithFormatVersion(cfg.Cache.FormatVersion),
		WithPreviewResolution(cfg.Cache.PreviewResolution),
		WithMemoryLimit(cfg.Memory.MaxEntries),
		WithRetryConfig(retryConfigFrom(cfg.Retry)),
		withBreaker(cfg.Breaker.Enabled, breakerConfigFrom(cfg.Breaker)),
	}

	if cfg.Metrics.Enabled {
		collector, err := metrics.NewCollector(&metrics.Config{
			Enabled:   true,
			Port:      cfg.Metrics.Port,
			Path:      cfg.Metrics.Path,
			Namespace: cfg.Metrics.Namespace,
		})
		if err != nil {
			return nil, err
		}
		if err := collector.Start(context.Background()); err != nil {
			return nil, err
		}
		configured = append(configured, withCollector(collector, true))
	}

	configured = append(configured, opts...)
	return New(tier, configured...), nil
}

// newLogger builds a slog logger from logging configuration. Output
// goes to stderr in JSON unless text format is configured.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.Level) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	}
	return slog.New(handler)
}

func retryConfigFrom(cfg config.RetryConfig) retry.Config {
	rc := retry.DefaultConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.Delay > 0 {
		rc.InitialDelay = cfg.Delay
	}
	return rc
}

func breakerConfigFrom(cfg config.BreakerConfig) circuit.Config {
	bc := circuit.Config{Timeout: cfg.Cooldown}
	if cfg.FailureThreshold > 0 {
		threshold := uint32(cfg.FailureThreshold)
		bc.ReadyToTrip = func(counts circuit.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		}
	}
	return bc
}

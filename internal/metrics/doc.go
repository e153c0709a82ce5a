/*
Package metrics provides Prometheus metrics and latency tracking for the UV cache.

# Overview

The metrics package implements Prometheus-based metrics collection for cache
operations, hit rates, fallbacks, and errors, plus a latency tracker used by
the statistics surface for averages and percentiles.

Architecture

	┌─────────────┐
	│  Collector  │  ← Prometheus metrics aggregator
	└──────┬──────┘
	       │
	   ┌───┴────────────────────────────┐
	   │                                │
	┌──▼───────────┐         ┌─────────▼──────┐
	│  Prometheus  │         │  HTTP Endpoints │
	│   Registry   │         │  /metrics       │
	│              │         │  /health        │
	│ - Counters   │         └─────────────────┘
	│ - Histograms │
	│ - Gauges     │
	└──────────────┘

# Core Components

Collector: exports cache metrics through a private registry, either on its
own HTTP server or as a handler mounted by the embedding application.

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "uvcache",
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := collector.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer collector.Stop(ctx)

LatencyTracker: aggregates operation latencies with a bounded sample window
for percentile estimates.

	tracker := metrics.NewLatencyTracker(metrics.DefaultMaxSamples)
	tracker.Record(elapsed)
	summary := tracker.Snapshot() // count, min, max, average, p50/p95/p99

# Recording Operations

	startTime := time.Now()
	err := performOperation()

	collector.RecordOperation("load", "ok", time.Since(startTime))

# Cache Metrics

	// Hit or miss against a tier
	collector.RecordCacheRequest("disk", true)

	// Fallback served by the memory tier
	collector.RecordFallback("load")

	// Update per-tier gauges (periodically)
	collector.UpdateTierSize("disk", stats.EntryCount, stats.TotalSizeBytes)

# Error Tracking

	if err != nil {
		collector.RecordError("save", string(errors.CodeOf(err)))
	}

Exported metric families share the configured namespace: operations_total,
operation_duration_seconds, cache_requests_total, cache_entries,
cache_size_bytes, fallbacks_total, and errors_total.

When disabled, every method is a cheap no-op, so callers never need to guard
call sites.
*/
package metrics

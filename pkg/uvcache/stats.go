package uvcache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/uvtools/uvcache/internal/metrics"
)

// Thresholds for performance warnings.
const (
	// minWarningSamples is the number of samples required before a
	// warning is considered. Below this the statistics are noise.
	minWarningSamples = 10

	// lowHitRateThreshold is the hit rate below which a warning is
	// logged.
	lowHitRateThreshold = 0.5

	// slowAccessThreshold is the average access time above which a
	// warning is logged.
	slowAccessThreshold = 5 * time.Millisecond
)

// statsTracker accumulates facade-level statistics: hit and miss
// counts, fallback activations, and dispatch latency. Each threshold
// warning fires once per crossing and re-arms when the statistic
// recovers.
type statsTracker struct {
	mu        sync.Mutex
	hits      uint64
	misses    uint64
	fallbacks uint64

	latency *metrics.LatencyTracker
	logger  *slog.Logger

	hitRateWarned bool
	latencyWarned bool
}

func newStatsTracker(logger *slog.Logger) *statsTracker {
	return &statsTracker{
		latency: metrics.NewLatencyTracker(0),
		logger:  logger,
	}
}

func (s *statsTracker) recordHit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++
	s.checkHitRate()
}

func (s *statsTracker) recordMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses++
	s.checkHitRate()
}

func (s *statsTracker) recordFallback() {
	s.mu.Lock()
	s.fallbacks++
	s.mu.Unlock()
}

func (s *statsTracker) recordAccess(d time.Duration) {
	s.latency.Record(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkLatency()
}

// snapshot returns the current counters and the average access time
// in milliseconds.
func (s *statsTracker) snapshot() (hits, misses, fallbacks uint64, averageMs float64) {
	s.mu.Lock()
	hits, misses, fallbacks = s.hits, s.misses, s.fallbacks
	s.mu.Unlock()
	averageMs = durationMs(s.latency.Average())
	return hits, misses, fallbacks, averageMs
}

// profile returns the latency distribution over the sampling window.
func (s *statsTracker) profile() metrics.LatencySummary {
	return s.latency.Snapshot()
}

// checkHitRate must be called with s.mu held.
func (s *statsTracker) checkHitRate() {
	total := s.hits + s.misses
	if total < minWarningSamples {
		return
	}
	rate := float64(s.hits) / float64(total)
	if rate >= lowHitRateThreshold {
		s.hitRateWarned = false
		return
	}
	if !s.hitRateWarned {
		s.hitRateWarned = true
		s.logger.Warn("cache hit rate below threshold",
			"hit_rate", rate,
			"threshold", lowHitRateThreshold,
			"samples", total)
	}
}

// checkLatency must be called with s.mu held.
func (s *statsTracker) checkLatency() {
	if s.latency.Count() < minWarningSamples {
		return
	}
	average := s.latency.Average()
	if average <= slowAccessThreshold {
		s.latencyWarned = false
		return
	}
	if !s.latencyWarned {
		s.latencyWarned = true
		s.logger.Warn("average cache access time above threshold",
			"average_ms", durationMs(average),
			"threshold_ms", durationMs(slowAccessThreshold))
	}
}

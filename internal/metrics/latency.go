package metrics

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxSamples bounds the latency sample window.
const DefaultMaxSamples = 512

// LatencySummary is a point-in-time view of recorded latencies
type LatencySummary struct {
	Count   uint64        `json:"count"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Average time.Duration `json:"average"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
}

// LatencyTracker aggregates operation latencies. Min, max, and average cover
// every recorded value; percentiles are computed over a sliding window of
// the most recent samples.
type LatencyTracker struct {
	mu      sync.Mutex
	count   uint64
	total   time.Duration
	min     time.Duration
	max     time.Duration
	samples []time.Duration
	next    int
	filled  bool
}

// NewLatencyTracker creates a tracker with the given sample window.
// Non-positive windows fall back to the default.
func NewLatencyTracker(maxSamples int) *LatencyTracker {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &LatencyTracker{
		samples: make([]time.Duration, maxSamples),
	}
}

// Record adds one latency observation
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	l.total += d
	if d < l.min || l.count == 1 {
		l.min = d
	}
	if d > l.max {
		l.max = d
	}

	l.samples[l.next] = d
	l.next++
	if l.next == len(l.samples) {
		l.next = 0
		l.filled = true
	}
}

// Count returns the number of recorded observations
func (l *LatencyTracker) Count() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Average returns the mean over every recorded observation
func (l *LatencyTracker) Average() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.averageLocked()
}

// Reset discards all recorded observations
func (l *LatencyTracker) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count = 0
	l.total = 0
	l.min = 0
	l.max = 0
	l.next = 0
	l.filled = false
}

// Snapshot returns a consistent summary of the recorded latencies
func (l *LatencyTracker) Snapshot() LatencySummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	summary := LatencySummary{
		Count:   l.count,
		Min:     l.min,
		Max:     l.max,
		Average: l.averageLocked(),
	}
	if l.count == 0 {
		return summary
	}

	window := l.windowLocked()
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
	summary.P50 = percentile(window, 0.50)
	summary.P95 = percentile(window, 0.95)
	summary.P99 = percentile(window, 0.99)
	return summary
}

func (l *LatencyTracker) averageLocked() time.Duration {
	if l.count == 0 {
		return 0
	}
	return time.Duration(int64(l.total) / int64(l.count))
}

func (l *LatencyTracker) windowLocked() []time.Duration {
	n := l.next
	if l.filled {
		n = len(l.samples)
	}
	window := make([]time.Duration, n)
	copy(window, l.samples[:n])
	return window
}

// percentile returns the value at rank p from sorted samples
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

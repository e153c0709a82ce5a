package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes cache operation metrics through a private Prometheus
// registry
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	// Prometheus metrics
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	cacheRequests     *prometheus.CounterVec
	entryGauge        *prometheus.GaugeVec
	sizeGauge         *prometheus.GaugeVec
	fallbackCounter   *prometheus.CounterVec
	errorCounter      *prometheus.CounterVec

	// HTTP server for metrics endpoint
	server *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:   true,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "uvcache",
		}
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Enabled reports whether the collector records anything
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// Handler returns the metrics endpoint handler, or nil when disabled.
// Useful for mounting the endpoint on an existing server.
func (c *Collector) Handler() http.Handler {
	if !c.config.Enabled {
		return nil
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start starts the metrics HTTP server
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, c.Handler())
	mux.HandleFunc("/health", c.healthHandler)

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Stop stops the metrics HTTP server
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordOperation records a facade operation with its outcome and duration
func (c *Collector) RecordOperation(operation, outcome string, duration time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.operationCounter.With(prometheus.Labels{
		"operation": operation,
		"outcome":   outcome,
	}).Inc()
	c.operationDuration.With(prometheus.Labels{
		"operation": operation,
	}).Observe(duration.Seconds())
}

// RecordCacheRequest records a hit or miss against a tier
func (c *Collector) RecordCacheRequest(tier string, hit bool) {
	if !c.config.Enabled {
		return
	}

	c.cacheRequests.With(prometheus.Labels{
		"result": map[bool]string{true: "hit", false: "miss"}[hit],
		"tier":   tier,
	}).Inc()
}

// RecordFallback records an operation served by the fallback tier
func (c *Collector) RecordFallback(operation string) {
	if !c.config.Enabled {
		return
	}

	c.fallbackCounter.With(prometheus.Labels{
		"operation": operation,
	}).Inc()
}

// RecordError records a failed operation by error code
func (c *Collector) RecordError(operation, code string) {
	if !c.config.Enabled {
		return
	}

	c.errorCounter.With(prometheus.Labels{
		"operation": operation,
		"code":      code,
	}).Inc()
}

// UpdateTierSize updates the per-tier entry count and size gauges
func (c *Collector) UpdateTierSize(tier string, entries int, sizeBytes int64) {
	if !c.config.Enabled {
		return
	}

	c.entryGauge.With(prometheus.Labels{"tier": tier}).Set(float64(entries))
	c.sizeGauge.With(prometheus.Labels{"tier": tier}).Set(float64(sizeBytes))
}

// Helper methods

func (c *Collector) initMetrics() {
	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Name:      "operations_total",
			Help:      "Total number of cache operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: c.config.Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of cache operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"operation"},
	)

	c.cacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Name:      "cache_requests_total",
			Help:      "Total number of cache requests by result and tier",
		},
		[]string{"result", "tier"},
	)

	c.entryGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Name:      "cache_entries",
			Help:      "Current number of cached entries per tier",
		},
		[]string{"tier"},
	)

	c.sizeGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Name:      "cache_size_bytes",
			Help:      "Current cache size in bytes per tier",
		},
		[]string{"tier"},
	)

	c.fallbackCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Name:      "fallbacks_total",
			Help:      "Total number of operations served by the fallback tier",
		},
		[]string{"operation"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Name:      "errors_total",
			Help:      "Total number of failed operations by error code",
		},
		[]string{"operation", "code"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.cacheRequests,
		c.entryGauge,
		c.sizeGauge,
		c.fallbackCounter,
		c.errorCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// HTTP handlers

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"uvcache-metrics"}`))
}

package metrics

import (
	"context"
	"testing"
	"time"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		config := &Config{
			Enabled:   true,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "uvcache",
		}
		collector, err := NewCollector(config)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector == nil {
			t.Fatal("NewCollector() returned nil collector")
		}
		if collector.config != config {
			t.Error("collector.config does not match input config")
		}
		if collector.registry == nil {
			t.Error("collector.registry is nil")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v, want nil", err)
		}
		if collector.config.Port != 9090 {
			t.Errorf("default port = %d, want 9090", collector.config.Port)
		}
		if collector.config.Path != "/metrics" {
			t.Errorf("default path = %q, want %q", collector.config.Path, "/metrics")
		}
		if collector.config.Namespace != "uvcache" {
			t.Errorf("default namespace = %q, want %q", collector.config.Namespace, "uvcache")
		}
	})

	t.Run("with disabled config", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: false})
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.registry != nil {
			t.Error("disabled collector should not have registry")
		}
		if collector.Handler() != nil {
			t.Error("disabled collector should not have handler")
		}
	})
}

func TestRecordMetrics(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	collector.RecordOperation("load", "ok", 3*time.Millisecond)
	collector.RecordOperation("load", "degraded", 7*time.Millisecond)
	collector.RecordCacheRequest("disk", true)
	collector.RecordCacheRequest("disk", false)
	collector.RecordFallback("load")
	collector.RecordError("save", "STORAGE_WRITE")
	collector.UpdateTierSize("disk", 42, 1<<20)

	families, err := collector.registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := make(map[string]bool)
	for _, family := range families {
		found[family.GetName()] = true
	}

	for _, name := range []string{
		"test_operations_total",
		"test_operation_duration_seconds",
		"test_cache_requests_total",
		"test_cache_entries",
		"test_cache_size_bytes",
		"test_fallbacks_total",
		"test_errors_total",
	} {
		if !found[name] {
			t.Errorf("metric family %q not exported", name)
		}
	}
}

func TestRecordDisabledIsNoOp(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	// None of these may panic on the nil metric vectors
	collector.RecordOperation("load", "ok", time.Millisecond)
	collector.RecordCacheRequest("disk", true)
	collector.RecordFallback("load")
	collector.RecordError("save", "STORAGE_WRITE")
	collector.UpdateTierSize("disk", 1, 1)

	if err := collector.Start(context.Background()); err != nil {
		t.Errorf("Start() on disabled collector error = %v", err)
	}
	if err := collector.Stop(context.Background()); err != nil {
		t.Errorf("Stop() on disabled collector error = %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	if err := collector.Stop(context.Background()); err != nil {
		t.Errorf("Stop() without Start() error = %v", err)
	}
}

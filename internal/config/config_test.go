package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	// Test cache defaults
	if cfg.Cache.ActiveTier != "memory" {
		t.Errorf("Expected ActiveTier to be memory, got %s", cfg.Cache.ActiveTier)
	}
	if cfg.Cache.Expiry != 7*24*time.Hour {
		t.Errorf("Expected Expiry to be 7 days, got %v", cfg.Cache.Expiry)
	}
	if cfg.Cache.FormatVersion != 1 {
		t.Errorf("Expected FormatVersion to be 1, got %d", cfg.Cache.FormatVersion)
	}
	if cfg.Cache.PreviewResolution != 128 {
		t.Errorf("Expected PreviewResolution to be 128, got %d", cfg.Cache.PreviewResolution)
	}
	if cfg.Cache.OperationTimeout != 5*time.Second {
		t.Errorf("Expected OperationTimeout to be 5s, got %v", cfg.Cache.OperationTimeout)
	}

	// Test tier defaults
	if cfg.Memory.MaxEntries != 100 {
		t.Errorf("Expected MaxEntries to be 100, got %d", cfg.Memory.MaxEntries)
	}
	if cfg.Disk.MaxFileSize != "10MB" {
		t.Errorf("Expected MaxFileSize to be 10MB, got %s", cfg.Disk.MaxFileSize)
	}
	if cfg.Disk.AutoCleanupTriggerSize != "100MB" {
		t.Errorf("Expected AutoCleanupTriggerSize to be 100MB, got %s", cfg.Disk.AutoCleanupTriggerSize)
	}
	if !cfg.Disk.Compression {
		t.Error("Expected disk Compression to be true")
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Errorf("Expected Redis address to be localhost:6379, got %s", cfg.Redis.Address)
	}

	// Test resilience defaults
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Expected MaxAttempts to be 3, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Delay != 100*time.Millisecond {
		t.Errorf("Expected retry Delay to be 100ms, got %v", cfg.Retry.Delay)
	}
	if !cfg.Breaker.Enabled {
		t.Error("Expected Breaker to be enabled by default")
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected Metrics to be disabled by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Configuration
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			config: func() *Configuration {
				return NewDefault()
			},
			wantErr: false,
		},
		{
			name: "invalid active tier",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Cache.ActiveTier = "tape"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid active_tier",
		},
		{
			name: "negative expiry",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Cache.Expiry = -time.Hour
				return cfg
			},
			wantErr: true,
			errMsg:  "expiry cannot be negative",
		},
		{
			name: "zero format version",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Cache.FormatVersion = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "format_version must be at least 1",
		},
		{
			name: "zero memory entries",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Memory.MaxEntries = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "max_entries must be greater than 0",
		},
		{
			name: "invalid max file size",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Disk.MaxFileSize = "ten megabytes"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid disk max_file_size",
		},
		{
			name: "s3 tier without bucket",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Cache.ActiveTier = "s3"
				return cfg
			},
			wantErr: true,
			errMsg:  "s3 bucket is required",
		},
		{
			name: "redis tier without address",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Cache.ActiveTier = "redis"
				cfg.Redis.Address = ""
				return cfg
			},
			wantErr: true,
			errMsg:  "redis address is required",
		},
		{
			name: "tiered front without capacity",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Tiered.Enabled = true
				cfg.Tiered.FrontEntries = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "front_entries must be greater than 0",
		},
		{
			name: "invalid log level",
			config: func() *Configuration {
				cfg := NewDefault()
				cfg.Logging.Level = "LOUD"
				return cfg
			},
			wantErr: true,
			errMsg:  "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config()
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %v", err, tt.errMsg)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: DEBUG

cache:
  active_tier: disk
  expiry: 24h
  preview_resolution: 256

disk:
  directory: "/var/cache/uvcache"
  compression: false
  max_file_size: 20MB

retry:
  max_attempts: 5
`

	err := os.WriteFile(configFile, []byte(configContent), 0600)
	if err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}

	cfg := NewDefault()
	err = cfg.LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	// Verify loaded values
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected Level to be DEBUG, got %s", cfg.Logging.Level)
	}
	if cfg.Cache.ActiveTier != "disk" {
		t.Errorf("Expected ActiveTier to be disk, got %s", cfg.Cache.ActiveTier)
	}
	if cfg.Cache.Expiry != 24*time.Hour {
		t.Errorf("Expected Expiry to be 24h, got %v", cfg.Cache.Expiry)
	}
	if cfg.Cache.PreviewResolution != 256 {
		t.Errorf("Expected PreviewResolution to be 256, got %d", cfg.Cache.PreviewResolution)
	}
	if cfg.Disk.Directory != "/var/cache/uvcache" {
		t.Errorf("Expected Directory to be /var/cache/uvcache, got %s", cfg.Disk.Directory)
	}
	if cfg.Disk.Compression {
		t.Error("Expected Compression to be false")
	}
	if cfg.Disk.MaxFileSize != "20MB" {
		t.Errorf("Expected MaxFileSize to be 20MB, got %s", cfg.Disk.MaxFileSize)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("Expected MaxAttempts to be 5, got %d", cfg.Retry.MaxAttempts)
	}

	// Values absent from the file keep their defaults
	if cfg.Memory.MaxEntries != 100 {
		t.Errorf("Expected MaxEntries to keep default 100, got %d", cfg.Memory.MaxEntries)
	}
}

func TestLoadFromFileNonExistent(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error when loading non-existent config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	testEnvVars := map[string]string{
		"UVCACHE_LOG_LEVEL":          "ERROR",
		"UVCACHE_ACTIVE_TIER":        "redis",
		"UVCACHE_EXPIRY":             "48h",
		"UVCACHE_MAX_MEMORY_ENTRIES": "250",
		"UVCACHE_DISK_COMPRESSION":   "false",
		"UVCACHE_REDIS_ADDRESS":      "cache.internal:6379",
		"UVCACHE_REDIS_DB":           "2",
		"UVCACHE_METRICS_ENABLED":    "true",
		"UVCACHE_METRICS_PORT":       "9191",
	}

	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	cfg := NewDefault()
	err := cfg.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	// Verify loaded values
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected Level to be ERROR, got %s", cfg.Logging.Level)
	}
	if cfg.Cache.ActiveTier != "redis" {
		t.Errorf("Expected ActiveTier to be redis, got %s", cfg.Cache.ActiveTier)
	}
	if cfg.Cache.Expiry != 48*time.Hour {
		t.Errorf("Expected Expiry to be 48h, got %v", cfg.Cache.Expiry)
	}
	if cfg.Memory.MaxEntries != 250 {
		t.Errorf("Expected MaxEntries to be 250, got %d", cfg.Memory.MaxEntries)
	}
	if cfg.Disk.Compression {
		t.Error("Expected Compression to be false")
	}
	if cfg.Redis.Address != "cache.internal:6379" {
		t.Errorf("Expected Redis address to be cache.internal:6379, got %s", cfg.Redis.Address)
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("Expected Redis DB to be 2, got %d", cfg.Redis.DB)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected Metrics to be enabled")
	}
	if cfg.Metrics.Port != 9191 {
		t.Errorf("Expected Metrics port to be 9191, got %d", cfg.Metrics.Port)
	}
}

func TestLoadFromEnvIgnoresMalformed(t *testing.T) {
	t.Setenv("UVCACHE_EXPIRY", "next tuesday")
	t.Setenv("UVCACHE_MAX_MEMORY_ENTRIES", "many")

	cfg := NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Cache.Expiry != 7*24*time.Hour {
		t.Errorf("Expected Expiry to keep default, got %v", cfg.Cache.Expiry)
	}
	if cfg.Memory.MaxEntries != 100 {
		t.Errorf("Expected MaxEntries to keep default, got %d", cfg.Memory.MaxEntries)
	}
}

func TestSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "saved_config.yaml")

	cfg := NewDefault()
	cfg.Logging.Level = "DEBUG"
	cfg.Cache.ActiveTier = "disk"

	err := cfg.SaveToFile(configFile)
	if err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	// Load the saved config and verify
	newCfg := NewDefault()
	err = newCfg.LoadFromFile(configFile)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if newCfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected Level to be DEBUG, got %s", newCfg.Logging.Level)
	}
	if newCfg.Cache.ActiveTier != "disk" {
		t.Errorf("Expected ActiveTier to be disk, got %s", newCfg.Cache.ActiveTier)
	}
}

func TestSaveToFileCreateDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := NewDefault()
	err := cfg.SaveToFile(configFile)
	if err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"512", 512, false},
		{"512B", 512, false},
		{"1KB", 1024, false},
		{"10MB", 10 * 1024 * 1024, false},
		{"100MB", 100 * 1024 * 1024, false},
		{"2GB", 2 * 1024 * 1024 * 1024, false},
		{"1.5MB", 1536 * 1024, false},
		{" 10mb ", 10 * 1024 * 1024, false},
		{"", 0, true},
		{"MB", 0, true},
		{"-1MB", 0, true},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

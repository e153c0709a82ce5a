package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete cache configuration
type Configuration struct {
	Logging LoggingConfig `yaml:"logging"`
	Cache   CacheConfig   `yaml:"cache"`
	Memory  MemoryConfig  `yaml:"memory"`
	Disk    DiskConfig    `yaml:"disk"`
	S3      S3Config      `yaml:"s3"`
	Redis   RedisConfig   `yaml:"redis"`
	Tiered  TieredConfig  `yaml:"tiered"`
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CacheConfig represents facade-level cache settings
type CacheConfig struct {
	// ActiveTier selects the backing store: memory, disk, s3, or redis
	ActiveTier        string        `yaml:"active_tier"`
	Expiry            time.Duration `yaml:"expiry"`
	FormatVersion     int           `yaml:"format_version"`
	PreviewResolution int           `yaml:"preview_resolution"`
	OperationTimeout  time.Duration `yaml:"operation_timeout"`
}

// MemoryConfig represents memory tier settings
type MemoryConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// DiskConfig represents disk tier settings
type DiskConfig struct {
	Directory              string `yaml:"directory"`
	Compression            bool   `yaml:"compression"`
	MaxFileSize            string `yaml:"max_file_size"`
	AutoCleanupTriggerSize string `yaml:"auto_cleanup_trigger_size"`
	IndexFile              string `yaml:"index_file"`
}

// S3Config represents S3 tier settings
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Compression     bool   `yaml:"compression"`
}

// RedisConfig represents Redis tier settings
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// TieredConfig represents the LRU front placed over the active tier
type TieredConfig struct {
	Enabled      bool `yaml:"enabled"`
	FrontEntries int  `yaml:"front_entries"`
}

// RetryConfig represents retry settings for tier operations
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// BreakerConfig represents circuit breaker settings for the active tier
type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// MetricsConfig represents Prometheus metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "json",
		},
		Cache: CacheConfig{
			ActiveTier:        "memory",
			Expiry:            7 * 24 * time.Hour,
			FormatVersion:     1,
			PreviewResolution: 128,
			OperationTimeout:  5 * time.Second,
		},
		Memory: MemoryConfig{
			MaxEntries: 100,
		},
		Disk: DiskConfig{
			Directory:              "/tmp/uvcache",
			Compression:            true,
			MaxFileSize:            "10MB",
			AutoCleanupTriggerSize: "100MB",
			IndexFile:              "uvcache-index.json",
		},
		S3: S3Config{
			Prefix:      "uvcache/",
			Region:      "us-east-1",
			Compression: true,
		},
		Redis: RedisConfig{
			Address:   "localhost:6379",
			KeyPrefix: "uvcache:",
		},
		Tiered: TieredConfig{
			Enabled:      false,
			FrontEntries: 32,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Delay:       100 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "uvcache",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	// Logging settings
	if val := os.Getenv("UVCACHE_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("UVCACHE_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}

	// Cache settings
	if val := os.Getenv("UVCACHE_ACTIVE_TIER"); val != "" {
		c.Cache.ActiveTier = val
	}
	if val := os.Getenv("UVCACHE_EXPIRY"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.Expiry = duration
		}
	}
	if val := os.Getenv("UVCACHE_FORMAT_VERSION"); val != "" {
		if version, err := strconv.Atoi(val); err == nil {
			c.Cache.FormatVersion = version
		}
	}
	if val := os.Getenv("UVCACHE_OPERATION_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.OperationTimeout = duration
		}
	}

	// Memory tier
	if val := os.Getenv("UVCACHE_MAX_MEMORY_ENTRIES"); val != "" {
		if entries, err := strconv.Atoi(val); err == nil {
			c.Memory.MaxEntries = entries
		}
	}

	// Disk tier
	if val := os.Getenv("UVCACHE_DISK_DIRECTORY"); val != "" {
		c.Disk.Directory = val
	}
	if val := os.Getenv("UVCACHE_DISK_COMPRESSION"); val != "" {
		c.Disk.Compression = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("UVCACHE_MAX_FILE_SIZE"); val != "" {
		c.Disk.MaxFileSize = val
	}
	if val := os.Getenv("UVCACHE_AUTO_CLEANUP_TRIGGER_SIZE"); val != "" {
		c.Disk.AutoCleanupTriggerSize = val
	}

	// S3 tier
	if val := os.Getenv("UVCACHE_S3_BUCKET"); val != "" {
		c.S3.Bucket = val
	}
	if val := os.Getenv("UVCACHE_S3_PREFIX"); val != "" {
		c.S3.Prefix = val
	}
	if val := os.Getenv("UVCACHE_S3_REGION"); val != "" {
		c.S3.Region = val
	}
	if val := os.Getenv("UVCACHE_S3_ENDPOINT"); val != "" {
		c.S3.Endpoint = val
	}

	// Redis tier
	if val := os.Getenv("UVCACHE_REDIS_ADDRESS"); val != "" {
		c.Redis.Address = val
	}
	if val := os.Getenv("UVCACHE_REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("UVCACHE_REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			c.Redis.DB = db
		}
	}

	// Metrics
	if val := os.Getenv("UVCACHE_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("UVCACHE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validTiers := []string{"memory", "disk", "s3", "redis"}
	tierValid := false
	for _, tier := range validTiers {
		if c.Cache.ActiveTier == tier {
			tierValid = true
			break
		}
	}
	if !tierValid {
		return fmt.Errorf("invalid active_tier: %s (must be one of: %s)",
			c.Cache.ActiveTier, strings.Join(validTiers, ", "))
	}

	if c.Cache.Expiry < 0 {
		return fmt.Errorf("expiry cannot be negative")
	}

	if c.Cache.FormatVersion < 1 {
		return fmt.Errorf("format_version must be at least 1")
	}

	if c.Cache.PreviewResolution <= 0 {
		return fmt.Errorf("preview_resolution must be greater than 0")
	}

	if c.Memory.MaxEntries <= 0 {
		return fmt.Errorf("memory max_entries must be greater than 0")
	}

	if _, err := ParseSize(c.Disk.MaxFileSize); err != nil {
		return fmt.Errorf("invalid disk max_file_size: %w", err)
	}

	if _, err := ParseSize(c.Disk.AutoCleanupTriggerSize); err != nil {
		return fmt.Errorf("invalid disk auto_cleanup_trigger_size: %w", err)
	}

	if c.Cache.ActiveTier == "s3" && c.S3.Bucket == "" {
		return fmt.Errorf("s3 bucket is required when active_tier is s3")
	}

	if c.Cache.ActiveTier == "redis" && c.Redis.Address == "" {
		return fmt.Errorf("redis address is required when active_tier is redis")
	}

	if c.Tiered.Enabled && c.Tiered.FrontEntries <= 0 {
		return fmt.Errorf("tiered front_entries must be greater than 0")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Logging.Level) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// ParseSize parses a human-readable size string like "10MB" into bytes.
// Plain numbers are interpreted as bytes.
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	multipliers := []struct {
		suffix string
		factor int64
	}{
		{"TB", 1024 * 1024 * 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, m := range multipliers {
		if strings.HasSuffix(sizeStr, m.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(sizeStr, m.suffix))
			num, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size value %q: %w", numStr, err)
			}
			if num < 0 {
				return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
			}
			return int64(num * float64(m.factor)), nil
		}
	}

	num, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size string %q: %w", sizeStr, err)
	}
	if num < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", sizeStr)
	}
	return num, nil
}

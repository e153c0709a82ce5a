/*
Package config provides configuration management for the UV cache with multi-source support.

This package implements a layered configuration system that supports YAML files and
environment variables on top of compiled-in defaults. It provides validation and size
parsing for all cache tiers.

# Configuration Architecture

Multi-source configuration hierarchy with precedence:

	┌─────────────────────────────────────────────┐
	│        Environment Variables                │ ← Highest Priority
	│            (UVCACHE_*)                      │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration Files                 │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	│        (Compiled-in defaults)               │
	└─────────────────────────────────────────────┘

# Configuration Structure

Configuration sections:

Cache Settings:
- Active tier selection (memory, disk, s3, redis)
- Entry expiry window and format version
- Preview texture resolution
- Per-operation timeout

Tier Settings:
- Memory tier capacity
- Disk tier directory, compression, file size limits, cleanup trigger
- S3 bucket, prefix, region, endpoint, credentials
- Redis address, database, key prefix

Resilience Settings:
- Retry attempts and delay
- Circuit breaker threshold and cooldown

Monitoring Settings:
- Logging configuration (level, format)
- Prometheus metrics endpoint

# Usage Examples

Loading configuration:

	// Create with defaults
	cfg := config.NewDefault()

	// Load from file
	if err := cfg.LoadFromFile("/etc/uvcache/config.yaml"); err != nil {
		log.Fatal(err)
	}

	// Load environment variables
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatal(err)
	}

	// Validate final configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

Configuration file format:

	# UV cache configuration
	logging:
	  level: INFO
	  format: json

	cache:
	  active_tier: disk
	  expiry: 168h
	  format_version: 1
	  preview_resolution: 128
	  operation_timeout: 5s

	memory:
	  max_entries: 100

	disk:
	  directory: "/var/cache/uvcache"
	  compression: true
	  max_file_size: "10MB"
	  auto_cleanup_trigger_size: "100MB"

	retry:
	  max_attempts: 3
	  delay: 100ms

	breaker:
	  enabled: true
	  failure_threshold: 5
	  cooldown: 30s

Environment variables override file values:

	UVCACHE_ACTIVE_TIER=redis
	UVCACHE_REDIS_ADDRESS=cache.internal:6379
	UVCACHE_LOG_LEVEL=DEBUG

# Size Parsing

Human-readable sizes are accepted anywhere a byte count is configured:

	sizeBytes, err := config.ParseSize("10MB")

Supported suffixes are B, KB, MB, GB, and TB. Plain numbers are bytes.
*/
package config

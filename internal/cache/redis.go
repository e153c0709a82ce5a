package cache

import (
	"context"
	"encoding/json"
	stderr "errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/uvtools/uvcache/pkg/errors"
	"github.com/uvtools/uvcache/pkg/types"
)

// RedisTier stores cache entries as JSON values under a key prefix. Values
// carry a server-side TTL equal to the expiry window, so the server prunes
// stale entries on its own.
type RedisTier struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	timeout   time.Duration

	// Statistics, session-local
	mu          sync.Mutex
	hits        uint64
	misses      uint64
	accessCount uint64
	accessTime  time.Duration
}

// RedisTierConfig represents Redis tier configuration
type RedisTierConfig struct {
	Address          string        `yaml:"address"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	KeyPrefix        string        `yaml:"key_prefix"`
	Expiry           time.Duration `yaml:"expiry"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

// NewRedisTier creates a Redis tier and verifies the connection
func NewRedisTier(ctx context.Context, cfg *RedisTierConfig) (*RedisTier, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "redis address cannot be empty").
			WithComponent("redis")
	}

	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.ErrCodeConnectionFailed,
			fmt.Sprintf("failed to connect to redis at %s", cfg.Address), err).
			WithComponent("redis")
	}

	return &RedisTier{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.Expiry,
		timeout:   timeout,
	}, nil
}

// Name returns the tier name
func (t *RedisTier) Name() string {
	return "redis"
}

// SaveEntry stores the entry under the prefixed key with the tier's TTL
func (t *RedisTier) SaveEntry(key string, entry *types.CacheEntry) error {
	if entry == nil {
		return errors.NewError(errors.ErrCodeStorageWrite, "cannot store nil entry").
			WithComponent("redis").WithOperation("SaveEntry").WithKey(key)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to serialize entry", err).
			WithComponent("redis").WithOperation("SaveEntry").WithKey(key)
	}

	ctx, cancel := t.opContext()
	defer cancel()

	if err := t.client.Set(ctx, t.redisKey(key), payload, t.ttl).Err(); err != nil {
		return t.translateError(err, errors.ErrCodeStorageWrite, "SaveEntry", key)
	}
	return nil
}

// LoadEntry retrieves and decodes the entry stored under the key
func (t *RedisTier) LoadEntry(key string) (*types.CacheEntry, error) {
	start := time.Now()

	entry, err := t.fetchEntry("LoadEntry", key)
	if err != nil {
		t.recordMiss()
		return nil, err
	}

	t.recordHit(time.Since(start))
	return entry, nil
}

// SaveTexture attaches a preview texture to an existing entry and rewrites it
func (t *RedisTier) SaveTexture(key string, pixels *types.PixelBuffer) error {
	entry, err := t.fetchEntry("SaveTexture", key)
	if err != nil {
		return err
	}

	entry.Preview = pixels.Clone()
	return t.SaveEntry(key, entry)
}

// LoadTexture retrieves the preview texture stored with the entry
func (t *RedisTier) LoadTexture(key string) (*types.PixelBuffer, error) {
	start := time.Now()

	entry, err := t.fetchEntry("LoadTexture", key)
	if err != nil {
		t.recordMiss()
		return nil, err
	}

	if entry.Preview == nil {
		t.recordMiss()
		return nil, errors.NewError(errors.ErrCodeEntryNotFound, "texture not found").
			WithComponent("redis").WithOperation("LoadTexture").WithKey(key)
	}

	t.recordHit(time.Since(start))
	return entry.Preview, nil
}

// HasCache reports whether a value exists under the key
func (t *RedisTier) HasCache(key string) bool {
	ctx, cancel := t.opContext()
	defer cancel()

	n, err := t.client.Exists(ctx, t.redisKey(key)).Result()
	return err == nil && n > 0
}

// ClearCache deletes the value stored under the key. Missing keys are a no-op.
func (t *RedisTier) ClearCache(key string) error {
	ctx, cancel := t.opContext()
	defer cancel()

	if err := t.client.Del(ctx, t.redisKey(key)).Err(); err != nil {
		return t.translateError(err, errors.ErrCodeStorageWrite, "ClearCache", key)
	}
	return nil
}

// ClearAllCache scans the key prefix and deletes every match
func (t *RedisTier) ClearAllCache() error {
	var cursor uint64

	for {
		ctx, cancel := t.opContext()
		keys, next, err := t.client.Scan(ctx, cursor, t.keyPrefix+"*", 100).Result()
		cancel()
		if err != nil {
			return t.translateError(err, errors.ErrCodeStorageRead, "ClearAllCache", t.keyPrefix)
		}

		if len(keys) > 0 {
			ctx, cancel := t.opContext()
			err := t.client.Del(ctx, keys...).Err()
			cancel()
			if err != nil {
				return t.translateError(err, errors.ErrCodeStorageWrite, "ClearAllCache", t.keyPrefix)
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// GetStatistics returns session-local counters; the server is never scanned
func (t *RedisTier) GetStatistics() types.CacheStatistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := types.CacheStatistics{
		Tier:   t.Name(),
		Hits:   t.hits,
		Misses: t.misses,
	}
	if total := t.hits + t.misses; total > 0 {
		stats.HitRate = float64(t.hits) / float64(total)
	}
	if t.accessCount > 0 {
		stats.AverageAccessMs = float64(t.accessTime.Milliseconds()) / float64(t.accessCount)
	}
	return stats
}

// Close releases the client connection pool
func (t *RedisTier) Close() error {
	return t.client.Close()
}

// Helper methods

func (t *RedisTier) fetchEntry(operation, key string) (*types.CacheEntry, error) {
	ctx, cancel := t.opContext()
	defer cancel()

	payload, err := t.client.Get(ctx, t.redisKey(key)).Bytes()
	if err != nil {
		return nil, t.translateError(err, errors.ErrCodeStorageRead, operation, key)
	}

	var entry types.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, "failed to decode entry", err).
			WithComponent("redis").WithOperation(operation).WithKey(key)
	}

	return &entry, nil
}

func (t *RedisTier) redisKey(key string) string {
	return t.keyPrefix + key
}

func (t *RedisTier) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), t.timeout)
}

func (t *RedisTier) translateError(err error, code errors.ErrorCode, operation, key string) error {
	switch {
	case stderr.Is(err, redis.Nil):
		return errors.NewError(errors.ErrCodeEntryNotFound, "entry not found").
			WithComponent("redis").WithOperation(operation).WithKey(key)
	case stderr.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeOperationTimeout,
			fmt.Sprintf("%s timed out after %v", operation, t.timeout), err).
			WithComponent("redis").WithOperation(operation).WithKey(key)
	default:
		return errors.Wrap(code, fmt.Sprintf("%s failed", operation), err).
			WithComponent("redis").WithOperation(operation).WithKey(key)
	}
}

func (t *RedisTier) recordHit(elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hits++
	t.accessCount++
	t.accessTime += elapsed
}

func (t *RedisTier) recordMiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.misses++
}

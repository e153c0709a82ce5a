package cache

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/uvtools/uvcache/pkg/errors"
	"github.com/uvtools/uvcache/pkg/types"
)

// Disk tier defaults
const (
	DefaultDiskDirectory      = "/tmp/uvcache"
	DefaultIndexFile          = "uvcache-index.json"
	DefaultMaxFileSize        = 10 * 1024 * 1024  // 10MB per entry
	DefaultCleanupTriggerSize = 100 * 1024 * 1024 // 100MB total
	entryFileSuffix           = ".uvc"
)

// DiskTier implements a persistent tier storing one file per cache key plus
// a single JSON index. Entries survive restarts; a damaged or missing index
// yields an empty tier rather than an error.
type DiskTier struct {
	mu          sync.RWMutex
	directory   string
	currentSize int64
	index       map[string]*diskItem
	config      *DiskTierConfig
	logger      *slog.Logger
	closed      bool

	// Statistics
	hits        uint64
	misses      uint64
	evictions   uint64
	accessCount uint64
	accessTime  time.Duration
}

// DiskTierConfig represents disk tier configuration
type DiskTierConfig struct {
	Directory          string        `yaml:"directory"`
	Compression        bool          `yaml:"compression"`
	MaxFileSize        int64         `yaml:"max_file_size"`
	CleanupTriggerSize int64         `yaml:"cleanup_trigger_size"`
	IndexFile          string        `yaml:"index_file"`
	Expiry             time.Duration `yaml:"expiry"`
}

// diskItem represents one cached entry in the index
type diskItem struct {
	Key           string    `json:"key"`
	FileName      string    `json:"file_name"`
	FormatVersion int       `json:"format_version"`
	MeshHash      uint64    `json:"mesh_hash"`
	Timestamp     time.Time `json:"timestamp"`
	Size          int64     `json:"size"`
	Checksum      string    `json:"checksum"`
	Compressed    bool      `json:"compressed"`
}

// NewDiskTier creates a new disk tier rooted at the configured directory
func NewDiskTier(config *DiskTierConfig) (*DiskTier, error) {
	if config == nil {
		config = &DiskTierConfig{
			Directory:          DefaultDiskDirectory,
			Compression:        true,
			MaxFileSize:        DefaultMaxFileSize,
			CleanupTriggerSize: DefaultCleanupTriggerSize,
			IndexFile:          DefaultIndexFile,
		}
	}

	// Apply defaults for zero/empty values
	if config.Directory == "" {
		config.Directory = DefaultDiskDirectory
	}
	if config.IndexFile == "" {
		config.IndexFile = DefaultIndexFile
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	if config.CleanupTriggerSize <= 0 {
		config.CleanupTriggerSize = DefaultCleanupTriggerSize
	}

	if err := os.MkdirAll(config.Directory, 0750); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageWrite, "failed to create cache directory", err).
			WithComponent("disk").WithDetail("directory", config.Directory)
	}

	tier := &DiskTier{
		directory: config.Directory,
		index:     make(map[string]*diskItem),
		config:    config,
		logger:    slog.Default().With("component", "disk-tier"),
	}

	tier.loadIndex()

	return tier, nil
}

// Name returns the tier name
func (t *DiskTier) Name() string {
	return "disk"
}

// SaveEntry serializes the entry to its own file and records it in the index.
// Entries whose serialized form exceeds the per-entry size limit are rejected.
func (t *DiskTier) SaveEntry(key string, entry *types.CacheEntry) error {
	if entry == nil {
		return errors.NewError(errors.ErrCodeStorageWrite, "cannot store nil entry").
			WithComponent("disk").WithOperation("SaveEntry").WithKey(key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.NewError(errors.ErrCodeTierClosed, "disk tier is closed").
			WithComponent("disk").WithOperation("SaveEntry").WithKey(key)
	}

	return t.saveEntryLocked(key, entry)
}

// LoadEntry reads the entry stored under the key, verifying its checksum.
// A damaged entry is dropped from the index and reported as not found.
func (t *DiskTier) LoadEntry(key string) (*types.CacheEntry, error) {
	start := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, errors.NewError(errors.ErrCodeTierClosed, "disk tier is closed").
			WithComponent("disk").WithOperation("LoadEntry").WithKey(key)
	}

	entry, err := t.loadEntryLocked(key, "LoadEntry")
	if err != nil {
		return nil, err
	}

	t.hits++
	t.accessCount++
	t.accessTime += time.Since(start)
	return entry, nil
}

// SaveTexture attaches a preview texture to an existing entry and rewrites it
func (t *DiskTier) SaveTexture(key string, pixels *types.PixelBuffer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.NewError(errors.ErrCodeTierClosed, "disk tier is closed").
			WithComponent("disk").WithOperation("SaveTexture").WithKey(key)
	}

	entry, err := t.loadEntryLocked(key, "SaveTexture")
	if err != nil {
		return err
	}

	entry.Preview = pixels.Clone()
	return t.saveEntryLocked(key, entry)
}

// LoadTexture reads the preview texture stored with the entry
func (t *DiskTier) LoadTexture(key string) (*types.PixelBuffer, error) {
	start := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, errors.NewError(errors.ErrCodeTierClosed, "disk tier is closed").
			WithComponent("disk").WithOperation("LoadTexture").WithKey(key)
	}

	entry, err := t.loadEntryLocked(key, "LoadTexture")
	if err != nil {
		return nil, err
	}

	if entry.Preview == nil {
		t.misses++
		return nil, errors.NewError(errors.ErrCodeEntryNotFound, "texture not found").
			WithComponent("disk").WithOperation("LoadTexture").WithKey(key)
	}

	t.hits++
	t.accessCount++
	t.accessTime += time.Since(start)
	return entry.Preview, nil
}

// HasCache reports whether the index records an entry under the key
func (t *DiskTier) HasCache(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return false
	}
	_, exists := t.index[key]
	return exists
}

// ClearCache removes the entry stored under the key. Missing keys are a no-op.
func (t *DiskTier) ClearCache(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.NewError(errors.ErrCodeTierClosed, "disk tier is closed").
			WithComponent("disk").WithOperation("ClearCache").WithKey(key)
	}

	if _, exists := t.index[key]; !exists {
		return nil
	}

	t.removeItem(key, false)
	t.saveIndex()
	return nil
}

// ClearAllCache removes every entry and its file
func (t *DiskTier) ClearAllCache() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.NewError(errors.ErrCodeTierClosed, "disk tier is closed").
			WithComponent("disk").WithOperation("ClearAllCache")
	}

	for _, item := range t.index {
		_ = os.Remove(filepath.Join(t.directory, item.FileName))
	}

	t.index = make(map[string]*diskItem)
	t.currentSize = 0
	t.saveIndex()
	return nil
}

// GetStatistics returns a snapshot of the tier's counters
func (t *DiskTier) GetStatistics() types.CacheStatistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := types.CacheStatistics{
		Tier:           t.Name(),
		EntryCount:     len(t.index),
		TotalSizeBytes: t.currentSize,
		Hits:           t.hits,
		Misses:         t.misses,
		Evictions:      t.evictions,
	}
	if total := t.hits + t.misses; total > 0 {
		stats.HitRate = float64(t.hits) / float64(total)
	}
	if t.accessCount > 0 {
		stats.AverageAccessMs = float64(t.accessTime.Milliseconds()) / float64(t.accessCount)
	}
	return stats
}

// Optimize prunes expired entries, enforces the size trigger, and persists
// the index
func (t *DiskTier) Optimize() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	if t.config.Expiry > 0 {
		var expiredKeys []string
		for key, item := range t.index {
			if time.Since(item.Timestamp) > t.config.Expiry {
				expiredKeys = append(expiredKeys, key)
			}
		}
		for _, key := range expiredKeys {
			t.removeItem(key, true)
		}
	}

	t.cleanupIfNeeded()
	t.saveIndex()
}

// Close persists the index and marks the tier closed
func (t *DiskTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.persistIndex()
}

// Helper methods

func (t *DiskTier) saveEntryLocked(key string, entry *types.CacheEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to serialize entry", err).
			WithComponent("disk").WithOperation("SaveEntry").WithKey(key)
	}

	if int64(len(payload)) > t.config.MaxFileSize {
		return errors.NewError(errors.ErrCodeEntryTooLarge,
			fmt.Sprintf("entry size %d exceeds limit %d", len(payload), t.config.MaxFileSize)).
			WithComponent("disk").WithOperation("SaveEntry").WithKey(key).
			WithDetail("size", len(payload))
	}

	item := &diskItem{
		Key:           key,
		FileName:      key + entryFileSuffix,
		FormatVersion: entry.FormatVersion,
		MeshHash:      entry.MeshHash,
		Timestamp:     entry.Timestamp,
		Compressed:    t.config.Compression,
		Checksum:      checksum(payload),
	}

	filePath, err := t.entryPath(item.FileName)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "invalid entry file path", err).
			WithComponent("disk").WithOperation("SaveEntry").WithKey(key)
	}

	data := payload
	if item.Compressed {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(payload); err != nil {
			return errors.Wrap(errors.ErrCodeStorageWrite, "failed to compress entry", err).
				WithComponent("disk").WithOperation("SaveEntry").WithKey(key)
		}
		if err := gw.Close(); err != nil {
			return errors.Wrap(errors.ErrCodeStorageWrite, "failed to compress entry", err).
				WithComponent("disk").WithOperation("SaveEntry").WithKey(key)
		}
		data = buf.Bytes()
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to write entry file", err).
			WithComponent("disk").WithOperation("SaveEntry").WithKey(key)
	}
	item.Size = int64(len(data))

	if existing, exists := t.index[key]; exists {
		t.currentSize -= existing.Size
		if existing.FileName != item.FileName {
			_ = os.Remove(filepath.Join(t.directory, existing.FileName))
		}
	}
	t.index[key] = item
	t.currentSize += item.Size

	t.cleanupIfNeeded()
	t.saveIndex()
	return nil
}

// loadEntryLocked reads and verifies the entry under the key. Callers hold
// the write lock; miss counters are updated here so hit accounting stays
// with the exported methods.
func (t *DiskTier) loadEntryLocked(key, operation string) (*types.CacheEntry, error) {
	item, exists := t.index[key]
	if !exists {
		t.misses++
		return nil, errors.NewError(errors.ErrCodeEntryNotFound, "entry not found").
			WithComponent("disk").WithOperation(operation).WithKey(key)
	}

	payload, err := t.readEntryFile(item)
	if err != nil {
		// Damaged or missing file: drop it and report a miss
		t.logger.Warn("dropping unreadable cache entry",
			"key", key, "file", item.FileName, "error", err)
		t.removeItem(key, false)
		t.saveIndex()
		t.misses++
		return nil, errors.Wrap(errors.ErrCodeEntryNotFound, "entry unreadable", err).
			WithComponent("disk").WithOperation(operation).WithKey(key)
	}

	var entry types.CacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		t.logger.Warn("dropping undecodable cache entry",
			"key", key, "file", item.FileName, "error", err)
		t.removeItem(key, false)
		t.saveIndex()
		t.misses++
		return nil, errors.Wrap(errors.ErrCodeEntryNotFound, "entry undecodable", err).
			WithComponent("disk").WithOperation(operation).WithKey(key)
	}

	return &entry, nil
}

func (t *DiskTier) readEntryFile(item *diskItem) ([]byte, error) {
	filePath, err := t.entryPath(item.FileName)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var reader io.Reader = file
	if item.Compressed {
		gzipReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gzipReader.Close() }()
		reader = gzipReader
	}

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if checksum(payload) != item.Checksum {
		return nil, errors.NewError(errors.ErrCodeChecksumMismatch, "entry checksum mismatch").
			WithComponent("disk").WithKey(item.Key)
	}

	return payload, nil
}

// entryPath joins the file name to the cache directory and rejects names
// that would escape it
func (t *DiskTier) entryPath(fileName string) (string, error) {
	path := filepath.Join(t.directory, fileName)
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(t.directory)) {
		return "", fmt.Errorf("entry file path escapes cache directory: %s", fileName)
	}
	return path, nil
}

func (t *DiskTier) removeItem(key string, evicted bool) {
	item, exists := t.index[key]
	if !exists {
		return
	}

	_ = os.Remove(filepath.Join(t.directory, item.FileName))
	delete(t.index, key)
	t.currentSize -= item.Size
	if evicted {
		t.evictions++
	}
}

// cleanupIfNeeded evicts oldest entries by timestamp until total size is
// back under the trigger
func (t *DiskTier) cleanupIfNeeded() {
	for t.currentSize > t.config.CleanupTriggerSize && len(t.index) > 0 {
		var oldestKey string
		var oldestTime time.Time

		first := true
		for key, item := range t.index {
			if first || item.Timestamp.Before(oldestTime) {
				oldestKey = key
				oldestTime = item.Timestamp
				first = false
			}
		}

		if oldestKey == "" {
			return
		}
		t.removeItem(oldestKey, true)
	}
}

func (t *DiskTier) loadIndex() {
	indexPath := filepath.Join(t.directory, t.config.IndexFile)

	file, err := os.Open(indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Warn("cache index unreadable, starting empty", "path", indexPath, "error", err)
		}
		return
	}
	defer func() { _ = file.Close() }()

	var items map[string]*diskItem
	if err := json.NewDecoder(file).Decode(&items); err != nil {
		t.logger.Warn("cache index corrupt, starting empty", "path", indexPath, "error", err)
		return
	}

	t.currentSize = 0
	for key, item := range items {
		path, err := t.entryPath(item.FileName)
		if err != nil {
			continue
		}
		// Skip entries whose file disappeared
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		t.index[key] = item
		t.currentSize += item.Size
	}
}

// saveIndex persists the index, logging failures instead of propagating
// them: a stale index degrades to a rebuild on next start, not data loss.
func (t *DiskTier) saveIndex() {
	if err := t.persistIndex(); err != nil {
		t.logger.Warn("failed to persist cache index", "error", err)
	}
}

func (t *DiskTier) persistIndex() error {
	indexPath := filepath.Join(t.directory, t.config.IndexFile)
	tmpPath := indexPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(file).Encode(t.index); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	// Atomic replace
	return os.Rename(tmpPath, indexPath)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

package uvcache

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uvtools/uvcache/internal/cache"
	"github.com/uvtools/uvcache/pkg/errors"
	"github.com/uvtools/uvcache/pkg/retry"
	"github.com/uvtools/uvcache/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 2
	cfg.InitialDelay = time.Millisecond
	return cfg
}

func testIslands() []types.UVIsland {
	return []types.UVIsland{
		{
			ID:              0,
			TriangleIndices: []int{0, 1, 2, 3, 4, 5, 6, 7},
			VertexIndices:   []int{0, 1, 2, 3, 4, 5, 6, 7},
			Bounds:          types.UVRect{U: 0, V: 0, Width: 1, Height: 1},
			Color:           types.Color{R: 180, G: 90, B: 45, A: 255},
		},
	}
}

func grayPreview(size int) *types.PixelBuffer {
	return types.NewUniformPixelBuffer(size, size, types.Color{R: 128, G: 128, B: 128, A: 255})
}

// failingTier fails every operation with a retryable storage error.
type failingTier struct {
	mu    sync.Mutex
	calls int
}

func (f *failingTier) fail(op string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.NewError(errors.ErrCodeConnectionFailed, "tier unavailable").
		WithComponent("failing").WithOperation(op)
}

func (f *failingTier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *failingTier) Name() string { return "failing" }
func (f *failingTier) SaveEntry(key string, entry *types.CacheEntry) error {
	return f.fail("SaveEntry")
}
func (f *failingTier) LoadEntry(key string) (*types.CacheEntry, error) {
	return nil, f.fail("LoadEntry")
}
func (f *failingTier) SaveTexture(key string, pixels *types.PixelBuffer) error {
	return f.fail("SaveTexture")
}
func (f *failingTier) LoadTexture(key string) (*types.PixelBuffer, error) {
	return nil, f.fail("LoadTexture")
}
func (f *failingTier) HasCache(key string) bool  { return false }
func (f *failingTier) ClearCache(key string) error {
	return f.fail("ClearCache")
}
func (f *failingTier) ClearAllCache() error { return f.fail("ClearAllCache") }
func (f *failingTier) GetStatistics() types.CacheStatistics {
	return types.CacheStatistics{Tier: "failing"}
}

// scalingTier wraps a memory tier and regenerates previews on demand.
type scalingTier struct {
	*cache.MemoryTier
}

func (s *scalingTier) LoadTextureAt(key string, resolution int) (*types.PixelBuffer, error) {
	pixels, err := s.LoadTexture(key)
	if err != nil {
		return nil, err
	}
	return pixels.Scaled(resolution, resolution), nil
}

func TestCacheScenario(t *testing.T) {
	c := New(nil, WithLogger(quietLogger()))

	key := "Cube_12345_24"
	islands := testIslands()
	selected := []int{0}
	preview := grayPreview(64)

	require.True(t, c.CacheUVData(key, 999, preview, islands, selected))

	// LoadUVData returns exactly the stored payload
	entry := c.LoadUVData(key)
	require.False(t, entry.IsZero())
	assert.Equal(t, islands, entry.Islands)
	assert.Equal(t, selected, entry.SelectedIslands)
	assert.True(t, preview.Equal(entry.Preview))
	assert.Equal(t, uint64(999), entry.MeshHash)
	assert.Equal(t, DefaultFormatVersion, entry.FormatVersion)
	assert.False(t, entry.Timestamp.IsZero())

	// Hash validation
	assert.True(t, c.IsValidCache(key, 999))
	assert.False(t, c.IsValidCache(key, 998), "stored hash differs from supplied hash")

	// The resolution argument is advisory: the default tier returns the
	// stored 64x64 buffer even when 128 is requested
	got := c.GetPreviewTexture(key, 128)
	require.NotNil(t, got)
	assert.Equal(t, 64, got.Width)
	assert.Equal(t, 64, got.Height)
	assert.True(t, preview.Equal(got))
}

func TestLoadUVDataAbsentKey(t *testing.T) {
	c := New(nil, WithLogger(quietLogger()))

	entry := c.LoadUVData("never_cached")
	assert.True(t, entry.IsZero())
	assert.Nil(t, c.GetPreviewTexture("never_cached", 0))
	assert.False(t, c.IsValidCache("never_cached", 1))
}

func TestLoadUVDataExpired(t *testing.T) {
	tier := cache.NewMemoryTier(10)
	c := New(tier, WithLogger(quietLogger()))

	// Plant an entry that is older than the expiry window but otherwise valid
	stale := &types.CacheEntry{
		FormatVersion:   DefaultFormatVersion,
		MeshHash:        500,
		Timestamp:       time.Now().UTC().Add(-8 * 24 * time.Hour),
		Islands:         testIslands(),
		SelectedIslands: []int{0},
	}
	require.NoError(t, tier.SaveEntry("old_mesh", stale))

	assert.True(t, c.LoadUVData("old_mesh").IsZero())
	assert.False(t, c.IsValidCache("old_mesh", 500), "expiry overrides a hash match")

	// Expired entries are not deleted implicitly
	assert.True(t, tier.HasCache("old_mesh"))
}

func TestExpiryDisabled(t *testing.T) {
	tier := cache.NewMemoryTier(10)
	c := New(tier, WithLogger(quietLogger()), WithExpiry(0))

	stale := &types.CacheEntry{
		FormatVersion: DefaultFormatVersion,
		MeshHash:      1,
		Timestamp:     time.Now().UTC().Add(-365 * 24 * time.Hour),
	}
	require.NoError(t, tier.SaveEntry("ancient", stale))

	assert.False(t, c.LoadUVData("ancient").IsZero())
	assert.True(t, c.IsValidCache("ancient", 1))
}

func TestVersionGate(t *testing.T) {
	tier := cache.NewMemoryTier(10)

	v1 := New(tier, WithLogger(quietLogger()))
	require.True(t, v1.CacheUVData("mesh", 7, nil, testIslands(), nil))
	require.False(t, v1.LoadUVData("mesh").IsZero())

	// After the format version advances, v1 entries stop validating
	v2 := New(tier, WithLogger(quietLogger()), WithFormatVersion(2))
	assert.True(t, v2.LoadUVData("mesh").IsZero())
	assert.False(t, v2.IsValidCache("mesh", 7))

	// Re-caching under the new version restores validity
	require.True(t, v2.CacheUVData("mesh", 7, nil, testIslands(), nil))
	assert.False(t, v2.LoadUVData("mesh").IsZero())
	assert.True(t, v2.IsValidCache("mesh", 7))
}

func TestInvalidateCacheIdempotent(t *testing.T) {
	c := New(nil, WithLogger(quietLogger()))

	require.True(t, c.CacheUVData("mesh", 1, nil, testIslands(), nil))
	require.False(t, c.LoadUVData("mesh").IsZero())

	c.InvalidateCache("mesh")
	assert.True(t, c.LoadUVData("mesh").IsZero())

	// Repeating and invalidating absent keys never fails
	c.InvalidateCache("mesh")
	c.InvalidateCache("never_existed")
}

func TestKeySanitization(t *testing.T) {
	c := New(nil, WithLogger(quietLogger()))

	// Reserved characters map to the same stored key on every operation
	require.True(t, c.CacheUVData(`Body/Left:Arm`, 5, nil, testIslands(), nil))
	assert.False(t, c.LoadUVData("Body_Left_Arm").IsZero())
	assert.True(t, c.IsValidCache(`Body/Left:Arm`, 5))

	c.InvalidateCache(`Body/Left:Arm`)
	assert.True(t, c.LoadUVData("Body_Left_Arm").IsZero())
}

func TestFallbackTransparency(t *testing.T) {
	failing := &failingTier{}

	var mu sync.Mutex
	var outcomes []Outcome
	hook := func(op string, outcome Outcome, err error) {
		mu.Lock()
		outcomes = append(outcomes, outcome)
		mu.Unlock()
	}

	c := New(failing,
		WithLogger(quietLogger()),
		WithRetryConfig(fastRetry()),
		WithFallbackHook(hook),
	)

	// Every operation returns its documented result via the memory fallback
	assert.True(t, c.CacheUVData("mesh", 11, grayPreview(8), testIslands(), []int{0}))

	entry := c.LoadUVData("mesh")
	require.False(t, entry.IsZero())
	assert.Equal(t, uint64(11), entry.MeshHash)

	assert.True(t, c.IsValidCache("mesh", 11))
	assert.NotNil(t, c.GetPreviewTexture("mesh", 0))

	c.InvalidateCache("mesh")
	assert.True(t, c.LoadUVData("mesh").IsZero())

	c.OptimizeMemoryUsage()
	stats := c.GetStatistics()
	assert.NotZero(t, stats.Fallbacks)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, outcomes)
	for _, o := range outcomes {
		assert.Equal(t, OutcomeDegraded, o, "fallback should serve every dispatch")
	}
}

func TestBothTiersFailing(t *testing.T) {
	active := &failingTier{}
	fallback := &failingTier{}

	var mu sync.Mutex
	var outcomes []Outcome
	c := New(active,
		WithLogger(quietLogger()),
		WithRetryConfig(fastRetry()),
		WithFallbackTier(fallback),
		WithFallbackHook(func(op string, outcome Outcome, err error) {
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}),
	)

	// No panics; documented no-op results throughout
	assert.False(t, c.CacheUVData("mesh", 1, nil, testIslands(), nil))
	assert.True(t, c.LoadUVData("mesh").IsZero())
	assert.False(t, c.IsValidCache("mesh", 1))
	assert.Nil(t, c.GetPreviewTexture("mesh", 0))
	assert.False(t, c.SavePreviewTexture("mesh", grayPreview(4)))
	c.InvalidateCache("mesh")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, outcomes)
	for _, o := range outcomes {
		assert.Equal(t, OutcomeFailed, o)
	}
}

func TestBreakerShortCircuits(t *testing.T) {
	failing := &failingTier{}
	c := New(failing,
		WithLogger(quietLogger()),
		WithRetryConfig(fastRetry()),
	)

	// Trip the breaker: five consecutive failed dispatches
	for i := 0; i < 5; i++ {
		_ = c.LoadUVData("mesh")
	}

	before := failing.callCount()
	for i := 0; i < 10; i++ {
		_ = c.LoadUVData("mesh")
	}

	// The open breaker sends operations straight to the fallback
	assert.Equal(t, before, failing.callCount(),
		"open breaker must not touch the active tier")

	// Operations still work through the fallback
	assert.True(t, c.CacheUVData("mesh", 3, nil, testIslands(), nil))
	assert.False(t, c.LoadUVData("mesh").IsZero())
}

func TestSemanticMissDoesNotTriggerFallback(t *testing.T) {
	tier := cache.NewMemoryTier(10)

	fallbackHit := false
	c := New(tier,
		WithLogger(quietLogger()),
		WithFallbackHook(func(op string, outcome Outcome, err error) {
			fallbackHit = true
		}),
	)

	// A miss on a healthy tier is not a failure
	assert.True(t, c.LoadUVData("absent").IsZero())
	assert.False(t, fallbackHit, "misses must not count as degradation")

	stats := c.GetStatistics()
	assert.Zero(t, stats.Fallbacks)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestSavePreviewTexture(t *testing.T) {
	c := New(nil, WithLogger(quietLogger()))

	require.True(t, c.CacheUVData("mesh", 1, grayPreview(16), testIslands(), nil))

	replacement := types.NewUniformPixelBuffer(32, 32, types.Color{G: 255, A: 255})
	assert.True(t, c.SavePreviewTexture("mesh", replacement))

	got := c.GetPreviewTexture("mesh", 0)
	require.NotNil(t, got)
	assert.True(t, replacement.Equal(got))

	// The entry itself is untouched
	entry := c.LoadUVData("mesh")
	assert.Equal(t, uint64(1), entry.MeshHash)

	// No entry, nothing to refresh
	assert.False(t, c.SavePreviewTexture("absent", replacement))
}

func TestPreviewScalerHonorsResolution(t *testing.T) {
	tier := &scalingTier{MemoryTier: cache.NewMemoryTier(10)}
	c := New(tier, WithLogger(quietLogger()))

	require.True(t, c.CacheUVData("mesh", 1, grayPreview(64), testIslands(), nil))

	got := c.GetPreviewTexture("mesh", 32)
	require.NotNil(t, got)
	assert.Equal(t, 32, got.Width)
	assert.Equal(t, 32, got.Height)

	// Zero requests the configured default resolution
	def := c.GetPreviewTexture("mesh", 0)
	require.NotNil(t, def)
	assert.Equal(t, DefaultPreviewResolution, def.Width)
}

func TestGetStatistics(t *testing.T) {
	c := New(nil, WithLogger(quietLogger()))

	require.True(t, c.CacheUVData("a", 1, grayPreview(8), testIslands(), nil))
	require.True(t, c.CacheUVData("b", 2, grayPreview(8), testIslands(), nil))

	_ = c.LoadUVData("a")      // hit
	_ = c.LoadUVData("b")      // hit
	_ = c.LoadUVData("absent") // miss

	stats := c.GetStatistics()
	assert.Equal(t, "memory", stats.Tier)
	assert.Equal(t, 2, stats.EntryCount)
	assert.Positive(t, stats.TotalSizeBytes)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestTierStatistics(t *testing.T) {
	failing := &failingTier{}
	c := New(failing, WithLogger(quietLogger()), WithRetryConfig(fastRetry()))

	perTier := c.TierStatistics()
	require.Len(t, perTier, 2)
	assert.Equal(t, "failing", perTier[0].Tier)
	assert.Equal(t, "memory", perTier[1].Tier)

	// A memory-only cache is its own fallback: one snapshot
	memOnly := New(nil, WithLogger(quietLogger()))
	assert.Len(t, memOnly.TierStatistics(), 1)
}

func TestMemoryLimitOption(t *testing.T) {
	c := New(nil, WithLogger(quietLogger()), WithMemoryLimit(2))

	require.True(t, c.CacheUVData("a", 1, nil, testIslands(), nil))
	require.True(t, c.CacheUVData("b", 2, nil, testIslands(), nil))
	require.True(t, c.CacheUVData("c", 3, nil, testIslands(), nil))

	// Oldest insertion evicted
	assert.True(t, c.LoadUVData("a").IsZero())
	assert.False(t, c.LoadUVData("b").IsZero())
	assert.False(t, c.LoadUVData("c").IsZero())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ok", OutcomeOK.String())
	assert.Equal(t, "degraded", OutcomeDegraded.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	tier, err := cache.NewDiskTier(&cache.DiskTierConfig{Directory: dir})
	require.NoError(t, err)

	c := New(tier, WithLogger(quietLogger()))
	require.True(t, c.CacheUVData("mesh", 1, nil, testIslands(), nil))
	require.NoError(t, c.Close())

	// The disk tier was closed through the facade
	assert.False(t, tier.HasCache("mesh"))
}

func TestOpenWithDefaults(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.True(t, c.CacheUVData("mesh", 1, nil, testIslands(), nil))
	assert.False(t, c.LoadUVData("mesh").IsZero())
	assert.Equal(t, "memory", c.GetStatistics().Tier)
}

func TestOpenWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "uvcache.yaml")
	cfgYAML := `
logging:
  level: ERROR
  format: text
cache:
  active_tier: disk
disk:
  directory: ` + filepath.Join(dir, "store") + `
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0600))

	c, err := Open(cfgPath)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.True(t, c.CacheUVData("mesh", 9, grayPreview(8), testIslands(), []int{0}))
	entry := c.LoadUVData("mesh")
	require.False(t, entry.IsZero())
	assert.Equal(t, uint64(9), entry.MeshHash)
	assert.Equal(t, "disk", c.GetStatistics().Tier)
}

func TestOpenInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("cache:\n  active_tier: carrier-pigeon\n"), 0600))

	_, err := Open(cfgPath)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigValidation, errors.CodeOf(err))
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open("/nonexistent/uvcache.yaml")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigLoad, errors.CodeOf(err))
}

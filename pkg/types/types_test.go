package types

import (
	"testing"
	"time"
)

func sampleEntry() *CacheEntry {
	return &CacheEntry{
		FormatVersion: 1,
		MeshHash:      99,
		Timestamp:     time.Now().UTC(),
		Islands: []UVIsland{
			{
				ID:              0,
				TriangleIndices: []int{0, 1},
				VertexIndices:   []int{0, 1, 2},
				Bounds:          UVRect{Width: 1, Height: 1},
				Color:           Color{R: 10, G: 20, B: 30, A: 255},
			},
		},
		Preview:         NewUniformPixelBuffer(4, 4, Color{R: 128, G: 128, B: 128, A: 255}),
		SelectedIslands: []int{0},
	}
}

func TestPixelBufferNew(t *testing.T) {
	p := NewPixelBuffer(4, 2)
	if p.Width != 4 || p.Height != 2 {
		t.Errorf("Dimensions = %dx%d, want 4x2", p.Width, p.Height)
	}
	if len(p.Pix) != 4*4*2 {
		t.Errorf("len(Pix) = %d, want %d", len(p.Pix), 4*4*2)
	}

	// Negative dimensions clamp to zero
	empty := NewPixelBuffer(-1, -1)
	if empty.Width != 0 || empty.Height != 0 || len(empty.Pix) != 0 {
		t.Errorf("Negative dimensions should yield empty buffer, got %+v", empty)
	}
}

func TestPixelBufferAtSetAt(t *testing.T) {
	p := NewPixelBuffer(2, 2)
	c := Color{R: 1, G: 2, B: 3, A: 4}
	p.SetAt(1, 1, c)

	if got := p.At(1, 1); got != c {
		t.Errorf("At(1,1) = %+v, want %+v", got, c)
	}
	if got := p.At(0, 0); got != (Color{}) {
		t.Errorf("At(0,0) = %+v, want zero", got)
	}

	// Out-of-bounds access is safe and returns the zero color
	if got := p.At(5, 5); got != (Color{}) {
		t.Errorf("Out-of-bounds At = %+v, want zero", got)
	}
	p.SetAt(-1, 0, c) // must not panic
}

func TestPixelBufferCloneAndEqual(t *testing.T) {
	p := NewUniformPixelBuffer(4, 4, Color{R: 200, A: 255})
	clone := p.Clone()

	if !p.Equal(clone) {
		t.Error("Clone should equal the original")
	}

	clone.SetAt(0, 0, Color{B: 9})
	if p.Equal(clone) {
		t.Error("Mutating the clone must not affect the original")
	}

	var nilBuf *PixelBuffer
	if nilBuf.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
	if p.Equal(nil) || nilBuf.Equal(p) {
		t.Error("Nil and non-nil buffers are not equal")
	}
	if !nilBuf.Equal(nil) {
		t.Error("Two nil buffers are equal")
	}
}

func TestPixelBufferScaled(t *testing.T) {
	p := NewUniformPixelBuffer(4, 4, Color{R: 50, G: 60, B: 70, A: 255})

	up := p.Scaled(8, 8)
	if up.Width != 8 || up.Height != 8 {
		t.Errorf("Scaled dimensions = %dx%d, want 8x8", up.Width, up.Height)
	}
	if got := up.At(7, 7); got.R != 50 || got.A != 255 {
		t.Errorf("Scaled pixel = %+v, want uniform source color", got)
	}

	same := p.Scaled(4, 4)
	if !same.Equal(p) {
		t.Error("Scaling to the same size should preserve pixels")
	}
	if p.Scaled(0, 4) != nil {
		t.Error("Non-positive target should return nil")
	}
}

func TestUVIslandClone(t *testing.T) {
	island := UVIsland{
		ID:              3,
		TriangleIndices: []int{1, 2, 3},
		VertexIndices:   []int{4, 5},
	}
	clone := island.Clone()
	clone.TriangleIndices[0] = 99
	clone.VertexIndices[0] = 99

	if island.TriangleIndices[0] == 99 || island.VertexIndices[0] == 99 {
		t.Error("Clone must not share index slices with the original")
	}
}

func TestCacheEntryIsZero(t *testing.T) {
	var zero CacheEntry
	if !zero.IsZero() {
		t.Error("Zero-value entry should report IsZero")
	}
	if sampleEntry().IsZero() {
		t.Error("Populated entry should not report IsZero")
	}
}

func TestCacheEntryClone(t *testing.T) {
	entry := sampleEntry()
	clone := entry.Clone()

	clone.Islands[0].VertexIndices[0] = 77
	clone.SelectedIslands[0] = 77
	clone.Preview.SetAt(0, 0, Color{R: 77})

	if entry.Islands[0].VertexIndices[0] == 77 {
		t.Error("Clone shares island indices with the original")
	}
	if entry.SelectedIslands[0] == 77 {
		t.Error("Clone shares selection slice with the original")
	}
	if entry.Preview.At(0, 0).R == 77 {
		t.Error("Clone shares preview pixels with the original")
	}

	var nilEntry *CacheEntry
	if nilEntry.Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestCacheEntryExpired(t *testing.T) {
	window := 7 * 24 * time.Hour

	fresh := sampleEntry()
	if fresh.Expired(window) {
		t.Error("Fresh entry should not be expired")
	}

	stale := sampleEntry()
	stale.Timestamp = time.Now().UTC().Add(-8 * 24 * time.Hour)
	if !stale.Expired(window) {
		t.Error("Eight-day-old entry should be expired against a 7-day window")
	}

	// A non-positive window disables expiry
	if stale.Expired(0) {
		t.Error("Zero window should disable expiry")
	}
}

func TestCacheEntryEstimateSize(t *testing.T) {
	entry := sampleEntry()
	size := entry.EstimateSize()
	if size <= entry.Preview.SizeBytes() {
		t.Errorf("EstimateSize = %d, should exceed the preview payload %d",
			size, entry.Preview.SizeBytes())
	}

	var nilEntry *CacheEntry
	if nilEntry.EstimateSize() != 0 {
		t.Error("EstimateSize of nil should be 0")
	}
}

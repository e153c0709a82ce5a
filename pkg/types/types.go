package types

import (
	"bytes"
	"time"
)

// UVRect represents an axis-aligned bounding rectangle in UV space
type UVRect struct {
	U      float32 `json:"u"`
	V      float32 `json:"v"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// Color represents an RGBA color with 8 bits per channel
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// UVIsland represents one connected component of mesh surface in UV space
type UVIsland struct {
	ID              int    `json:"id"`
	TriangleIndices []int  `json:"triangle_indices"`
	VertexIndices   []int  `json:"vertex_indices"`
	Bounds          UVRect `json:"bounds"`
	Color           Color  `json:"color"`
}

// Clone returns a deep copy of the island
func (i UVIsland) Clone() UVIsland {
	out := i
	if i.TriangleIndices != nil {
		out.TriangleIndices = make([]int, len(i.TriangleIndices))
		copy(out.TriangleIndices, i.TriangleIndices)
	}
	if i.VertexIndices != nil {
		out.VertexIndices = make([]int, len(i.VertexIndices))
		copy(out.VertexIndices, i.VertexIndices)
	}
	return out
}

// PixelBuffer represents a 2D RGBA pixel buffer with 4 bytes per pixel
type PixelBuffer struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Pix    []byte `json:"pix"`
}

// NewPixelBuffer creates a zeroed buffer of the given dimensions
func NewPixelBuffer(width, height int) *PixelBuffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]byte, 4*width*height),
	}
}

// NewUniformPixelBuffer creates a buffer filled with a single color
func NewUniformPixelBuffer(width, height int, c Color) *PixelBuffer {
	p := NewPixelBuffer(width, height)
	for i := 0; i < len(p.Pix); i += 4 {
		p.Pix[i] = c.R
		p.Pix[i+1] = c.G
		p.Pix[i+2] = c.B
		p.Pix[i+3] = c.A
	}
	return p
}

// At returns the color at the given coordinates
func (p *PixelBuffer) At(x, y int) Color {
	if p == nil || x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return Color{}
	}
	i := 4 * (y*p.Width + x)
	return Color{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: p.Pix[i+3]}
}

// SetAt sets the color at the given coordinates
func (p *PixelBuffer) SetAt(x, y int, c Color) {
	if p == nil || x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return
	}
	i := 4 * (y*p.Width + x)
	p.Pix[i] = c.R
	p.Pix[i+1] = c.G
	p.Pix[i+2] = c.B
	p.Pix[i+3] = c.A
}

// Clone returns a deep copy of the buffer
func (p *PixelBuffer) Clone() *PixelBuffer {
	if p == nil {
		return nil
	}
	out := &PixelBuffer{
		Width:  p.Width,
		Height: p.Height,
		Pix:    make([]byte, len(p.Pix)),
	}
	copy(out.Pix, p.Pix)
	return out
}

// Scaled returns a nearest-neighbor resample of the buffer at the given
// dimensions. Returns a clone when the dimensions already match, nil when
// the buffer is nil or the target is not positive.
func (p *PixelBuffer) Scaled(width, height int) *PixelBuffer {
	if p == nil || width <= 0 || height <= 0 {
		return nil
	}
	if width == p.Width && height == p.Height {
		return p.Clone()
	}

	out := NewPixelBuffer(width, height)
	for y := 0; y < height; y++ {
		srcY := y * p.Height / height
		for x := 0; x < width; x++ {
			srcX := x * p.Width / width
			out.SetAt(x, y, p.At(srcX, srcY))
		}
	}
	return out
}

// Equal reports whether two buffers have identical dimensions and pixels
func (p *PixelBuffer) Equal(other *PixelBuffer) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Width == other.Width &&
		p.Height == other.Height &&
		bytes.Equal(p.Pix, other.Pix)
}

// SizeBytes returns the pixel payload size in bytes
func (p *PixelBuffer) SizeBytes() int64 {
	if p == nil {
		return 0
	}
	return int64(len(p.Pix))
}

// CacheEntry represents the stored unit per cache key
type CacheEntry struct {
	FormatVersion   int          `json:"format_version"`
	MeshHash        uint64       `json:"mesh_hash"`
	Timestamp       time.Time    `json:"timestamp"`
	Islands         []UVIsland   `json:"islands"`
	Preview         *PixelBuffer `json:"preview,omitempty"`
	SelectedIslands []int        `json:"selected_islands,omitempty"`
}

// IsZero reports whether the entry is the empty sentinel value
func (e CacheEntry) IsZero() bool {
	return e.FormatVersion == 0 && e.Timestamp.IsZero()
}

// Clone returns a deep copy of the entry
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	out := &CacheEntry{
		FormatVersion: e.FormatVersion,
		MeshHash:      e.MeshHash,
		Timestamp:     e.Timestamp,
		Preview:       e.Preview.Clone(),
	}
	if e.Islands != nil {
		out.Islands = make([]UVIsland, len(e.Islands))
		for i, island := range e.Islands {
			out.Islands[i] = island.Clone()
		}
	}
	if e.SelectedIslands != nil {
		out.SelectedIslands = make([]int, len(e.SelectedIslands))
		copy(out.SelectedIslands, e.SelectedIslands)
	}
	return out
}

// Age returns the time elapsed since the entry was created or refreshed
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.Timestamp)
}

// Expired reports whether the entry is older than the given window.
// A window of zero or less disables expiry.
func (e *CacheEntry) Expired(window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return e.Age() > window
}

// EstimateSize returns an approximate in-memory size of the entry in bytes
func (e *CacheEntry) EstimateSize() int64 {
	if e == nil {
		return 0
	}
	size := int64(64) // fixed fields
	for _, island := range e.Islands {
		size += 40 // bounds, color, struct overhead
		size += int64(8 * len(island.TriangleIndices))
		size += int64(8 * len(island.VertexIndices))
	}
	size += e.Preview.SizeBytes()
	size += int64(8 * len(e.SelectedIslands))
	return size
}

// CacheStatistics represents per-tier cache performance statistics
type CacheStatistics struct {
	Tier            string  `json:"tier,omitempty"`
	EntryCount      int     `json:"entry_count"`
	TotalSizeBytes  int64   `json:"total_size_bytes"`
	Hits            uint64  `json:"hits"`
	Misses          uint64  `json:"misses"`
	Evictions       uint64  `json:"evictions"`
	Fallbacks       uint64  `json:"fallbacks,omitempty"`
	HitRate         float64 `json:"hit_rate"`
	AverageAccessMs float64 `json:"average_access_ms"`
}

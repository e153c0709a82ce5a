package mesh

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Vector3 represents a mesh vertex position
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// HashVertices computes a content fingerprint over a vertex buffer. The
// hash is order-sensitive and covers the exact float bits, so any edit to
// the mesh geometry produces a different value.
func HashVertices(verts []Vector3) uint64 {
	d := xxhash.New()
	var buf [12]byte
	for _, v := range verts {
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.Z))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// HashBytes computes a content fingerprint over an arbitrary byte slice
func HashBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// Package mesh provides mesh identity abstraction, cache key derivation,
// and content hashing for UV analysis caching.
package mesh

import "fmt"

// IdentitySource exposes the mesh identity fields the cache depends on.
// Host integrations implement this over their own mesh object model; the
// cache never sees host types.
type IdentitySource interface {
	MeshName() string
	MeshInstanceID() int64
	MeshVertexCount() int
}

// Identity is a plain value implementation of IdentitySource
type Identity struct {
	Name        string `json:"name"`
	InstanceID  int64  `json:"instance_id"`
	VertexCount int    `json:"vertex_count"`
}

// MeshName returns the mesh name
func (id Identity) MeshName() string { return id.Name }

// MeshInstanceID returns the host instance identifier
func (id Identity) MeshInstanceID() int64 { return id.InstanceID }

// MeshVertexCount returns the vertex count
func (id Identity) MeshVertexCount() int { return id.VertexCount }

// DeriveKey constructs the cache key "{name}_{instanceId}_{vertexCount}"
// for a mesh and sanitizes it for storage. A nil source yields the
// invalid-mesh sentinel. The result is stable across calls and processes.
func DeriveKey(src IdentitySource) string {
	if src == nil {
		return SentinelInvalidMesh
	}
	raw := fmt.Sprintf("%s_%d_%d", src.MeshName(), src.MeshInstanceID(), src.MeshVertexCount())
	return Sanitize(raw)
}

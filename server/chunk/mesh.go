// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package chunk

// Mesh is an opaque handle owned by a MeshBuilder.
type Mesh interface{}

// MeshBuilder builds and disposes the meshes of chunks.
// Build is called at most once per tick, and may be called again for a chunk whose mesh was disposed.
// A Build that returns nil leaves the chunk without a mesh.
type MeshBuilder interface {
	Build(chunk *Chunk) Mesh
	Dispose(mesh Mesh)
}

// nopMeshBuilder is used when a host has no renderer.
type nopMeshBuilder struct{}

func (nopMeshBuilder) Build(*Chunk) Mesh {
	return nil
}

func (nopMeshBuilder) Dispose(Mesh) {}

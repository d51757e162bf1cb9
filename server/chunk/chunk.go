// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chunk streams the chunks around a viewer in and out of memory and
// writes edited chunks back to the store.
package chunk

import (
	"github.com/SoftbearStudios/hexvoxel/server/terrain"
	"github.com/SoftbearStudios/hexvoxel/server/world"
)

// Chunk is a loaded chunk. It is owned by a Cache and must only be
// accessed from the goroutine that drives it.
type Chunk struct {
	Coord  world.ChunkCoord
	Blocks [terrain.Volume]byte

	// LOD is set beyond the cache's LOD distance and requests a simplified mesh.
	LOD bool
	// Dirty means the mesh is stale.
	Dirty bool
	// Modified means Blocks differ from the last saved copy.
	Modified bool

	mesh    Mesh
	version uint64 // incremented by every edit
}

// Block returns the block at local coordinates, or air if they are out of bounds.
func (chunk *Chunk) Block(localQ, localR, y int) terrain.Block {
	if !terrain.InBounds(localQ, localR, y) {
		return terrain.Air
	}
	return chunk.Blocks[terrain.Index(localQ, localR, y)]
}

func (chunk *Chunk) Mesh() Mesh {
	return chunk.mesh
}

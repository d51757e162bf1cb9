// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sync/atomic"

	"github.com/SoftbearStudios/hexvoxel/server/chunk"
	"github.com/SoftbearStudios/hexvoxel/server/terrain"
	"github.com/SoftbearStudios/hexvoxel/server/world"
)

// HeadlessMesh is what a renderer would draw for a chunk.
type HeadlessMesh struct {
	// Faces is the number of block faces that touch air.
	Faces int
	LOD   bool
}

// HeadlessMesher builds meshes for hosts without a renderer, such as the native server.
// It may be shared by caches running on different goroutines.
type HeadlessMesher struct {
	live atomic.Int64
}

func (m *HeadlessMesher) Build(c *chunk.Chunk) chunk.Mesh {
	m.live.Add(1)
	if c.LOD {
		return &HeadlessMesh{Faces: countSurfaces(c), LOD: true}
	}
	return &HeadlessMesh{Faces: countFaces(c)}
}

func (m *HeadlessMesher) Dispose(mesh chunk.Mesh) {
	if _, ok := mesh.(*HeadlessMesh); ok {
		m.live.Add(-1)
	}
}

// Live returns the number of meshes built and not yet disposed.
func (m *HeadlessMesher) Live() int64 {
	return m.live.Load()
}

// countFaces counts the faces of solid blocks that touch air. Faces on the edge
// of the chunk always count.
func countFaces(c *chunk.Chunk) (faces int) {
	for q := 0; q < terrain.Width; q++ {
		for r := 0; r < terrain.Width; r++ {
			for y := 0; y < terrain.Height; y++ {
				if c.Block(q, r, y) == terrain.Air {
					continue
				}

				if y == terrain.Height-1 || c.Block(q, r, y+1) == terrain.Air {
					faces++
				}
				if y == 0 || c.Block(q, r, y-1) == terrain.Air {
					faces++
				}
				for _, direction := range world.HexDirections {
					nq, nr := q+direction.Q, r+direction.R
					if !terrain.InBounds(nq, nr, y) || c.Block(nq, nr, y) == terrain.Air {
						faces++
					}
				}
			}
		}
	}
	return
}

// countSurfaces counts one top face per column that has a solid block.
func countSurfaces(c *chunk.Chunk) (faces int) {
	for q := 0; q < terrain.Width; q++ {
		for r := 0; r < terrain.Width; r++ {
			if _, _, ok := terrain.Surface(c.Blocks[:], q, r); ok {
				faces++
			}
		}
	}
	return
}

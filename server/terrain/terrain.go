// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package terrain

import (
	"github.com/SoftbearStudios/hexvoxel/server/world"
)

const (
	// Width is the number of columns along each axial axis of a chunk.
	Width = world.ChunkWidth
	// Height is the number of blocks in a column.
	Height = 64
	// Volume is the number of blocks in a chunk. Every chunk has exactly this many.
	Volume = Width * Width * Height
)

// Source generates the blocks of chunks.
// Generate must be deterministic for a given seed and return exactly Volume bytes.
type Source interface {
	Generate(coord world.ChunkCoord) []byte
}

// Index returns the position of a block in a chunk's block array.
// Columns are contiguous so vertical runs compress well.
func Index(localQ, localR, y int) int {
	return y + Height*(localR+Width*localQ)
}

// InBounds reports whether local coordinates address a block inside a chunk.
func InBounds(localQ, localR, y int) bool {
	return localQ >= 0 && localQ < Width && localR >= 0 && localR < Width && y >= 0 && y < Height
}

// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"fmt"
	"strconv"
	"strings"
)

// ChunkWidth is the number of block columns along each axis of a chunk.
const ChunkWidth = 16

type (
	// AxialCoord is the position of a column of blocks on the hex grid.
	AxialCoord struct {
		Q int `json:"q"`
		R int `json:"r"`
	}

	// ChunkCoord is the position of a chunk on the chunk grid.
	ChunkCoord struct {
		Q int `json:"cq"`
		R int `json:"cr"`
	}
)

// HexDirections are the six axial neighbor offsets of a column.
var HexDirections = [6]AxialCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// ChunkNeighbors are the offsets of the 8 chunk slots surrounding a chunk.
var ChunkNeighbors = [8]ChunkCoord{
	{Q: -1, R: -1},
	{Q: 0, R: -1},
	{Q: 1, R: -1},
	{Q: -1, R: 0},
	{Q: 1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
	{Q: 1, R: 1},
}

func (coord AxialCoord) Add(other AxialCoord) AxialCoord {
	coord.Q += other.Q
	coord.R += other.R
	return coord
}

// Chunk returns the coordinate of the chunk containing the column.
func (coord AxialCoord) Chunk() ChunkCoord {
	return ChunkCoord{Q: floorDiv(coord.Q, ChunkWidth), R: floorDiv(coord.R, ChunkWidth)}
}

// Local returns the column's offset inside its chunk, each in [0, ChunkWidth).
func (coord AxialCoord) Local() (q, r int) {
	return floorMod(coord.Q, ChunkWidth), floorMod(coord.R, ChunkWidth)
}

func (coord ChunkCoord) Add(other ChunkCoord) ChunkCoord {
	coord.Q += other.Q
	coord.R += other.R
	return coord
}

func (coord ChunkCoord) Sub(other ChunkCoord) ChunkCoord {
	coord.Q -= other.Q
	coord.R -= other.R
	return coord
}

// Origin returns the axial coordinate of the chunk's (0, 0) column.
func (coord ChunkCoord) Origin() AxialCoord {
	return AxialCoord{Q: coord.Q * ChunkWidth, R: coord.R * ChunkWidth}
}

// Distance returns the hex distance between two chunk coordinates.
func (coord ChunkCoord) Distance(other ChunkCoord) int {
	return HexDistance(coord.Q-other.Q, coord.R-other.R)
}

// Key returns the persisted record key "worldID:cq:cr".
func (coord ChunkCoord) Key(worldID string) string {
	var builder strings.Builder
	builder.Grow(len(worldID) + 16)
	builder.WriteString(worldID)
	builder.WriteByte(':')
	builder.WriteString(strconv.Itoa(coord.Q))
	builder.WriteByte(':')
	builder.WriteString(strconv.Itoa(coord.R))
	return builder.String()
}

func (coord ChunkCoord) String() string {
	return fmt.Sprintf("(%d, %d)", coord.Q, coord.R)
}

// ParseChunkKey is the inverse of ChunkCoord.Key.
func ParseChunkKey(key string) (worldID string, coord ChunkCoord, err error) {
	r := strings.LastIndexByte(key, ':')
	if r <= 0 {
		err = fmt.Errorf("invalid chunk key %q", key)
		return
	}
	q := strings.LastIndexByte(key[:r], ':')
	if q < 0 {
		err = fmt.Errorf("invalid chunk key %q", key)
		return
	}

	if coord.Q, err = strconv.Atoi(key[q+1 : r]); err != nil {
		return
	}
	if coord.R, err = strconv.Atoi(key[r+1:]); err != nil {
		return
	}
	worldID = key[:q]
	return
}

// HexDistance returns the grid distance of an axial offset.
func HexDistance(dq, dr int) int {
	return (abs(dq) + abs(dr) + abs(dq+dr)) / 2
}

func floorDiv(a, b int) int {
	d := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		d--
	}
	return d
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

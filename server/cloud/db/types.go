// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package db

import (
	"github.com/SoftbearStudios/hexvoxel/server/world"
)

// World is the metadata of a saved world.
type World struct {
	ID   string `dynamo:"id,hash" gorm:"column:id;primaryKey;size:36" json:"id"`
	Name string `dynamo:"name" gorm:"column:name" json:"name"`
	Seed int64  `dynamo:"seed" gorm:"column:seed" json:"seed"`

	// Timestamps are unix millis.
	CreatedAt  int64 `dynamo:"createdAt" gorm:"column:created_at;autoCreateTime:false" json:"createdAt"`
	LastPlayed int64 `dynamo:"lastPlayed" gorm:"column:last_played" json:"lastPlayed"`
}

// Chunk is the persisted, run length encoded blocks of a chunk.
type Chunk struct {
	Key     string `dynamo:"key,hash" gorm:"column:key;primaryKey;size:96" json:"key"`
	WorldID string `dynamo:"worldId" index:"worldId-index,hash" gorm:"column:world_id;index;size:36" json:"worldId"`
	Q       int    `dynamo:"cq" gorm:"column:cq" json:"cq"`
	R       int    `dynamo:"cr" gorm:"column:cr" json:"cr"`
	Data    []byte `dynamo:"data" gorm:"column:data" json:"data"`
}

// Player is the saved viewer state of a world. There is at most one per world.
type Player struct {
	WorldID  string         `dynamo:"worldId,hash" gorm:"column:world_id;primaryKey;size:36" json:"worldId"`
	Position world.Vec3f    `dynamo:"position" gorm:"embedded;embeddedPrefix:position_" json:"position"`
	Rotation world.Rotation `dynamo:"rotation" gorm:"embedded;embeddedPrefix:rotation_" json:"rotation"`
}

// Waypoint is a named position in a world.
type Waypoint struct {
	ID       string      `dynamo:"id,hash" gorm:"column:id;primaryKey;size:36" json:"id"`
	WorldID  string      `dynamo:"worldId" index:"worldId-index,hash" gorm:"column:world_id;index;size:36" json:"worldId"`
	Name     string      `dynamo:"name" gorm:"column:name" json:"name"`
	Position world.Vec3f `dynamo:"position" gorm:"embedded;embeddedPrefix:position_" json:"position"`
}

// Coord returns the chunk coordinate of the record.
func (chunk *Chunk) Coord() world.ChunkCoord {
	return world.ChunkCoord{Q: chunk.Q, R: chunk.R}
}

// NewChunk creates a record for a chunk of a world.
func NewChunk(worldID string, coord world.ChunkCoord, data []byte) Chunk {
	return Chunk{
		Key:     coord.Key(worldID),
		WorldID: worldID,
		Q:       coord.Q,
		R:       coord.R,
		Data:    data,
	}
}

// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package db

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every failure of the underlying storage engine.
// Not finding a record is never an error; reads report it with ok == false.
var ErrUnavailable = errors.New("store unavailable")

// Database is the persistent store shared by the world registry and chunk caches.
// Implementations must be safe for concurrent use and serialize writes to the same key.
type Database interface {
	ReadWorld(ctx context.Context, id string) (world World, ok bool, err error)
	ReadWorlds(ctx context.Context) (worlds []World, err error)
	UpdateWorld(ctx context.Context, world World) error
	DeleteWorld(ctx context.Context, id string) error

	ReadChunk(ctx context.Context, key string) (chunk Chunk, ok bool, err error)
	ReadChunksByWorld(ctx context.Context, worldID string) (chunks []Chunk, err error)
	UpdateChunk(ctx context.Context, chunk Chunk) error
	DeleteChunk(ctx context.Context, key string) error

	ReadPlayer(ctx context.Context, worldID string) (player Player, ok bool, err error)
	UpdatePlayer(ctx context.Context, player Player) error
	DeletePlayer(ctx context.Context, worldID string) error

	ReadWaypointsByWorld(ctx context.Context, worldID string) (waypoints []Waypoint, err error)
	UpdateWaypoint(ctx context.Context, waypoint Waypoint) error
	DeleteWaypoint(ctx context.Context, id string) error
}

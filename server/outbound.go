// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"github.com/SoftbearStudios/hexvoxel/server/chunk"
	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/world"
)

type (
	// WorldList is every saved world, most recently played first.
	WorldList struct {
		Worlds []db.World `json:"worlds"`
	}

	// WorldOpened is sent once a world's session has started.
	WorldOpened struct {
		World     db.World       `json:"world"`
		Position  world.Vec3f    `json:"position"`
		Rotation  world.Rotation `json:"rotation"`
		Waypoints []db.Waypoint  `json:"waypoints"`
	}

	// WaypointList is the waypoints of the open world.
	WaypointList struct {
		Waypoints []db.Waypoint `json:"waypoints"`
	}

	// Status describes the open world's chunk cache.
	Status struct {
		Viewer world.ChunkCoord `json:"viewer"`
		Stats  chunk.Stats      `json:"stats"`
	}

	// Failure reports that a request could not be completed.
	Failure struct {
		Request string `json:"request"`
		Reason  string `json:"reason"`
	}
)

func init() {
	registerOutbound(
		WorldList{},
		WorldOpened{},
		WaypointList{},
		Status{},
		Failure{},
	)
}

// fail sends a Failure for a request to a client that is still connected.
// Must be called on the hub goroutine.
func fail(client Client, in Inbound, reason string) {
	if client.Data().Hub != nil {
		client.Send(Failure{Request: inboundName(in), Reason: reason})
	}
}

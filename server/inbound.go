// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"

	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/registry"
	"github.com/SoftbearStudios/hexvoxel/server/terrain"
	"github.com/SoftbearStudios/hexvoxel/server/world"
)

// Make sure to register in init function
type (
	// ListWorlds requests a WorldList.
	ListWorlds struct{}

	// CreateWorld creates a world and replies with a WorldList. A nil Seed is random.
	CreateWorld struct {
		Name string `json:"name"`
		Seed *int64 `json:"seed"`
	}

	// OpenWorld starts a session, closing the current one.
	OpenWorld struct {
		ID string `json:"id"`
	}

	RenameWorld struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	// DeleteWorld deletes a world that is not open.
	DeleteWorld struct {
		ID string `json:"id"`
	}

	// Move moves the viewer of the open world.
	Move struct {
		Position world.Vec3f    `json:"position"`
		Rotation world.Rotation `json:"rotation"`
	}

	// SetBlock edits a block of a loaded chunk of the open world.
	SetBlock struct {
		Q     int           `json:"q"`
		R     int           `json:"r"`
		Y     int           `json:"y"`
		Block terrain.Block `json:"block"`
	}

	// SaveAll saves the open world now.
	SaveAll struct{}

	AddWaypoint struct {
		Name     string      `json:"name"`
		Position world.Vec3f `json:"position"`
	}

	RemoveWaypoint struct {
		ID string `json:"id"`
	}

	// InvalidInbound means invalid message type from client (possibly out of date).
	// NOTE: Do not register, otherwise client could send type "invalidInbound"
	InvalidInbound struct {
		messageType messageType
	}
)

func init() {
	registerInbound(
		ListWorlds{},
		CreateWorld{},
		OpenWorld{},
		RenameWorld{},
		DeleteWorld{},
		Move{},
		SetBlock{},
		SaveAll{},
		AddWaypoint{},
		RemoveWaypoint{},
	)
}

func (data ListWorlds) Process(h *Hub, client Client) {
	h.async(func(ctx context.Context) func() {
		return h.worldList(ctx, client, data)
	})
}

// worldList reads every world and returns a function that sends them.
func (h *Hub) worldList(ctx context.Context, client Client, in Inbound) func() {
	worlds, err := h.registry.ListWorlds(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("could not list worlds")
		return func() { fail(client, in, "could not list worlds") }
	}
	if worlds == nil {
		worlds = []db.World{}
	}
	return func() {
		h.reply(client, WorldList{Worlds: worlds})
		h.renameSessions(worlds)
	}
}

// renameSessions keeps the names of open worlds current.
func (h *Hub) renameSessions(worlds []db.World) {
	for _, w := range worlds {
		if session := h.sessions[w.ID]; session != nil {
			session.World.Name = w.Name
		}
	}
}

func (data CreateWorld) Process(h *Hub, client Client) {
	h.async(func(ctx context.Context) func() {
		if _, err := h.registry.CreateWorld(ctx, data.Name, data.Seed); err != nil {
			h.logger.WithError(err).Warn("could not create world")
			return func() { fail(client, data, "could not create world") }
		}
		return h.worldList(ctx, client, data)
	})
}

func (data OpenWorld) Process(h *Hub, client Client) {
	if owner := h.sessions[data.ID]; owner != nil && owner.client != client {
		fail(client, data, "world is already open")
		return
	}

	// Reopening saves first
	h.closeSession(client)
	closing := h.closingDone(data.ID)

	h.async(func(ctx context.Context) func() {
		if err := awaitClosing(ctx, closing); err != nil {
			return func() { fail(client, data, "world is still saving") }
		}

		w, ok, err := h.registry.LoadWorld(ctx, data.ID)
		if err != nil {
			h.logger.WithError(err).WithField("world", data.ID).Warn("could not load world")
			return func() { fail(client, data, "could not load world") }
		}
		if !ok {
			return func() { fail(client, data, "world not found") }
		}

		opened := WorldOpened{World: w, Position: spawnPosition}

		player, ok, err := h.registry.LoadPlayerState(ctx, w.ID)
		if err != nil {
			h.logger.WithError(err).WithField("world", w.ID).Warn("could not load player state")
		} else if ok {
			opened.Position = player.Position
			opened.Rotation = player.Rotation
		}

		opened.Waypoints, err = h.registry.ListWaypoints(ctx, w.ID)
		if err != nil {
			h.logger.WithError(err).WithField("world", w.ID).Warn("could not list waypoints")
		}
		if opened.Waypoints == nil {
			opened.Waypoints = []db.Waypoint{}
		}

		return func() { h.openSession(client, data, opened) }
	})
}

func (data RenameWorld) Process(h *Hub, client Client) {
	h.async(func(ctx context.Context) func() {
		if err := h.registry.RenameWorld(ctx, data.ID, data.Name); err != nil {
			h.logger.WithError(err).WithField("world", data.ID).Warn("could not rename world")
			return func() { fail(client, data, "could not rename world") }
		}
		return h.worldList(ctx, client, data)
	})
}

func (data DeleteWorld) Process(h *Hub, client Client) {
	if h.sessions[data.ID] != nil {
		fail(client, data, "world is open")
		return
	}
	closing := h.closingDone(data.ID)

	h.async(func(ctx context.Context) func() {
		if err := awaitClosing(ctx, closing); err != nil {
			return func() { fail(client, data, "world is still saving") }
		}
		if err := h.registry.DeleteWorld(ctx, data.ID); err != nil {
			h.logger.WithError(err).WithField("world", data.ID).Error("could not delete world")
			return func() { fail(client, data, "could not delete world") }
		}
		return h.worldList(ctx, client, data)
	})
}

func (data Move) Process(h *Hub, client Client) {
	session := client.Data().Session
	if session == nil {
		fail(client, data, "no world open")
		return
	}

	session.Position = data.Position
	session.Rotation = data.Rotation
	session.Cache.UpdateLoadedChunks(data.Position.Axial())
}

func (data SetBlock) Process(h *Hub, client Client) {
	session := client.Data().Session
	if session == nil {
		fail(client, data, "no world open")
		return
	}

	if !session.Cache.SetBlock(data.Q, data.R, data.Y, data.Block) {
		fail(client, data, "block is not loaded")
	}
}

func (data SaveAll) Process(h *Hub, client Client) {
	session := client.Data().Session
	if session == nil {
		fail(client, data, "no world open")
		return
	}

	worldID, position, rotation := session.World.ID, session.Position, session.Rotation

	// Called on whichever goroutine owns the cache when the saves finish.
	session.Cache.SaveAll(func(err error) {
		h.async(func(ctx context.Context) func() {
			if err != nil {
				h.logger.WithError(err).WithField("world", worldID).Warn("could not save world")
				return func() { fail(client, data, "could not save world") }
			}
			if err := h.registry.SavePlayerState(ctx, worldID, position, rotation); err != nil {
				h.logger.WithError(err).WithField("world", worldID).Warn("could not save player state")
				return func() { fail(client, data, "could not save player state") }
			}
			return func() {
				if session := client.Data().Session; session != nil && h.sessions[worldID] == session {
					h.reply(client, Status{Viewer: session.Cache.Viewer(), Stats: session.Cache.Stats()})
				}
			}
		})
	})
}

func (data AddWaypoint) Process(h *Hub, client Client) {
	session := client.Data().Session
	if session == nil {
		fail(client, data, "no world open")
		return
	}

	worldID := session.World.ID
	h.async(func(ctx context.Context) func() {
		if _, err := h.registry.AddWaypoint(ctx, worldID, data.Name, data.Position); err != nil {
			h.logger.WithError(err).WithField("world", worldID).Warn("could not add waypoint")
			return func() { fail(client, data, "could not add waypoint") }
		}
		return h.waypointList(ctx, client, data, worldID)
	})
}

func (data RemoveWaypoint) Process(h *Hub, client Client) {
	session := client.Data().Session
	if session == nil {
		fail(client, data, "no world open")
		return
	}

	worldID := session.World.ID
	h.async(func(ctx context.Context) func() {
		if err := h.registry.RemoveWaypoint(ctx, worldID, data.ID); err != nil {
			if errors.Is(err, registry.ErrWaypointNotFound) {
				return func() { fail(client, data, "waypoint not found") }
			}
			h.logger.WithError(err).WithField("world", worldID).Warn("could not remove waypoint")
			return func() { fail(client, data, "could not remove waypoint") }
		}
		return h.waypointList(ctx, client, data, worldID)
	})
}

func (h *Hub) waypointList(ctx context.Context, client Client, in Inbound, worldID string) func() {
	waypoints, err := h.registry.ListWaypoints(ctx, worldID)
	if err != nil {
		h.logger.WithError(err).WithField("world", worldID).Warn("could not list waypoints")
		return func() { fail(client, in, "could not list waypoints") }
	}
	if waypoints == nil {
		waypoints = []db.Waypoint{}
	}
	return func() { h.reply(client, WaypointList{Waypoints: waypoints}) }
}

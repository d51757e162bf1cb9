// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"

	"github.com/SoftbearStudios/hexvoxel/server/chunk"
	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/terrain"
	"github.com/SoftbearStudios/hexvoxel/server/world"
	"github.com/sirupsen/logrus"
)

// Session is a world opened by a client.
type Session struct {
	World    db.World
	Cache    *chunk.Cache
	Position world.Vec3f
	Rotation world.Rotation
	client   Client
}

// spawnPosition is where a viewer without saved state starts.
var spawnPosition = world.AxialCoord{}.Center(terrain.Height)

// openSession starts a session once the world's records have been read.
func (h *Hub) openSession(client Client, in Inbound, opened WorldOpened) {
	if client.Data().Hub != h {
		return
	}
	if owner := h.sessions[opened.World.ID]; owner != nil {
		fail(client, in, "world is already open")
		return
	}
	h.closeSession(client)

	cache, err := chunk.New(chunk.Options{
		WorldID:        opened.World.ID,
		Database:       h.options.Database,
		Source:         h.options.NewSource(opened.World.Seed),
		Mesher:         h.options.Mesher,
		Logger:         h.options.Logger,
		RenderDistance: h.options.RenderDistance,
		LODDistance:    h.options.LODDistance,
		MaxInflight:    h.options.MaxInflight,
		FlushPeriod:    h.options.FlushPeriod,
		Backoff:        h.options.Backoff,
	})
	if err != nil {
		h.logger.WithError(err).Error("could not create chunk cache")
		fail(client, in, "could not open world")
		return
	}

	session := &Session{
		World:    opened.World,
		Cache:    cache,
		Position: opened.Position,
		Rotation: opened.Rotation,
		client:   client,
	}
	h.sessions[session.World.ID] = session
	client.Data().Session = session

	cache.UpdateLoadedChunks(session.Position.Axial())

	h.logger.WithFields(logrus.Fields{
		"world":  session.World.ID,
		"name":   session.World.Name,
		"viewer": cache.Viewer(),
	}).Info("opened world")

	client.Send(opened)
}

// closeSession ends a client's session, if any. The world is saved on another
// goroutine which owns the cache from then on.
func (h *Hub) closeSession(client Client) {
	session := client.Data().Session
	if session == nil {
		return
	}
	client.Data().Session = nil

	worldID := session.World.ID
	delete(h.sessions, worldID)

	done := make(chan struct{})
	h.closing[worldID] = done

	logger := h.logger.WithField("world", worldID)
	logger.Info("closing world")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		if err := session.Cache.Close(ctx); err != nil {
			logger.WithError(err).Error("could not save chunks")
		}
		if err := h.registry.SavePlayerState(ctx, worldID, session.Position, session.Rotation); err != nil {
			logger.WithError(err).Error("could not save player state")
		}
		close(done)

		select {
		case h.callbacks <- func() {
			if h.closing[worldID] == done {
				delete(h.closing, worldID)
			}
		}:
		case <-h.done:
		}
	}()
}

// closingDone returns a channel that is closed once a world is no longer being saved.
func (h *Hub) closingDone(worldID string) <-chan struct{} {
	if done, ok := h.closing[worldID]; ok {
		return done
	}
	return nil
}

// awaitClosing waits for a closing world to be saved. A nil channel returns immediately.
func awaitClosing(ctx context.Context, done <-chan struct{}) error {
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

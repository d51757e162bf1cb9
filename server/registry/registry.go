// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry manages saved worlds, their player state and waypoints.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/world"
	"github.com/finnbear/moderation"
	"github.com/gofrs/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultWorldName = "New World"
	maxNameLength    = 48
)

// Registry is safe for concurrent use.
type Registry struct {
	database db.Database
	logger   logrus.FieldLogger
	now      func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

func New(database db.Database, logger logrus.FieldLogger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{
		database: database,
		logger:   logger.WithField("component", "registry"),
		now:      time.Now,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *Registry) unixMillis() int64 {
	return r.now().UnixNano() / int64(time.Millisecond)
}

// randomSeed returns a random non-negative 31 bit integer.
func (r *Registry) randomSeed() int64 {
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return int64(r.rand.Int31())
}

// CreateWorld creates and persists a world. A nil seed picks a random one.
func (r *Registry) CreateWorld(ctx context.Context, name string, seed *int64) (db.World, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return db.World{}, err
	}

	name = sanitizeName(name)
	if name == "" {
		name = defaultWorldName
	}

	now := r.unixMillis()
	world := db.World{
		ID:         id.String(),
		Name:       name,
		CreatedAt:  now,
		LastPlayed: now,
	}
	if seed != nil {
		world.Seed = *seed
	} else {
		world.Seed = r.randomSeed()
	}

	if err = r.database.UpdateWorld(ctx, world); err != nil {
		return db.World{}, err
	}

	r.logger.WithFields(logrus.Fields{"world": world.ID, "seed": world.Seed}).Info("created world")
	return world, nil
}

// ListWorlds returns every world, most recently played first.
func (r *Registry) ListWorlds(ctx context.Context) ([]db.World, error) {
	worlds, err := r.database.ReadWorlds(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(worlds, func(i, j int) bool {
		a, b := &worlds[i], &worlds[j]
		if a.LastPlayed != b.LastPlayed {
			return a.LastPlayed > b.LastPlayed
		}
		return a.CreatedAt > b.CreatedAt
	})

	return worlds, nil
}

// LoadWorld marks a world as played now. A missing world is ok == false, not an error.
func (r *Registry) LoadWorld(ctx context.Context, id string) (world db.World, ok bool, err error) {
	world, ok, err = r.database.ReadWorld(ctx, id)
	if err != nil || !ok {
		return
	}

	world.LastPlayed = r.unixMillis()
	if err = r.database.UpdateWorld(ctx, world); err != nil {
		return db.World{}, false, err
	}
	return
}

// RenameWorld renames a world if it exists. Blank names keep the old name.
func (r *Registry) RenameWorld(ctx context.Context, id, name string) error {
	world, ok, err := r.database.ReadWorld(ctx, id)
	if err != nil || !ok {
		return err
	}

	name = sanitizeName(name)
	if name == "" || name == world.Name {
		return nil
	}

	world.Name = name
	return r.database.UpdateWorld(ctx, world)
}

// DeleteWorld deletes a world and everything saved in it.
// Waypoints are removed on a best effort basis; failing to remove them never stops the rest.
func (r *Registry) DeleteWorld(ctx context.Context, id string) error {
	logger := r.logger.WithField("world", id)
	var errs []error

	chunks, err := r.database.ReadChunksByWorld(ctx, id)
	if err != nil {
		errs = append(errs, fmt.Errorf("listing chunks: %w", err))
	}
	for _, chunk := range chunks {
		if err = r.database.DeleteChunk(ctx, chunk.Key); err != nil {
			errs = append(errs, fmt.Errorf("deleting chunk %s: %w", chunk.Key, err))
		}
	}

	if err = r.database.DeletePlayer(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("deleting player: %w", err))
	}

	if waypoints, err := r.database.ReadWaypointsByWorld(ctx, id); err != nil {
		logger.WithError(err).Warn("could not list waypoints of deleted world")
	} else {
		for _, waypoint := range waypoints {
			if err = r.database.DeleteWaypoint(ctx, waypoint.ID); err != nil {
				logger.WithError(err).WithField("waypoint", waypoint.ID).Warn("could not delete waypoint")
			}
		}
	}

	if err = r.database.DeleteWorld(ctx, id); err != nil {
		errs = append(errs, fmt.Errorf("deleting world: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.WithField("chunks", len(chunks)).Info("deleted world")
	return nil
}

// SavePlayerState upserts the viewer state of a world.
func (r *Registry) SavePlayerState(ctx context.Context, worldID string, position world.Vec3f, rotation world.Rotation) error {
	return r.database.UpdatePlayer(ctx, db.Player{
		WorldID:  worldID,
		Position: position,
		Rotation: rotation,
	})
}

// LoadPlayerState returns the viewer state of a world, if one was saved.
func (r *Registry) LoadPlayerState(ctx context.Context, worldID string) (db.Player, bool, error) {
	return r.database.ReadPlayer(ctx, worldID)
}

// sanitizeName trims, censors and truncates a user supplied name.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name, _ = moderation.Censor(name, moderation.Inappropriate)

	if runes := []rune(name); len(runes) > maxNameLength {
		name = strings.TrimSpace(string(runes[:maxNameLength]))
	}
	return name
}

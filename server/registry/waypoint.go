// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"context"
	"errors"
	"sort"

	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/world"
	"github.com/gofrs/uuid"
)

const defaultWaypointName = "Waypoint"

// ErrWaypointNotFound is returned when a waypoint does not exist in a world.
var ErrWaypointNotFound = errors.New("waypoint not found")

// AddWaypoint saves a named position in a world.
func (r *Registry) AddWaypoint(ctx context.Context, worldID, name string, position world.Vec3f) (db.Waypoint, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return db.Waypoint{}, err
	}

	name = sanitizeName(name)
	if name == "" {
		name = defaultWaypointName
	}

	waypoint := db.Waypoint{
		ID:       id.String(),
		WorldID:  worldID,
		Name:     name,
		Position: position,
	}
	if err = r.database.UpdateWaypoint(ctx, waypoint); err != nil {
		return db.Waypoint{}, err
	}
	return waypoint, nil
}

// ListWaypoints returns the waypoints of a world sorted by name.
func (r *Registry) ListWaypoints(ctx context.Context, worldID string) ([]db.Waypoint, error) {
	waypoints, err := r.database.ReadWaypointsByWorld(ctx, worldID)
	if err != nil {
		return nil, err
	}
	sort.Slice(waypoints, func(i, j int) bool {
		if waypoints[i].Name != waypoints[j].Name {
			return waypoints[i].Name < waypoints[j].Name
		}
		return waypoints[i].ID < waypoints[j].ID
	})
	return waypoints, nil
}

// RemoveWaypoint deletes a waypoint of a world. Waypoints of other worlds are left alone.
func (r *Registry) RemoveWaypoint(ctx context.Context, worldID, id string) error {
	waypoints, err := r.database.ReadWaypointsByWorld(ctx, worldID)
	if err != nil {
		return err
	}
	for _, waypoint := range waypoints {
		if waypoint.ID == id {
			return r.database.DeleteWaypoint(ctx, id)
		}
	}
	return ErrWaypointNotFound
}

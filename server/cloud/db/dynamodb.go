// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/guregu/dynamo"
)

// worldIndex is the global secondary index of records by worldId.
const worldIndex = "worldId-index"

type DynamoDBDatabase struct {
	svc            *dynamodb.DynamoDB
	db             *dynamo.DB
	worldsTable    dynamo.Table
	chunksTable    dynamo.Table
	playersTable   dynamo.Table
	waypointsTable dynamo.Table
}

func NewDynamoDBDatabase(session *session.Session, stage string) (*DynamoDBDatabase, error) {
	ddb := &DynamoDBDatabase{svc: dynamodb.New(session)}
	ddb.db = dynamo.NewFromIface(ddb.svc)
	ddb.worldsTable = ddb.db.Table("hexvoxel-" + stage + "-worlds")
	ddb.chunksTable = ddb.db.Table("hexvoxel-" + stage + "-chunks")
	ddb.playersTable = ddb.db.Table("hexvoxel-" + stage + "-players")
	ddb.waypointsTable = ddb.db.Table("hexvoxel-" + stage + "-waypoints")
	return ddb, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// readOne gets one item, translating dynamo.ErrNotFound to ok == false.
func readOne(ctx context.Context, query *dynamo.Query, op string, out interface{}) (bool, error) {
	err := query.OneWithContext(ctx, out)
	if err != nil {
		if errors.Is(err, dynamo.ErrNotFound) {
			return false, nil
		}
		return false, unavailable(op, err)
	}
	return true, nil
}

func (ddb *DynamoDBDatabase) ReadWorld(ctx context.Context, id string) (world World, ok bool, err error) {
	ok, err = readOne(ctx, ddb.worldsTable.Get("id", id), "read world", &world)
	return
}

func (ddb *DynamoDBDatabase) ReadWorlds(ctx context.Context) (worlds []World, err error) {
	query := ddb.worldsTable.Scan().Iter()

	for {
		var world World
		ok := query.NextWithContext(ctx, &world)
		if !ok {
			if err = query.Err(); err != nil {
				err = unavailable("read worlds", err)
			}
			return
		}
		worlds = append(worlds, world)
	}
}

func (ddb *DynamoDBDatabase) UpdateWorld(ctx context.Context, world World) error {
	if err := ddb.worldsTable.Put(world).RunWithContext(ctx); err != nil {
		return unavailable("update world", err)
	}
	return nil
}

func (ddb *DynamoDBDatabase) DeleteWorld(ctx context.Context, id string) error {
	if err := ddb.worldsTable.Delete("id", id).RunWithContext(ctx); err != nil {
		return unavailable("delete world", err)
	}
	return nil
}

func (ddb *DynamoDBDatabase) ReadChunk(ctx context.Context, key string) (chunk Chunk, ok bool, err error) {
	ok, err = readOne(ctx, ddb.chunksTable.Get("key", key), "read chunk", &chunk)
	return
}

func (ddb *DynamoDBDatabase) ReadChunksByWorld(ctx context.Context, worldID string) (chunks []Chunk, err error) {
	err = ddb.chunksTable.Get("worldId", worldID).Index(worldIndex).AllWithContext(ctx, &chunks)
	if err != nil {
		err = unavailable("read chunks by world", err)
	}
	return
}

func (ddb *DynamoDBDatabase) UpdateChunk(ctx context.Context, chunk Chunk) error {
	if err := ddb.chunksTable.Put(chunk).RunWithContext(ctx); err != nil {
		return unavailable("update chunk", err)
	}
	return nil
}

func (ddb *DynamoDBDatabase) DeleteChunk(ctx context.Context, key string) error {
	if err := ddb.chunksTable.Delete("key", key).RunWithContext(ctx); err != nil {
		return unavailable("delete chunk", err)
	}
	return nil
}

func (ddb *DynamoDBDatabase) ReadPlayer(ctx context.Context, worldID string) (player Player, ok bool, err error) {
	ok, err = readOne(ctx, ddb.playersTable.Get("worldId", worldID), "read player", &player)
	return
}

func (ddb *DynamoDBDatabase) UpdatePlayer(ctx context.Context, player Player) error {
	if err := ddb.playersTable.Put(player).RunWithContext(ctx); err != nil {
		return unavailable("update player", err)
	}
	return nil
}

func (ddb *DynamoDBDatabase) DeletePlayer(ctx context.Context, worldID string) error {
	if err := ddb.playersTable.Delete("worldId", worldID).RunWithContext(ctx); err != nil {
		return unavailable("delete player", err)
	}
	return nil
}

func (ddb *DynamoDBDatabase) ReadWaypointsByWorld(ctx context.Context, worldID string) (waypoints []Waypoint, err error) {
	err = ddb.waypointsTable.Get("worldId", worldID).Index(worldIndex).AllWithContext(ctx, &waypoints)
	if err != nil {
		err = unavailable("read waypoints by world", err)
	}
	return
}

func (ddb *DynamoDBDatabase) UpdateWaypoint(ctx context.Context, waypoint Waypoint) error {
	if err := ddb.waypointsTable.Put(waypoint).RunWithContext(ctx); err != nil {
		return unavailable("update waypoint", err)
	}
	return nil
}

func (ddb *DynamoDBDatabase) DeleteWaypoint(ctx context.Context, id string) error {
	if err := ddb.waypointsTable.Delete("id", id).RunWithContext(ctx); err != nil {
		return unavailable("delete waypoint", err)
	}
	return nil
}

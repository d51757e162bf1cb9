// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package db

import (
	"context"
	"errors"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func (World) TableName() string    { return "worlds" }
func (Chunk) TableName() string    { return "chunks" }
func (Player) TableName() string   { return "players" }
func (Waypoint) TableName() string { return "waypoints" }

// SQLDatabase is a Database backed by MySQL through gorm.
type SQLDatabase struct {
	db *gorm.DB
}

// NewSQLDatabase connects to dsn and migrates the schema.
func NewSQLDatabase(dsn string) (*SQLDatabase, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, unavailable("open", err)
	}
	return NewSQLDatabaseFromGorm(db)
}

// NewSQLDatabaseFromGorm uses an existing connection, migrating the schema.
func NewSQLDatabaseFromGorm(db *gorm.DB) (*SQLDatabase, error) {
	if err := db.AutoMigrate(&World{}, &Chunk{}, &Player{}, &Waypoint{}); err != nil {
		return nil, unavailable("migrate", err)
	}
	return &SQLDatabase{db: db}, nil
}

// first reads one record, translating gorm.ErrRecordNotFound to ok == false.
func (s *SQLDatabase) first(ctx context.Context, op string, out interface{}, query string, arg interface{}) (bool, error) {
	err := s.db.WithContext(ctx).Where(query, arg).First(out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, unavailable(op, err)
	}
	return true, nil
}

func (s *SQLDatabase) save(ctx context.Context, op string, value interface{}) error {
	if err := s.db.WithContext(ctx).Save(value).Error; err != nil {
		return unavailable(op, err)
	}
	return nil
}

func (s *SQLDatabase) delete(ctx context.Context, op string, value interface{}, query string, arg interface{}) error {
	if err := s.db.WithContext(ctx).Where(query, arg).Delete(value).Error; err != nil {
		return unavailable(op, err)
	}
	return nil
}

func (s *SQLDatabase) ReadWorld(ctx context.Context, id string) (world World, ok bool, err error) {
	ok, err = s.first(ctx, "read world", &world, "id = ?", id)
	return
}

func (s *SQLDatabase) ReadWorlds(ctx context.Context) (worlds []World, err error) {
	if err = s.db.WithContext(ctx).Find(&worlds).Error; err != nil {
		err = unavailable("read worlds", err)
	}
	return
}

func (s *SQLDatabase) UpdateWorld(ctx context.Context, world World) error {
	return s.save(ctx, "update world", &world)
}

func (s *SQLDatabase) DeleteWorld(ctx context.Context, id string) error {
	return s.delete(ctx, "delete world", &World{}, "id = ?", id)
}

func (s *SQLDatabase) ReadChunk(ctx context.Context, key string) (chunk Chunk, ok bool, err error) {
	ok, err = s.first(ctx, "read chunk", &chunk, "`key` = ?", key)
	return
}

func (s *SQLDatabase) ReadChunksByWorld(ctx context.Context, worldID string) (chunks []Chunk, err error) {
	if err = s.db.WithContext(ctx).Where("world_id = ?", worldID).Find(&chunks).Error; err != nil {
		err = unavailable("read chunks by world", err)
	}
	return
}

func (s *SQLDatabase) UpdateChunk(ctx context.Context, chunk Chunk) error {
	return s.save(ctx, "update chunk", &chunk)
}

func (s *SQLDatabase) DeleteChunk(ctx context.Context, key string) error {
	return s.delete(ctx, "delete chunk", &Chunk{}, "`key` = ?", key)
}

func (s *SQLDatabase) ReadPlayer(ctx context.Context, worldID string) (player Player, ok bool, err error) {
	ok, err = s.first(ctx, "read player", &player, "world_id = ?", worldID)
	return
}

func (s *SQLDatabase) UpdatePlayer(ctx context.Context, player Player) error {
	return s.save(ctx, "update player", &player)
}

func (s *SQLDatabase) DeletePlayer(ctx context.Context, worldID string) error {
	return s.delete(ctx, "delete player", &Player{}, "world_id = ?", worldID)
}

func (s *SQLDatabase) ReadWaypointsByWorld(ctx context.Context, worldID string) (waypoints []Waypoint, err error) {
	if err = s.db.WithContext(ctx).Where("world_id = ?", worldID).Find(&waypoints).Error; err != nil {
		err = unavailable("read waypoints by world", err)
	}
	return
}

func (s *SQLDatabase) UpdateWaypoint(ctx context.Context, waypoint Waypoint) error {
	return s.save(ctx, "update waypoint", &waypoint)
}

func (s *SQLDatabase) DeleteWaypoint(ctx context.Context, id string) error {
	return s.delete(ctx, "delete waypoint", &Waypoint{}, "id = ?", id)
}

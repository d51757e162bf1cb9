// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package db

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MemoryDatabase is a Database that lives in memory.
// It can be saved to and loaded from a JSON snapshot for offline play.
type MemoryDatabase struct {
	mu        sync.RWMutex
	worlds    map[string]World
	chunks    map[string]Chunk
	players   map[string]Player
	waypoints map[string]Waypoint
}

// memorySnapshot is the file format of a MemoryDatabase.
type memorySnapshot struct {
	Worlds    []World    `json:"worlds"`
	Chunks    []Chunk    `json:"chunks"`
	Players   []Player   `json:"players"`
	Waypoints []Waypoint `json:"waypoints"`
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		worlds:    make(map[string]World),
		chunks:    make(map[string]Chunk),
		players:   make(map[string]Player),
		waypoints: make(map[string]Waypoint),
	}
}

// LoadMemoryDatabase reads a snapshot written by Save.
func LoadMemoryDatabase(r io.Reader) (*MemoryDatabase, error) {
	var snapshot memorySnapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	m := NewMemoryDatabase()
	for _, world := range snapshot.Worlds {
		m.worlds[world.ID] = world
	}
	for _, chunk := range snapshot.Chunks {
		m.chunks[chunk.Key] = chunk
	}
	for _, player := range snapshot.Players {
		m.players[player.WorldID] = player
	}
	for _, waypoint := range snapshot.Waypoints {
		m.waypoints[waypoint.ID] = waypoint
	}
	return m, nil
}

// LoadMemoryDatabaseFile is LoadMemoryDatabase from a file. A missing file is an empty database.
func LoadMemoryDatabaseFile(filename string) (*MemoryDatabase, error) {
	f, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMemoryDatabase(), nil
		}
		return nil, err
	}
	defer f.Close()
	return LoadMemoryDatabase(f)
}

// Save writes a snapshot of every record, sorted by key.
func (m *MemoryDatabase) Save(w io.Writer) error {
	m.mu.RLock()
	var snapshot memorySnapshot
	for _, world := range m.worlds {
		snapshot.Worlds = append(snapshot.Worlds, world)
	}
	for _, chunk := range m.chunks {
		snapshot.Chunks = append(snapshot.Chunks, chunk)
	}
	for _, player := range m.players {
		snapshot.Players = append(snapshot.Players, player)
	}
	for _, waypoint := range m.waypoints {
		snapshot.Waypoints = append(snapshot.Waypoints, waypoint)
	}
	m.mu.RUnlock()

	sort.Slice(snapshot.Worlds, func(i, j int) bool { return snapshot.Worlds[i].ID < snapshot.Worlds[j].ID })
	sort.Slice(snapshot.Chunks, func(i, j int) bool { return snapshot.Chunks[i].Key < snapshot.Chunks[j].Key })
	sort.Slice(snapshot.Players, func(i, j int) bool { return snapshot.Players[i].WorldID < snapshot.Players[j].WorldID })
	sort.Slice(snapshot.Waypoints, func(i, j int) bool { return snapshot.Waypoints[i].ID < snapshot.Waypoints[j].ID })

	return json.NewEncoder(w).Encode(&snapshot)
}

// SaveFile atomically replaces filename with a snapshot.
func (m *MemoryDatabase) SaveFile(filename string) (err error) {
	f, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	if err = m.Save(f); err != nil {
		_ = f.Close()
		return
	}
	if err = f.Close(); err != nil {
		return
	}
	return os.Rename(f.Name(), filename)
}

func (m *MemoryDatabase) ReadWorld(_ context.Context, id string) (World, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	world, ok := m.worlds[id]
	return world, ok, nil
}

func (m *MemoryDatabase) ReadWorlds(_ context.Context) (worlds []World, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, world := range m.worlds {
		worlds = append(worlds, world)
	}
	return
}

func (m *MemoryDatabase) UpdateWorld(_ context.Context, world World) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.worlds[world.ID] = world
	return nil
}

func (m *MemoryDatabase) DeleteWorld(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.worlds, id)
	return nil
}

func (m *MemoryDatabase) ReadChunk(_ context.Context, key string) (Chunk, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunk, ok := m.chunks[key]
	if ok {
		chunk.Data = append([]byte(nil), chunk.Data...)
	}
	return chunk, ok, nil
}

func (m *MemoryDatabase) ReadChunksByWorld(_ context.Context, worldID string) (chunks []Chunk, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, chunk := range m.chunks {
		if chunk.WorldID == worldID {
			chunk.Data = append([]byte(nil), chunk.Data...)
			chunks = append(chunks, chunk)
		}
	}
	return
}

func (m *MemoryDatabase) UpdateChunk(_ context.Context, chunk Chunk) error {
	chunk.Data = append([]byte(nil), chunk.Data...)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[chunk.Key] = chunk
	return nil
}

func (m *MemoryDatabase) DeleteChunk(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, key)
	return nil
}

func (m *MemoryDatabase) ReadPlayer(_ context.Context, worldID string) (Player, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	player, ok := m.players[worldID]
	return player, ok, nil
}

func (m *MemoryDatabase) UpdatePlayer(_ context.Context, player Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[player.WorldID] = player
	return nil
}

func (m *MemoryDatabase) DeletePlayer(_ context.Context, worldID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, worldID)
	return nil
}

func (m *MemoryDatabase) ReadWaypointsByWorld(_ context.Context, worldID string) (waypoints []Waypoint, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, waypoint := range m.waypoints {
		if waypoint.WorldID == worldID {
			waypoints = append(waypoints, waypoint)
		}
	}
	return
}

func (m *MemoryDatabase) UpdateWaypoint(_ context.Context, waypoint Waypoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waypoints[waypoint.ID] = waypoint
	return nil
}

func (m *MemoryDatabase) DeleteWaypoint(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.waypoints, id)
	return nil
}

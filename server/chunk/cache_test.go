// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package chunk

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/terrain"
	"github.com/SoftbearStudios/hexvoxel/server/terrain/compressed"
	"github.com/SoftbearStudios/hexvoxel/server/world"
	"github.com/davecgh/go-spew/spew"
)

func TestNew(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without world id")
	}
	if _, err := New(Options{WorldID: "w"}); err == nil {
		t.Error("expected error without database")
	}
	if _, err := New(Options{WorldID: "w", Database: db.NewMemoryDatabase()}); err == nil {
		t.Error("expected error without source")
	}

	c, err := New(Options{WorldID: "w", Database: db.NewMemoryDatabase(), Source: testSource{}})
	if err != nil {
		t.Fatal(err)
	}
	defer c.cancel()
	if c.renderDistance != DefaultRenderDistance || c.lodDistance != DefaultLODDistance ||
		c.maxInflight != DefaultMaxInflight || c.storeTimeout != DefaultStoreTimeout || c.flushPeriod != DefaultFlushPeriod {
		t.Error("defaults not applied")
	}
}

func TestCache_UpdateLoadedChunks(t *testing.T) {
	mesher := newTestMesher()
	c := newTestCache(t, testOptions(newTestDatabase(), mesher))

	viewer := world.AxialCoord{Q: 40, R: -20}
	center := viewer.Chunk()
	c.UpdateLoadedChunks(viewer)

	if queued := c.Stats().Queued; queued != neededCount(2) {
		t.Fatalf("expected %d queued got %d", neededCount(2), queued)
	}

	settle(t, c)

	stats := c.Stats()
	if stats.Loaded != neededCount(2) {
		t.Fatalf("expected %d loaded got %d", neededCount(2), stats.Loaded)
	}
	if stats.Dirty != 0 || len(mesher.live) != stats.Loaded {
		t.Errorf("expected every chunk meshed: %s", spew.Sdump(stats))
	}

	for coord, chunk := range c.chunks {
		dist := coord.Distance(center)
		if dist > 2 {
			t.Error("chunk beyond render distance loaded", coord)
		}
		if chunk.LOD != (dist > 1) {
			t.Errorf("chunk %v at distance %d has LOD %t", coord, dist, chunk.LOD)
		}
		if mesh := chunk.Mesh().(*testMesh); mesh.lod != chunk.LOD {
			t.Error("mesh built with wrong LOD for", coord)
		}
		if !bytes.Equal(chunk.Blocks[:], generated(coord)) {
			t.Error("chunk not generated", coord)
		}
	}

	// Unchanged viewer does nothing
	c.UpdateLoadedChunks(viewer)
	if !idle(c) {
		t.Error("repeated update queued work")
	}
}

func TestCache_distanceOrderAndBudget(t *testing.T) {
	options := testOptions(newTestDatabase(), newTestMesher())
	options.RenderDistance = 4
	options.LODDistance = 2
	c := newTestCache(t, options)

	viewer := world.AxialCoord{Q: -100, R: 37}
	center := viewer.Chunk()
	c.UpdateLoadedChunks(viewer)

	var order []int
	for i := 0; !idle(c); i++ {
		if i > 100000 {
			t.Fatal("did not settle")
		}

		dirty := make(map[world.ChunkCoord]bool, len(c.chunks))
		for coord, chunk := range c.chunks {
			dirty[coord] = chunk.Dirty
		}

		waitHead(c)
		c.Update(world.TickPeriod)

		var loaded, cleaned int
		for coord, chunk := range c.chunks {
			wasDirty, existed := dirty[coord]
			if !existed {
				loaded++
				order = append(order, coord.Distance(center))

				for _, offset := range world.ChunkNeighbors {
					if neighbor, ok := c.chunks[coord.Add(offset)]; ok && !neighbor.Dirty {
						t.Errorf("neighbor %v of new chunk %v not dirty", neighbor.Coord, coord)
					}
				}
			} else if wasDirty && !chunk.Dirty {
				cleaned++
			}
		}

		if loaded > 1 || cleaned > 1 || loaded+cleaned > 1 {
			t.Fatalf("update %d loaded %d and cleaned %d chunks", i, loaded, cleaned)
		}
	}

	if len(order) != neededCount(4) {
		t.Fatalf("expected %d loads got %d", neededCount(4), len(order))
	}
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("chunks loaded out of distance order: %v", order)
		}
	}
}

func TestCache_Update_nonBlocking(t *testing.T) {
	database := newTestDatabase()
	gate := database.gateReads()
	options := testOptions(database, newTestMesher())
	options.MaxInflight = 3
	c := newTestCache(t, options)

	c.UpdateLoadedChunks(world.AxialCoord{})
	for i := 0; i < 20; i++ {
		c.Update(world.TickPeriod)
	}

	stats := c.Stats()
	if stats.Fetching != 3 || stats.Loaded != 0 || stats.Queued != neededCount(2)-3 {
		t.Fatalf("expected 3 blocked fetches: %s", spew.Sdump(stats))
	}

	close(gate)
	settle(t, c)
	if loaded := c.Stats().Loaded; loaded != neededCount(2) {
		t.Error("expected all chunks loaded got", loaded)
	}
}

func TestCache_LODChange(t *testing.T) {
	options := testOptions(newTestDatabase(), newTestMesher())
	options.RenderDistance = 3
	c := newTestCache(t, options)

	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)

	coord := world.ChunkCoord{Q: 1, R: 0}
	chunk, _ := c.Chunk(coord)
	if chunk.LOD || chunk.Dirty {
		t.Fatal("expected clean detailed chunk")
	}

	// Viewer one chunk away in the other direction puts the chunk at distance 2
	c.UpdateLoadedChunks(world.ChunkCoord{Q: -1, R: 0}.Origin())
	if !chunk.LOD || !chunk.Dirty {
		t.Error("LOD change did not mark chunk dirty")
	}
	if chunk.Modified {
		t.Error("LOD change marked chunk modified")
	}

	settle(t, c)
	if mesh := chunk.Mesh().(*testMesh); !mesh.lod {
		t.Error("mesh not rebuilt at LOD")
	}
}

func TestCache_unload(t *testing.T) {
	mesher := newTestMesher()
	database := newTestDatabase()
	c := newTestCache(t, testOptions(database, mesher))

	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)

	c.UpdateLoadedChunks(world.AxialCoord{Q: 1000, R: 1000})

	if c.Loaded(world.ChunkCoord{}) {
		t.Error("far chunk still loaded")
	}
	if stats := c.Stats(); stats.Loaded != 0 || stats.Unloading != 0 {
		t.Errorf("unexpected stats %s", spew.Sdump(stats))
	}
	if len(mesher.live) != 0 || mesher.disposed != neededCount(2) {
		t.Errorf("expected %d meshes disposed got %d, %d live", neededCount(2), mesher.disposed, len(mesher.live))
	}
	if writes, _ := database.counts(); writes != 0 {
		t.Error("unmodified chunks written", writes)
	}

	settle(t, c)
	if len(mesher.live) != neededCount(2) {
		t.Error("meshes not rebuilt after move", len(mesher.live))
	}
}

func TestCache_modifyThenUnload(t *testing.T) {
	database := newTestDatabase()
	c := newTestCache(t, testOptions(database, newTestMesher()))

	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)

	if block, _ := c.Block(3, 4, 30); block != terrain.Air {
		t.Fatal("expected air got", block)
	}
	if !c.SetBlock(3, 4, 30, terrain.Snow) {
		t.Fatal("SetBlock failed")
	}

	origin := world.ChunkCoord{}
	c.UpdateLoadedChunks(world.AxialCoord{Q: 1000, R: 1000})

	if c.Loaded(origin) {
		t.Error("modified chunk still loaded")
	}
	if c.lookup(origin) == nil {
		t.Fatal("modified chunk dropped before it was saved")
	}
	if _, ok := c.writes.inflight[origin]; !ok {
		t.Fatal("unload did not start saving")
	}

	awaitWrites(t, c)
	if c.lookup(origin) != nil || c.Stats().Unloading != 0 {
		t.Error("saved chunk not released")
	}
	if writes, _ := database.counts(); writes != 1 {
		t.Error("expected 1 write got", writes)
	}

	fresh := newTestCache(t, testOptions(database, newTestMesher()))
	fresh.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, fresh)

	if block, _ := fresh.Block(3, 4, 30); block != terrain.Snow {
		t.Error("edit lost, got", block)
	}
}

func TestCache_restoreWhileUnloading(t *testing.T) {
	database := newTestDatabase()
	database.setFailWrites(true)
	c := newTestCache(t, testOptions(database, newTestMesher()))

	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)
	c.SetBlock(1, 1, 40, terrain.Stone)

	c.UpdateLoadedChunks(world.AxialCoord{Q: 1000})
	awaitWrites(t, c)

	origin := world.ChunkCoord{}
	if _, ok := c.unloading[origin]; !ok {
		t.Fatal("unsaved chunk left the cache")
	}
	if c.Failures(origin) != 1 {
		t.Error("expected 1 failure got", c.Failures(origin))
	}

	c.UpdateLoadedChunks(world.AxialCoord{})

	chunk, ok := c.Chunk(origin)
	if !ok {
		t.Fatal("unsaved chunk not restored")
	}
	if !chunk.Modified || !chunk.Dirty {
		t.Error("restored chunk expected modified and dirty")
	}
	if _, ok := c.queued[origin]; ok {
		t.Error("restored chunk queued for load")
	}
	if block, _ := c.Block(1, 1, 40); block != terrain.Stone {
		t.Error("restored chunk lost edit")
	}

	database.setFailWrites(false)
	c.Flush()
	awaitWrites(t, c)
	if chunk.Modified {
		t.Error("chunk not saved after store recovered")
	}
	if c.Failures(origin) != 0 {
		t.Error("failures not reset")
	}
}

func TestCache_loadFromStore(t *testing.T) {
	database := newTestDatabase()

	saved := make([]byte, terrain.Volume)
	rand.Read(saved)
	coord := world.ChunkCoord{Q: 1, R: -1}
	_ = database.MemoryDatabase.UpdateChunk(context.Background(), db.NewChunk(testWorld, coord, compressed.Encode(saved)))

	// Records of other worlds are ignored
	_ = database.MemoryDatabase.UpdateChunk(context.Background(), db.NewChunk("other", world.ChunkCoord{}, compressed.Encode(saved)))

	c := newTestCache(t, testOptions(database, newTestMesher()))
	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)

	chunk, _ := c.Chunk(coord)
	if !bytes.Equal(chunk.Blocks[:], saved) {
		t.Error("saved chunk not restored")
	}
	if chunk.Modified {
		t.Error("restored chunk marked modified")
	}

	origin, _ := c.Chunk(world.ChunkCoord{})
	if !bytes.Equal(origin.Blocks[:], generated(world.ChunkCoord{})) {
		t.Error("chunk of other world loaded")
	}
}

func TestCache_corruptFallsBackToGeneration(t *testing.T) {
	database := newTestDatabase()
	coord := world.ChunkCoord{}
	_ = database.MemoryDatabase.UpdateChunk(context.Background(), db.NewChunk(testWorld, coord, []byte{1, 255, 2}))

	c := newTestCache(t, testOptions(database, newTestMesher()))
	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)

	chunk, _ := c.Chunk(coord)
	if !bytes.Equal(chunk.Blocks[:], generated(coord)) {
		t.Error("corrupt chunk not regenerated")
	}
}

func TestCache_storeFailureFallsBackToGeneration(t *testing.T) {
	database := newTestDatabase()
	database.setFailReads(true)

	c := newTestCache(t, testOptions(database, newTestMesher()))
	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)

	if loaded := c.Stats().Loaded; loaded != neededCount(2) {
		t.Fatal("expected all chunks generated got", loaded)
	}
}

func TestCache_wrongLengthGenerator(t *testing.T) {
	options := testOptions(newTestDatabase(), newTestMesher())
	options.Source = shortSource{}
	options.RenderDistance = 1
	c := newTestCache(t, options)

	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)

	chunk, _ := c.Chunk(world.ChunkCoord{})
	if !bytes.Equal(chunk.Blocks[:], make([]byte, terrain.Volume)) {
		t.Error("expected air chunk")
	}
}

func TestCache_cancelInflight(t *testing.T) {
	database := newTestDatabase()
	gate := database.gateReads()
	options := testOptions(database, newTestMesher())
	options.MaxInflight = 1
	c := newTestCache(t, options)

	c.UpdateLoadedChunks(world.AxialCoord{})
	c.Update(world.TickPeriod)

	origin := world.ChunkCoord{}
	f, ok := c.fetching[origin]
	if !ok {
		t.Fatal("nearest chunk not fetched first")
	}

	c.UpdateLoadedChunks(world.AxialCoord{Q: 1000})
	if !f.cancelled {
		t.Fatal("fetch not cancelled")
	}

	close(gate)
	<-f.ready
	c.Update(world.TickPeriod)

	if c.Loaded(origin) {
		t.Error("cancelled fetch was loaded")
	}
	if _, ok := c.fetching[origin]; ok {
		t.Error("cancelled fetch not discarded")
	}

	settle(t, c)
	if c.Loaded(origin) {
		t.Error("cancelled chunk loaded after settling")
	}
}

func TestCache_uncancelInflight(t *testing.T) {
	database := newTestDatabase()
	gate := database.gateReads()
	options := testOptions(database, newTestMesher())
	options.MaxInflight = 1
	c := newTestCache(t, options)

	c.UpdateLoadedChunks(world.AxialCoord{})
	c.Update(world.TickPeriod)
	f := c.fetching[world.ChunkCoord{}]

	c.UpdateLoadedChunks(world.AxialCoord{Q: 1000})
	c.UpdateLoadedChunks(world.AxialCoord{})
	if f.cancelled {
		t.Fatal("fetch still cancelled")
	}
	if _, ok := c.queued[world.ChunkCoord{}]; ok {
		t.Fatal("fetching chunk queued again")
	}

	close(gate)
	settle(t, c)
	if !c.Loaded(world.ChunkCoord{}) {
		t.Error("fetch discarded")
	}
}

func TestCache_SetBlock(t *testing.T) {
	c := newTestCache(t, testOptions(newTestDatabase(), newTestMesher()))
	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)

	if c.SetBlock(1000, 0, 10, terrain.Stone) {
		t.Error("SetBlock of unloaded chunk succeeded")
	}
	if c.SetBlock(0, 0, terrain.Height, terrain.Stone) {
		t.Error("SetBlock above chunk succeeded")
	}
	if _, ok := c.Block(0, 0, -1); ok {
		t.Error("Block below chunk succeeded")
	}

	origin, _ := c.Chunk(world.ChunkCoord{})
	west, _ := c.Chunk(world.ChunkCoord{Q: -1, R: 0})
	east, _ := c.Chunk(world.ChunkCoord{Q: 1, R: 0})

	// Interior edit
	c.SetBlock(5, 5, 30, terrain.Sand)
	if !origin.Dirty || !origin.Modified {
		t.Error("edited chunk not dirty and modified")
	}
	if west.Dirty || east.Dirty {
		t.Error("interior edit dirtied neighbors")
	}
	settle(t, c)

	// Edge edit on the west side
	c.SetBlock(0, 5, 30, terrain.Sand)
	if !west.Dirty {
		t.Error("edge edit did not dirty neighbor")
	}
	if west.Modified {
		t.Error("edge edit modified neighbor")
	}
	if east.Dirty {
		t.Error("edge edit dirtied far neighbor")
	}
	settle(t, c)

	// Negative coordinates land in the right chunk
	c.SetBlock(-1, -1, 20, terrain.Snow)
	if block, _ := c.Block(-1, -1, 20); block != terrain.Snow {
		t.Error("expected snow got", block)
	}
	southWest, _ := c.Chunk(world.ChunkCoord{Q: -1, R: -1})
	if block := southWest.Block(terrain.Width-1, terrain.Width-1, 20); block != terrain.Snow {
		t.Error("block written to wrong chunk")
	}

	// Setting the same block again is not an edit
	version := origin.version
	c.SetBlock(5, 5, 30, terrain.Sand)
	if origin.version != version {
		t.Error("unchanged block counted as edit")
	}
}

func TestCache_MarkChunkModified(t *testing.T) {
	c := newTestCache(t, testOptions(newTestDatabase(), newTestMesher()))

	// Unloaded chunks are ignored
	c.MarkChunkModified(world.ChunkCoord{})
	if len(c.writes.pending) != 0 {
		t.Error("unloaded chunk queued")
	}

	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)

	c.MarkChunkModified(world.ChunkCoord{})
	c.MarkChunkModified(world.ChunkCoord{})
	chunk, _ := c.Chunk(world.ChunkCoord{})
	if !chunk.Modified || chunk.Dirty {
		t.Error("expected modified clean chunk")
	}
	if len(c.writes.pending) != 1 {
		t.Error("expected one queued key got", len(c.writes.pending))
	}
}

func TestCache_Close(t *testing.T) {
	database := newTestDatabase()
	mesher := newTestMesher()
	c := newTestCache(t, testOptions(database, mesher))

	c.UpdateLoadedChunks(world.AxialCoord{})
	settle(t, c)

	c.SetBlock(0, 0, 50, terrain.Stone)
	c.SetBlock(20, 0, 50, terrain.Stone)
	c.SetBlock(20, 0, 51, terrain.Stone)

	if err := c.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if writes, _ := database.counts(); writes != 2 {
		t.Error("expected 2 writes got", writes)
	}
	if len(mesher.live) != 0 {
		t.Error("meshes not disposed", len(mesher.live))
	}
}

// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package chunk

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/terrain"
	"github.com/SoftbearStudios/hexvoxel/server/world"
	"github.com/sirupsen/logrus"
)

const testWorld = "test-world"

// testSource fills the bottom of every column with a block that depends on the chunk.
type testSource struct{}

func (testSource) Generate(coord world.ChunkCoord) []byte {
	return generated(coord)
}

func generated(coord world.ChunkCoord) []byte {
	blocks := make([]byte, terrain.Volume)
	block := byte(1 + ((coord.Q*7+coord.R)%50+50)%50)
	for i := range blocks {
		if i%terrain.Height < 10 {
			blocks[i] = block
		}
	}
	return blocks
}

type shortSource struct{}

func (shortSource) Generate(world.ChunkCoord) []byte {
	return []byte{1, 2, 3}
}

type testMesh struct {
	coord world.ChunkCoord
	lod   bool
}

// testMesher tracks live meshes and panics on double disposal.
type testMesher struct {
	built    int
	disposed int
	live     map[*testMesh]struct{}
}

func newTestMesher() *testMesher {
	return &testMesher{live: make(map[*testMesh]struct{})}
}

func (m *testMesher) Build(chunk *Chunk) Mesh {
	mesh := &testMesh{coord: chunk.Coord, lod: chunk.LOD}
	m.live[mesh] = struct{}{}
	m.built++
	return mesh
}

func (m *testMesher) Dispose(mesh Mesh) {
	t := mesh.(*testMesh)
	if _, ok := m.live[t]; !ok {
		panic(fmt.Sprint("mesh of ", t.coord, " disposed twice"))
	}
	delete(m.live, t)
	m.disposed++
}

// testDatabase counts chunk writes and can be told to fail or block.
type testDatabase struct {
	*db.MemoryDatabase

	mu            sync.Mutex
	writes        int
	attempts      int
	failWrites    bool
	failReads     bool
	readGate      chan struct{}
	writeGate     chan struct{}
	writtenChunks map[string]int
}

func newTestDatabase() *testDatabase {
	return &testDatabase{
		MemoryDatabase: db.NewMemoryDatabase(),
		writtenChunks:  make(map[string]int),
	}
}

func (d *testDatabase) ReadChunk(ctx context.Context, key string) (db.Chunk, bool, error) {
	d.mu.Lock()
	fail := d.failReads
	gate := d.readGate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return db.Chunk{}, false, fmt.Errorf("%w: %w", db.ErrUnavailable, ctx.Err())
		}
	}
	if fail {
		return db.Chunk{}, false, fmt.Errorf("%w: test", db.ErrUnavailable)
	}
	return d.MemoryDatabase.ReadChunk(ctx, key)
}

func (d *testDatabase) UpdateChunk(ctx context.Context, chunk db.Chunk) error {
	d.mu.Lock()
	gate := d.writeGate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", db.ErrUnavailable, ctx.Err())
		}
	}

	d.mu.Lock()
	d.attempts++
	fail := d.failWrites
	if !fail {
		d.writes++
		d.writtenChunks[chunk.Key]++
	}
	d.mu.Unlock()

	if fail {
		return fmt.Errorf("%w: test", db.ErrUnavailable)
	}
	return d.MemoryDatabase.UpdateChunk(ctx, chunk)
}

func (d *testDatabase) setFailWrites(fail bool) {
	d.mu.Lock()
	d.failWrites = fail
	d.mu.Unlock()
}

func (d *testDatabase) setFailReads(fail bool) {
	d.mu.Lock()
	d.failReads = fail
	d.mu.Unlock()
}

func (d *testDatabase) gateReads() chan struct{} {
	gate := make(chan struct{})
	d.mu.Lock()
	d.readGate = gate
	d.mu.Unlock()
	return gate
}

func (d *testDatabase) gateWrites() chan struct{} {
	gate := make(chan struct{})
	d.mu.Lock()
	d.writeGate = gate
	d.mu.Unlock()
	return gate
}

func (d *testDatabase) counts() (writes, attempts int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes, d.attempts
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testOptions(database db.Database, mesher MeshBuilder) Options {
	return Options{
		WorldID:        testWorld,
		Database:       database,
		Source:         testSource{},
		Mesher:         mesher,
		Logger:         quietLogger(),
		RenderDistance: 2,
		LODDistance:    1,
		FlushPeriod:    -1,
	}
}

func newTestCache(t *testing.T, options Options) *Cache {
	t.Helper()
	c, err := New(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.cancel)
	return c
}

// idle reports whether the cache has no work left.
func idle(c *Cache) bool {
	return len(c.queue) == 0 && len(c.inflight) == 0 && c.nearestDirty() == nil
}

// settle ticks the cache until it has no work left, waiting for each fetch in turn.
func settle(t *testing.T, c *Cache) {
	t.Helper()
	for i := 0; i < 100000; i++ {
		if idle(c) {
			return
		}
		waitHead(c)
		c.Update(world.TickPeriod)
	}
	t.Fatal("cache did not settle")
}

// waitHead blocks until the oldest fetch, if any, completes.
func waitHead(c *Cache) {
	if len(c.inflight) > 0 {
		<-c.inflight[0].ready
	}
}

func awaitWrites(t *testing.T, c *Cache) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for len(c.writes.inflight) > 0 {
		select {
		case result := <-c.writes.results:
			c.completeWrite(result)
		case <-ctx.Done():
			t.Fatal(ctx.Err())
		}
	}
}

// neededCount is the number of chunks within a hex distance.
func neededCount(distance int) int {
	return 1 + 3*distance*(distance+1)
}

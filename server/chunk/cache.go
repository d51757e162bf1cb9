// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package chunk

import (
	"context"
	"errors"
	"time"

	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/terrain"
	"github.com/SoftbearStudios/hexvoxel/server/terrain/compressed"
	"github.com/SoftbearStudios/hexvoxel/server/world"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

const (
	DefaultRenderDistance = 8
	DefaultLODDistance    = 4
	DefaultMaxInflight    = 4
	DefaultStoreTimeout   = 10 * time.Second
	DefaultFlushPeriod    = 5 * time.Second
)

// Options configure a Cache. WorldID, Database and Source are required.
type Options struct {
	WorldID  string
	Database db.Database
	Source   terrain.Source
	Mesher   MeshBuilder
	Logger   logrus.FieldLogger

	// Distances are in chunks. Zero selects the default.
	RenderDistance int
	LODDistance    int

	// MaxInflight limits concurrent store reads.
	MaxInflight  int
	StoreTimeout time.Duration

	// FlushPeriod is how often Update flushes modified chunks. Negative disables it.
	FlushPeriod time.Duration

	// Backoff, if not nil, creates the policy that delays retries of a chunk whose save failed.
	// Without it failed saves are retried on the next flush.
	Backoff func() backoff.BackOff
}

// Stats is a snapshot of a Cache's bookkeeping.
type Stats struct {
	Loaded        int `json:"loaded"`
	Unloading     int `json:"unloading"`
	Queued        int `json:"queued"`
	Fetching      int `json:"fetching"`
	Dirty         int `json:"dirty"`
	PendingWrites int `json:"pendingWrites"`
	Writing       int `json:"writing"`
	WriteFailures int `json:"writeFailures"`
}

// Cache holds the chunks of one world that are near a viewer.
// Except for New, its methods must be called from a single goroutine.
type Cache struct {
	worldID        string
	database       db.Database
	source         terrain.Source
	mesher         MeshBuilder
	logger         logrus.FieldLogger
	renderDistance int
	lodDistance    int
	maxInflight    int
	storeTimeout   time.Duration
	flushPeriod    time.Duration
	sinceFlush     time.Duration
	newBackoff     func() backoff.BackOff
	now            func() time.Time

	// Cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	viewer world.ChunkCoord

	// Chunks that are needed.
	chunks map[world.ChunkCoord]*Chunk
	// Chunks that are no longer needed but still have unsaved edits.
	unloading map[world.ChunkCoord]*Chunk

	queue    loadQueue
	queued   map[world.ChunkCoord]*loadJob
	seq      uint64
	inflight []*fetch // in issue order
	fetching map[world.ChunkCoord]*fetch

	writes writeQueue
}

// New creates an empty Cache. Call UpdateLoadedChunks to start loading.
func New(options Options) (*Cache, error) {
	if options.WorldID == "" {
		return nil, errors.New("chunk cache requires a world id")
	}
	if options.Database == nil {
		return nil, errors.New("chunk cache requires a database")
	}
	if options.Source == nil {
		return nil, errors.New("chunk cache requires a source")
	}

	if options.Mesher == nil {
		options.Mesher = nopMeshBuilder{}
	}
	if options.Logger == nil {
		options.Logger = logrus.StandardLogger()
	}
	if options.RenderDistance <= 0 {
		options.RenderDistance = DefaultRenderDistance
	}
	if options.LODDistance <= 0 {
		options.LODDistance = DefaultLODDistance
	}
	if options.MaxInflight <= 0 {
		options.MaxInflight = DefaultMaxInflight
	}
	if options.StoreTimeout <= 0 {
		options.StoreTimeout = DefaultStoreTimeout
	}
	if options.FlushPeriod == 0 {
		options.FlushPeriod = DefaultFlushPeriod
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Cache{
		worldID:        options.WorldID,
		database:       options.Database,
		source:         options.Source,
		mesher:         options.Mesher,
		logger:         options.Logger.WithField("world", options.WorldID),
		renderDistance: options.RenderDistance,
		lodDistance:    options.LODDistance,
		maxInflight:    options.MaxInflight,
		storeTimeout:   options.StoreTimeout,
		flushPeriod:    options.FlushPeriod,
		newBackoff:     options.Backoff,
		now:            time.Now,
		ctx:            ctx,
		cancel:         cancel,
		chunks:         make(map[world.ChunkCoord]*Chunk),
		unloading:      make(map[world.ChunkCoord]*Chunk),
		queued:         make(map[world.ChunkCoord]*loadJob),
		fetching:       make(map[world.ChunkCoord]*fetch),
		writes:         newWriteQueue(),
	}, nil
}

// UpdateLoadedChunks recomputes which chunks are needed around a viewer.
// Chunks that are no longer needed are unloaded immediately and missing
// chunks are queued nearest first.
func (c *Cache) UpdateLoadedChunks(viewer world.AxialCoord) {
	center := viewer.Chunk()
	c.viewer = center

	needed := make(map[world.ChunkCoord]int)
	for dq := -c.renderDistance; dq <= c.renderDistance; dq++ {
		for dr := -c.renderDistance; dr <= c.renderDistance; dr++ {
			dist := world.HexDistance(dq, dr)
			if dist > c.renderDistance {
				continue
			}
			needed[center.Add(world.ChunkCoord{Q: dq, R: dr})] = dist
		}
	}

	for coord, chunk := range c.chunks {
		if _, ok := needed[coord]; !ok {
			c.unloadChunk(chunk)
		}
	}

	c.queue.retain(func(job *loadJob) bool {
		if _, ok := needed[job.coord]; !ok {
			delete(c.queued, job.coord)
			return false
		}
		return true
	})

	for coord, f := range c.fetching {
		_, ok := needed[coord]
		f.cancelled = !ok
	}

	for coord, dist := range needed {
		lod := dist > c.lodDistance

		if chunk, ok := c.chunks[coord]; ok {
			if chunk.LOD != lod {
				chunk.LOD = lod
				chunk.Dirty = true
			}
			continue
		}

		if chunk, ok := c.unloading[coord]; ok {
			// Unsaved blocks are newer than anything in the store.
			delete(c.unloading, coord)
			chunk.LOD = lod
			chunk.Dirty = true
			c.chunks[coord] = chunk
			c.markNeighborsDirty(coord)
			continue
		}

		if job, ok := c.queued[coord]; ok {
			job.dist = dist
			job.lod = lod
			continue
		}

		if f, ok := c.fetching[coord]; ok {
			f.dist = dist
			f.lod = lod
			continue
		}

		c.seq++
		job := &loadJob{coord: coord, dist: dist, lod: lod, seq: c.seq}
		c.queued[coord] = job
		c.queue = append(c.queue, job)
	}

	c.queue.sort()
}

// Update advances the cache by one tick. Each call does at most one of, in order:
// finish the oldest completed fetch, issue the nearest queued fetch, or rebuild
// the nearest dirty mesh.
func (c *Cache) Update(delta time.Duration) {
	c.drainWrites()

	if c.flushPeriod > 0 {
		c.sinceFlush += delta
		if c.sinceFlush >= c.flushPeriod {
			c.sinceFlush = 0
			c.Flush()
		}
	}

	for len(c.inflight) > 0 && c.inflight[0].done() {
		f := c.inflight[0]
		c.inflight[0] = nil
		c.inflight = c.inflight[1:]
		delete(c.fetching, f.coord)

		if f.cancelled {
			continue
		}
		c.loadChunk(f)
		return
	}

	if len(c.queue) > 0 && len(c.inflight) < c.maxInflight {
		job := c.queue.pop()
		delete(c.queued, job.coord)
		c.issue(job)
		return
	}

	if chunk := c.nearestDirty(); chunk != nil {
		c.buildMesh(chunk)
	}
}

// issue starts reading a chunk from the store on another goroutine.
func (c *Cache) issue(job *loadJob) {
	f := newFetch(job)
	c.inflight = append(c.inflight, f)
	c.fetching[f.coord] = f
	go c.fetch(f)
}

// fetch reads a chunk, falling back to the generator if it is missing,
// unreadable or corrupt. It must not touch the cache's bookkeeping.
func (c *Cache) fetch(f *fetch) {
	defer close(f.ready)

	key := f.coord.Key(c.worldID)
	ctx, cancel := context.WithTimeout(c.ctx, c.storeTimeout)
	defer cancel()

	record, ok, err := c.database.ReadChunk(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("chunk", key).Warn("could not read chunk, generating instead")
	} else if ok {
		blocks, err := compressed.Decode(record.Data, terrain.Volume)
		if err == nil {
			f.blocks = blocks
			f.restored = true
			return
		}
		c.logger.WithError(err).WithField("chunk", key).Warn("could not decode chunk, generating instead")
	}

	f.blocks = c.generate(f.coord)
}

func (c *Cache) generate(coord world.ChunkCoord) []byte {
	blocks := c.source.Generate(coord)
	if len(blocks) != terrain.Volume {
		c.logger.WithFields(logrus.Fields{
			"chunk":  coord,
			"length": len(blocks),
		}).Error("generator returned wrong number of blocks, using air")
		return make([]byte, terrain.Volume)
	}
	return blocks
}

// loadChunk inserts the chunk of a completed fetch.
func (c *Cache) loadChunk(f *fetch) {
	chunk := &Chunk{
		Coord: f.coord,
		LOD:   f.lod,
		Dirty: true,
	}
	copy(chunk.Blocks[:], f.blocks)

	c.chunks[f.coord] = chunk
	c.markNeighborsDirty(f.coord)

	c.logger.WithFields(logrus.Fields{
		"chunk":    f.coord,
		"restored": f.restored,
	}).Debug("loaded chunk")
}

// unloadChunk removes a chunk that is no longer needed. Modified chunks are
// kept aside and saved immediately.
func (c *Cache) unloadChunk(chunk *Chunk) {
	c.disposeMesh(chunk)
	delete(c.chunks, chunk.Coord)

	if chunk.Modified {
		c.unloading[chunk.Coord] = chunk
		c.writes.enqueue(chunk.Coord)
		c.flushChunk(chunk.Coord, false)
	}
}

func (c *Cache) markNeighborsDirty(coord world.ChunkCoord) {
	for _, offset := range world.ChunkNeighbors {
		if neighbor, ok := c.chunks[coord.Add(offset)]; ok {
			neighbor.Dirty = true
		}
	}
}

// nearestDirty returns the dirty chunk closest to the viewer, or nil.
func (c *Cache) nearestDirty() (nearest *Chunk) {
	var nearestDist int
	for coord, chunk := range c.chunks {
		if !chunk.Dirty {
			continue
		}
		dist := coord.Distance(c.viewer)
		if nearest == nil || dist < nearestDist ||
			(dist == nearestDist && (coord.Q < nearest.Coord.Q || (coord.Q == nearest.Coord.Q && coord.R < nearest.Coord.R))) {
			nearest = chunk
			nearestDist = dist
		}
	}
	return
}

func (c *Cache) buildMesh(chunk *Chunk) {
	c.disposeMesh(chunk)
	chunk.mesh = c.mesher.Build(chunk)
	chunk.Dirty = false
}

func (c *Cache) disposeMesh(chunk *Chunk) {
	if chunk.mesh != nil {
		c.mesher.Dispose(chunk.mesh)
		chunk.mesh = nil
	}
}

// MarkChunkModified records that a loaded chunk's blocks were edited and queues it for saving.
func (c *Cache) MarkChunkModified(coord world.ChunkCoord) {
	chunk, ok := c.chunks[coord]
	if !ok {
		return
	}
	chunk.Modified = true
	chunk.version++
	c.writes.enqueue(coord)
}

// SetBlock edits a block of a loaded chunk. It returns false if the chunk is
// not loaded or y is out of bounds.
func (c *Cache) SetBlock(q, r, y int, block terrain.Block) bool {
	column := world.AxialCoord{Q: q, R: r}
	coord := column.Chunk()
	localQ, localR := column.Local()

	chunk, ok := c.chunks[coord]
	if !ok || !terrain.InBounds(localQ, localR, y) {
		return false
	}

	i := terrain.Index(localQ, localR, y)
	if chunk.Blocks[i] == block {
		return true
	}
	chunk.Blocks[i] = block
	chunk.Dirty = true

	// Faces on the chunk's edge are culled against its neighbors.
	for _, direction := range world.HexDirections {
		if other := column.Add(direction).Chunk(); other != coord {
			if neighbor, ok := c.chunks[other]; ok {
				neighbor.Dirty = true
			}
		}
	}

	c.MarkChunkModified(coord)
	return true
}

// Block returns a block of a loaded chunk.
func (c *Cache) Block(q, r, y int) (terrain.Block, bool) {
	column := world.AxialCoord{Q: q, R: r}
	chunk, ok := c.chunks[column.Chunk()]
	if !ok || y < 0 || y >= terrain.Height {
		return terrain.Air, false
	}
	localQ, localR := column.Local()
	return chunk.Block(localQ, localR, y), true
}

// Chunk returns a loaded chunk. The caller must not modify it.
func (c *Cache) Chunk(coord world.ChunkCoord) (*Chunk, bool) {
	chunk, ok := c.chunks[coord]
	return chunk, ok
}

// Loaded reports whether a chunk is loaded.
func (c *Cache) Loaded(coord world.ChunkCoord) bool {
	_, ok := c.chunks[coord]
	return ok
}

// Viewer returns the chunk containing the viewer.
func (c *Cache) Viewer() world.ChunkCoord {
	return c.viewer
}

func (c *Cache) WorldID() string {
	return c.worldID
}

func (c *Cache) Stats() Stats {
	stats := Stats{
		Loaded:        len(c.chunks),
		Unloading:     len(c.unloading),
		Queued:        len(c.queue),
		Fetching:      len(c.inflight),
		PendingWrites: len(c.writes.pending),
		Writing:       len(c.writes.inflight),
		WriteFailures: c.writes.totalFailures,
	}
	for _, chunk := range c.chunks {
		if chunk.Dirty {
			stats.Dirty++
		}
	}
	return stats
}

// Close saves every modified chunk, disposes all meshes and abandons outstanding reads.
func (c *Cache) Close(ctx context.Context) error {
	err := c.SaveAllModified(ctx)

	for _, chunk := range c.chunks {
		c.disposeMesh(chunk)
	}
	c.cancel()
	return err
}

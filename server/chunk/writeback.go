// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package chunk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/terrain/compressed"
	"github.com/SoftbearStudios/hexvoxel/server/world"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// writeQueue is the set of chunks waiting to be saved.
// A chunk has at most one write in flight.
type writeQueue struct {
	pending  map[world.ChunkCoord]struct{}
	inflight map[world.ChunkCoord]struct{}
	results  chan writeResult

	// Failures since the last success, per chunk.
	failures      map[world.ChunkCoord]int
	totalFailures int
	retries       map[world.ChunkCoord]*retry

	// Save all requests that are waiting for writes.
	saves []*saveRequest
}

// saveRequest finishes once every chunk it waits for has had its latest
// version saved or a save fail.
type saveRequest struct {
	waiting map[world.ChunkCoord]struct{}
	errs    []error
	done    func(error)
}

type writeResult struct {
	coord   world.ChunkCoord
	version uint64
	err     error
}

// retry delays the next save of a chunk whose saves keep failing.
type retry struct {
	backOff backoff.BackOff
	at      time.Time
}

func newWriteQueue() writeQueue {
	return writeQueue{
		pending:  make(map[world.ChunkCoord]struct{}),
		inflight: make(map[world.ChunkCoord]struct{}),
		results:  make(chan writeResult, 16),
		failures: make(map[world.ChunkCoord]int),
		retries:  make(map[world.ChunkCoord]*retry),
	}
}

func (q *writeQueue) enqueue(coord world.ChunkCoord) {
	q.pending[coord] = struct{}{}
}

// Failures returns how many consecutive saves of a chunk failed.
func (c *Cache) Failures(coord world.ChunkCoord) int {
	return c.writes.failures[coord]
}

// Flush starts saving every queued chunk that is not already being saved.
// It does not wait for the saves to finish.
func (c *Cache) Flush() {
	for coord := range c.writes.pending {
		c.flushChunk(coord, false)
	}
}

// flushChunk starts saving a queued chunk. Chunks that are no longer modified
// leave the queue. Chunks being saved, or waiting for a retry unless force is
// set, stay queued.
func (c *Cache) flushChunk(coord world.ChunkCoord, force bool) {
	if _, ok := c.writes.pending[coord]; !ok {
		return
	}
	if _, ok := c.writes.inflight[coord]; ok {
		return
	}
	if r, ok := c.writes.retries[coord]; ok && !force && c.now().Before(r.at) {
		return
	}

	chunk := c.lookup(coord)
	if chunk == nil || !chunk.Modified {
		delete(c.writes.pending, coord)
		return
	}

	record := db.NewChunk(c.worldID, coord, compressed.Encode(chunk.Blocks[:]))
	version := chunk.version

	delete(c.writes.pending, coord)
	c.writes.inflight[coord] = struct{}{}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.storeTimeout)
		defer cancel()

		err := c.database.UpdateChunk(ctx, record)

		select {
		case c.writes.results <- writeResult{coord: coord, version: version, err: err}:
		case <-c.ctx.Done():
		}
	}()
}

// lookup finds a chunk that is loaded or waiting for its final save.
func (c *Cache) lookup(coord world.ChunkCoord) *Chunk {
	if chunk, ok := c.chunks[coord]; ok {
		return chunk
	}
	return c.unloading[coord]
}

// drainWrites processes every finished save without blocking.
func (c *Cache) drainWrites() {
	for {
		select {
		case result := <-c.writes.results:
			c.completeWrite(result)
		default:
			return
		}
	}
}

func (c *Cache) completeWrite(result writeResult) {
	c.recordWrite(result)
	c.progressSaves(result)
}

func (c *Cache) recordWrite(result writeResult) {
	coord := result.coord
	delete(c.writes.inflight, coord)
	chunk := c.lookup(coord)

	if result.err != nil {
		c.writes.failures[coord]++
		c.writes.totalFailures++
		c.writes.enqueue(coord)

		logger := c.logger.WithError(result.err).WithFields(logrus.Fields{
			"chunk":    coord,
			"failures": c.writes.failures[coord],
		})

		if c.newBackoff != nil {
			r, ok := c.writes.retries[coord]
			if !ok {
				r = &retry{backOff: c.newBackoff()}
				c.writes.retries[coord] = r
			}
			delay := r.backOff.NextBackOff()
			if delay == backoff.Stop {
				// Unsaved edits are never dropped, start over.
				r.backOff.Reset()
				delay = r.backOff.NextBackOff()
				if delay == backoff.Stop {
					delay = 0
				}
			}
			r.at = c.now().Add(delay)
			logger = logger.WithField("retryIn", delay)
		}

		logger.Warn("could not save chunk")
		return
	}

	delete(c.writes.failures, coord)
	delete(c.writes.retries, coord)

	if chunk == nil || chunk.version != result.version {
		// Edited again while saving; the newer version is still queued.
		return
	}
	chunk.Modified = false

	if _, ok := c.unloading[coord]; ok {
		delete(c.unloading, coord)
	}
}

// SaveAll starts saving every modified chunk, ignoring retry delays, and returns
// without waiting. done is called from Update, SaveAllModified or SaveAll itself
// once the saves have finished. Chunks that fail to save stay queued.
func (c *Cache) SaveAll(done func(error)) {
	c.startSave(done)
}

// startSave is SaveAll that returns the request, or nil if done was already called.
func (c *Cache) startSave(done func(error)) *saveRequest {
	c.drainWrites()

	for coord, chunk := range c.chunks {
		if chunk.Modified {
			c.writes.enqueue(coord)
		}
	}
	for coord := range c.unloading {
		c.writes.enqueue(coord)
	}
	for coord := range c.writes.pending {
		c.flushChunk(coord, true)
	}

	// Writes that were already in flight may be of an older version, so they are
	// waited for and flushed again.
	save := &saveRequest{waiting: make(map[world.ChunkCoord]struct{}, len(c.writes.inflight)), done: done}
	for coord := range c.writes.inflight {
		save.waiting[coord] = struct{}{}
	}

	if len(save.waiting) == 0 {
		done(nil)
		return nil
	}
	c.writes.saves = append(c.writes.saves, save)
	return save
}

// progressSaves advances save all requests after a write finished.
func (c *Cache) progressSaves(result writeResult) {
	if len(c.writes.saves) == 0 {
		return
	}

	var waiting bool
	for _, save := range c.writes.saves {
		if _, ok := save.waiting[result.coord]; ok {
			waiting = true
			break
		}
	}
	if !waiting {
		return
	}

	if result.err == nil {
		c.flushChunk(result.coord, true)
	}
	_, resaving := c.writes.inflight[result.coord]

	remaining := c.writes.saves[:0]
	var finished []*saveRequest
	for _, save := range c.writes.saves {
		if _, ok := save.waiting[result.coord]; ok && !resaving {
			delete(save.waiting, result.coord)
			if result.err != nil {
				save.errs = append(save.errs, fmt.Errorf("%s: %w", result.coord, result.err))
			}
		}
		if len(save.waiting) == 0 {
			finished = append(finished, save)
		} else {
			remaining = append(remaining, save)
		}
	}
	for i := len(remaining); i < len(c.writes.saves); i++ {
		c.writes.saves[i] = nil
	}
	c.writes.saves = remaining

	for _, save := range finished {
		save.done(saveError(save.errs))
	}
}

func saveError(errs []error) error {
	if len(errs) > 0 {
		return fmt.Errorf("could not save %d chunks: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// SaveAllModified is SaveAll that waits for the saves to finish or ctx to end.
func (c *Cache) SaveAllModified(ctx context.Context) error {
	var (
		finished bool
		result   error
	)
	save := c.startSave(func(err error) {
		finished = true
		result = err
	})

	for !finished {
		select {
		case write := <-c.writes.results:
			c.completeWrite(write)
		case <-ctx.Done():
			c.abandonSave(save)
			return ctx.Err()
		}
	}
	return result
}

// abandonSave forgets a save all request without calling it.
func (c *Cache) abandonSave(save *saveRequest) {
	for i, s := range c.writes.saves {
		if s == save {
			c.writes.saves = append(c.writes.saves[:i], c.writes.saves[i+1:]...)
			return
		}
	}
}

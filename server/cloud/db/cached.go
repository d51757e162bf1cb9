// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package db

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const chunkCacheTTL = 10 * time.Minute

// Cached is a Database that keeps recently read or written chunk records in memory,
// so walking back into an area does not go back to the store.
// Every other record passes straight through.
type Cached struct {
	Database
	chunks *ristretto.Cache[string, Chunk]
}

// NewCached wraps a Database with a chunk record cache of about maxBytes.
func NewCached(database Database, maxBytes int64) (*Cached, error) {
	cache, err := ristretto.NewCache[string, Chunk](&ristretto.Config[string, Chunk]{
		NumCounters: maxBytes / 100, // ~10x the number of cached records
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cached{Database: database, chunks: cache}, nil
}

func chunkCost(chunk Chunk) int64 {
	return int64(len(chunk.Key) + len(chunk.WorldID) + len(chunk.Data) + 64)
}

func (c *Cached) set(chunk Chunk) {
	// Delete first so a dropped Set can never leave an older record visible.
	c.chunks.Del(chunk.Key)
	c.chunks.SetWithTTL(chunk.Key, chunk, chunkCost(chunk), chunkCacheTTL)
	c.chunks.Wait()
}

func (c *Cached) ReadChunk(ctx context.Context, key string) (Chunk, bool, error) {
	if chunk, ok := c.chunks.Get(key); ok {
		chunk.Data = append([]byte(nil), chunk.Data...)
		return chunk, true, nil
	}

	chunk, ok, err := c.Database.ReadChunk(ctx, key)
	if err == nil && ok {
		cached := chunk
		cached.Data = append([]byte(nil), chunk.Data...)
		c.set(cached)
	}
	return chunk, ok, err
}

func (c *Cached) UpdateChunk(ctx context.Context, chunk Chunk) error {
	if err := c.Database.UpdateChunk(ctx, chunk); err != nil {
		// The store may or may not have the new record.
		c.chunks.Del(chunk.Key)
		return err
	}

	chunk.Data = append([]byte(nil), chunk.Data...)
	c.set(chunk)
	return nil
}

func (c *Cached) DeleteChunk(ctx context.Context, key string) error {
	c.chunks.Del(key)
	return c.Database.DeleteChunk(ctx, key)
}

// Close releases the cache. The wrapped Database is not closed.
func (c *Cached) Close() {
	c.chunks.Close()
}

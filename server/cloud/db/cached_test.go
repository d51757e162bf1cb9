// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package db

import (
	"bytes"
	"context"
	"testing"

	"github.com/SoftbearStudios/hexvoxel/server/world"
)

// countingDatabase counts chunk reads that reach the store.
type countingDatabase struct {
	*MemoryDatabase
	reads int
}

func (c *countingDatabase) ReadChunk(ctx context.Context, key string) (Chunk, bool, error) {
	c.reads++
	return c.MemoryDatabase.ReadChunk(ctx, key)
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingDatabase{MemoryDatabase: NewMemoryDatabase()}

	cached, err := NewCached(inner, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	defer cached.Close()

	key := world.ChunkCoord{Q: 4, R: 2}.Key("w")
	if err = cached.UpdateChunk(ctx, NewChunk("w", world.ChunkCoord{Q: 4, R: 2}, []byte{1, 10})); err != nil {
		t.Fatal(err)
	}

	// Written records are visible through the store and the cache
	stored, ok, _ := inner.MemoryDatabase.ReadChunk(ctx, key)
	if !ok || !bytes.Equal(stored.Data, []byte{1, 10}) {
		t.Error("UpdateChunk did not write through")
	}

	for i := 0; i < 3; i++ {
		chunk, ok, err := cached.ReadChunk(ctx, key)
		if err != nil || !ok || !bytes.Equal(chunk.Data, []byte{1, 10}) {
			t.Fatal("ReadChunk expected cached record got", ok, err)
		}
	}

	// Overwrites replace the cached record
	_ = cached.UpdateChunk(ctx, NewChunk("w", world.ChunkCoord{Q: 4, R: 2}, []byte{2, 10}))
	chunk, _, _ := cached.ReadChunk(ctx, key)
	if !bytes.Equal(chunk.Data, []byte{2, 10}) {
		t.Error("ReadChunk after overwrite got", chunk.Data)
	}

	_ = cached.DeleteChunk(ctx, key)
	if _, ok, _ = cached.ReadChunk(ctx, key); ok {
		t.Error("ReadChunk after delete expected not found")
	}

	// Misses are not cached
	if _, ok, _ = cached.ReadChunk(ctx, "w:9:9"); ok {
		t.Error("ReadChunk(missing) expected not found")
	}
	reads := inner.reads
	_, _, _ = cached.ReadChunk(ctx, "w:9:9")
	if inner.reads != reads+1 {
		t.Error("miss was cached")
	}
}

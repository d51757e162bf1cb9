// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package chunk

import (
	"sort"

	"github.com/SoftbearStudios/hexvoxel/server/world"
)

// loadJob is a chunk waiting for its fetch to be issued.
type loadJob struct {
	coord world.ChunkCoord
	dist  int
	lod   bool
	seq   uint64 // insertion order, breaks distance ties
}

// loadQueue is sorted ascending by distance, then insertion order.
type loadQueue []*loadJob

func (queue loadQueue) sort() {
	sort.Slice(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if a.dist != b.dist {
			return a.dist < b.dist
		}
		return a.seq < b.seq
	})
}

func (queue *loadQueue) pop() *loadJob {
	q := *queue
	job := q[0]
	q[0] = nil
	*queue = q[1:]
	return job
}

// retain keeps only the jobs for which keep returns true, preserving order.
func (queue *loadQueue) retain(keep func(job *loadJob) bool) {
	q := *queue
	n := 0
	for _, job := range q {
		if keep(job) {
			q[n] = job
			n++
		}
	}
	for i := n; i < len(q); i++ {
		q[i] = nil
	}
	*queue = q[:n]
}

// fetch is an issued load. Its fields below ready are written by the fetching
// goroutine before ready is closed, and read by the owner only afterwards.
type fetch struct {
	coord world.ChunkCoord
	dist  int
	lod   bool

	// cancelled fetches are discarded when they complete.
	cancelled bool

	ready    chan struct{}
	blocks   []byte
	restored bool // blocks came from the store rather than the generator
}

func newFetch(job *loadJob) *fetch {
	return &fetch{
		coord: job.coord,
		dist:  job.dist,
		lod:   job.lod,
		ready: make(chan struct{}),
	}
}

// done reports whether the fetch completed without blocking.
func (f *fetch) done() bool {
	select {
	case <-f.ready:
		return true
	default:
		return false
	}
}

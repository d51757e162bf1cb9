// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package chunk

import (
	"testing"

	"github.com/SoftbearStudios/hexvoxel/server/world"
)

func TestLoadQueue(t *testing.T) {
	var queue loadQueue
	for i, dist := range []int{3, 1, 2, 1, 0, 3} {
		queue = append(queue, &loadJob{coord: world.ChunkCoord{Q: i}, dist: dist, seq: uint64(i)})
	}
	queue.sort()

	queue.retain(func(job *loadJob) bool {
		return job.coord.Q != 2
	})

	var got []int
	for len(queue) > 0 {
		got = append(got, queue.pop().coord.Q)
	}

	expected := []int{4, 1, 3, 0, 5}
	if len(got) != len(expected) {
		t.Fatalf("expected %v got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("expected %v got %v", expected, got)
		}
	}
}

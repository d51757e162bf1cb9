// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package terrain

// Surface returns the highest solid block of a column of a chunk's blocks.
// ok is false if the column is all air.
func Surface(blocks []byte, localQ, localR int) (y int, block Block, ok bool) {
	column := blocks[Index(localQ, localR, 0) : Index(localQ, localR, 0)+Height]
	for y = Height - 1; y >= 0; y-- {
		if column[y] != Air {
			return y, column[y], true
		}
	}
	return 0, Air, false
}

// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package terrain

// Block is the id of a block. Zero is air.
type Block = byte

const (
	Air Block = iota
	Stone
	Dirt
	Grass
	Sand
	Water
	Snow
	Bedrock
)

// Levels used by the default generator, in blocks from the bottom of a column.
const (
	SeaLevel   = 20
	SandLevel  = SeaLevel + 2
	GrassLevel = SandLevel + 20
	SnowLevel  = Height - 8
)

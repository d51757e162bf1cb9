// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package noise

import (
	"github.com/SoftbearStudios/hexvoxel/server/terrain"
	"github.com/SoftbearStudios/hexvoxel/server/world"
	"github.com/aquilax/go-perlin"
)

const (
	frequency     = 0.02
	zoneFrequency = 0.003
)

// Generator generates chunks from perlin noise heightmaps.
type Generator struct {
	// Land heightmap noise
	landHi *perlin.Perlin // for smaller/higher frequency details
	landLo *perlin.Perlin // for larger/lower frequency details

	// Sea floor noise
	waterLo *perlin.Perlin
}

// New creates a new Generator with a seed.
func New(seed int64) *Generator {
	return &Generator{
		landHi:  perlin.NewPerlin(1.5, 2.0, 4, seed),
		landLo:  perlin.NewPerlin(2.5, 3.0, 4, seed+1),
		waterLo: perlin.NewPerlin(2, 3.0, 3, seed+2),
	}
}

// Generate implements terrain.Source.Generate.
func (g *Generator) Generate(coord world.ChunkCoord) []byte {
	blocks := make([]byte, terrain.Volume)
	origin := coord.Origin()

	for i := 0; i < terrain.Width; i++ {
		for j := 0; j < terrain.Width; j++ {
			column := origin.Add(world.AxialCoord{Q: i, R: j})
			g.fillColumn(blocks, i, j, g.height(column))
		}
	}

	return blocks
}

// height samples the surface height of a column in blocks.
func (g *Generator) height(column world.AxialCoord) int {
	center := column.Center(0)
	x := float64(center.X)
	z := float64(center.Z)

	h := g.landHi.Noise2D(x*frequency, z*frequency)*24 + terrain.SandLevel

	// Zone is very low frequency
	zone := g.landLo.Noise2D(x*zoneFrequency, z*zoneFrequency)*2.0 + 0.6
	if zone > 1 {
		zone = 1
	}
	h *= zone

	depthFloor := clamp((g.waterLo.Noise2D(x*zoneFrequency, z*zoneFrequency)+0.3)*4, 0, 1) * (terrain.SeaLevel - 6)

	return clampToHeight(max(h, depthFloor))
}

func (g *Generator) fillColumn(blocks []byte, i, j, height int) {
	for y := 0; y < terrain.Height; y++ {
		var block terrain.Block

		switch {
		case y == 0:
			block = terrain.Bedrock
		case y < height-3:
			block = terrain.Stone
		case y < height:
			switch {
			case height <= terrain.SandLevel:
				block = terrain.Sand
			case y == height-1 && height >= terrain.SnowLevel:
				block = terrain.Snow
			case y == height-1 && height < terrain.GrassLevel:
				block = terrain.Grass
			case height >= terrain.GrassLevel:
				block = terrain.Stone
			default:
				block = terrain.Dirt
			}
		case y < terrain.SeaLevel:
			block = terrain.Water
		default:
			block = terrain.Air
		}

		blocks[terrain.Index(i, j, y)] = block
	}
}

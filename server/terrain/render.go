// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package terrain

import (
	"fmt"
	"image"
	"image/color"

	"github.com/SoftbearStudios/hexvoxel/server/world"
)

type ColorVec [3]float32

var blockColors = map[Block]ColorVec{
	Stone:   RGB(105, 110, 115),
	Dirt:    RGB(120, 85, 50),
	Grass:   RGB(90, 180, 30),
	Sand:    RGB(194, 178, 128),
	Water:   RGB(0, 75, 130),
	Snow:    Gray(220),
	Bedrock: Gray(40),
}

// Render draws a top down map of the chunks within radius of center, one pixel per
// column, shaded by height. Columns are drawn in axial rows so the map is sheared.
func Render(source Source, center world.ChunkCoord, radius int) image.Image {
	size := (2*radius + 1) * Width
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	for cq := -radius; cq <= radius; cq++ {
		for cr := -radius; cr <= radius; cr++ {
			coord := center.Add(world.ChunkCoord{Q: cq, R: cr})
			blocks := source.Generate(coord)
			if len(blocks) != Volume {
				continue
			}

			for lq := 0; lq < Width; lq++ {
				for lr := 0; lr < Width; lr++ {
					y, block, ok := Surface(blocks, lq, lr)
					if !ok {
						continue
					}

					c := blockColors[block].Mul(0.5 + 0.5*float32(y)/Height)
					img.Set((cq+radius)*Width+lq, (cr+radius)*Width+lr, c.Color())
				}
			}
		}
	}

	return img
}

func Gray(v byte) ColorVec {
	return RGB(v, v, v)
}

func RGB(r, g, b byte) ColorVec {
	const factor = 1.0 / 255
	return ColorVec{float32(r) * factor, float32(g) * factor, float32(b) * factor}
}

func (vec ColorVec) String() string {
	return fmt.Sprintf("vec4(%.3f, %.3f, %.3f, 1.0)", vec[0], vec[1], vec[2])
}

func (vec ColorVec) Mul(v float32) ColorVec {
	vec[0] *= v
	vec[1] *= v
	vec[2] *= v
	return vec
}

func (vec ColorVec) Color() color.RGBA {
	return color.RGBA{R: floatToByte(vec[0]), G: floatToByte(vec[1]), B: floatToByte(vec[2]), A: 255}
}

func floatToByte(f float32) byte {
	if f < 0 {
		return 0
	}
	if f > 1.0 {
		return 255
	}
	return byte(f * 255)
}

// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"image/png"
	"log"
	"os"
	"runtime/pprof"

	"github.com/SoftbearStudios/hexvoxel/server/terrain"
	"github.com/SoftbearStudios/hexvoxel/server/terrain/noise"
	"github.com/SoftbearStudios/hexvoxel/server/world"
	"github.com/spf13/pflag"
)

func main() {
	var (
		cpuProfile string
		seed       int64
		q, r       int
		radius     int
		out        string
	)
	pflag.StringVar(&cpuProfile, "cpuprofile", "", "write cpu profile to `file`")
	pflag.Int64Var(&seed, "seed", 0, "world seed")
	pflag.IntVar(&q, "q", 0, "center chunk q")
	pflag.IntVar(&r, "r", 0, "center chunk r")
	pflag.IntVar(&radius, "radius", 8, "chunks drawn around the center")
	pflag.StringVarP(&out, "out", "o", "out.png", "output png")
	pflag.Parse()

	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	img := terrain.Render(noise.New(seed), world.ChunkCoord{Q: q, R: r}, radius)

	file, err := os.Create(out)
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	if err = png.Encode(file, img); err != nil {
		log.Fatal(err)
	}
}

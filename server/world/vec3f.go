// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"github.com/chewxy/math32"
)

// HexSize is the distance in meters from the center of a column to any of its corners.
const HexSize = 1.0

// Vec3f is a position in world space. Y is up.
type Vec3f struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Rotation is a viewer's orientation in radians.
type Rotation struct {
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

func (vec Vec3f) Add(otherVec Vec3f) Vec3f {
	vec.X += otherVec.X
	vec.Y += otherVec.Y
	vec.Z += otherVec.Z
	return vec
}

func (vec Vec3f) Sub(otherVec Vec3f) Vec3f {
	vec.X -= otherVec.X
	vec.Y -= otherVec.Y
	vec.Z -= otherVec.Z
	return vec
}

func (vec Vec3f) Mul(factor float32) Vec3f {
	vec.X *= factor
	vec.Y *= factor
	vec.Z *= factor
	return vec
}

func (vec Vec3f) Length() float32 {
	return math32.Sqrt(vec.X*vec.X + vec.Y*vec.Y + vec.Z*vec.Z)
}

// Axial returns the column containing the horizontal (X, Z) component of the position.
// Columns are pointy-top hexagons of HexSize.
func (vec Vec3f) Axial() AxialCoord {
	q := (math32.Sqrt(3)/3*vec.X - vec.Z/3) / HexSize
	r := (2.0 / 3 * vec.Z) / HexSize
	return roundAxial(q, r)
}

// Center returns the world space center of the column at height y.
func (coord AxialCoord) Center(y float32) Vec3f {
	q, r := float32(coord.Q), float32(coord.R)
	return Vec3f{
		X: HexSize * math32.Sqrt(3) * (q + r/2),
		Y: y,
		Z: HexSize * 1.5 * r,
	}
}

// roundAxial rounds fractional axial coordinates via cube coordinates.
func roundAxial(q, r float32) AxialCoord {
	s := -q - r

	rq := round(q)
	rr := round(r)
	rs := round(s)

	dq := math32.Abs(rq - q)
	dr := math32.Abs(rr - r)
	ds := math32.Abs(rs - s)

	if dq > dr && dq > ds {
		rq = -rr - rs
	} else if dr > ds {
		rr = -rq - rs
	}

	return AxialCoord{Q: int(rq), R: int(rr)}
}

// round rounds half away from zero.
func round(f float32) float32 {
	if f < 0 {
		return -math32.Floor(-f + 0.5)
	}
	return math32.Floor(f + 0.5)
}

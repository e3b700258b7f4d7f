// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation derives a static attitude estimate from one reading.
package orientation

import (
	"math"

	"github.com/relabs-tech/spatial/internal/vector"
)

// Pose is roll, pitch and heading in degrees.
type Pose struct {
	Roll    float64 `json:"roll"`
	Pitch   float64 `json:"pitch"`
	Heading float64 `json:"heading"`
}

// FromAccel computes roll and pitch from gravity alone. Heading is 0.
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func FromAccel(acc vector.Vector3[float64]) Pose {
	return Pose{
		Roll:  degrees(math.Atan2(acc.Y, acc.Z)),
		Pitch: degrees(math.Atan2(-acc.X, math.Hypot(acc.Y, acc.Z))),
	}
}

// FromAccelMag adds a tilt-compensated magnetic heading in [0, 360). A zero
// field leaves the heading at 0.
func FromAccelMag(acc, mag vector.Vector3[float64]) Pose {
	p := FromAccel(acc)
	if vector.Norm(mag) == 0 {
		return p
	}

	roll := radians(p.Roll)
	pitch := radians(p.Pitch)
	sr, cr := math.Sincos(roll)
	sp, cp := math.Sincos(pitch)

	// rotate the field back into the horizontal plane
	xh := mag.X*cp + mag.Y*sr*sp + mag.Z*cr*sp
	yh := mag.Y*cr - mag.Z*sr

	h := degrees(math.Atan2(-yh, xh))
	if h < 0 {
		h += 360
	}
	p.Heading = h
	return p
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
func radians(deg float64) float64 { return deg * math.Pi / 180 }

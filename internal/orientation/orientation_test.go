// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/spatial/internal/vector"
)

func TestFromAccelLevel(t *testing.T) {
	p := FromAccel(vector.New(0.0, 0.0, 1.0))
	assert.InDelta(t, 0, p.Roll, 1e-9)
	assert.InDelta(t, 0, p.Pitch, 1e-9)
}

func TestFromAccelTilted(t *testing.T) {
	p := FromAccel(vector.New(0.0, 1.0, 1.0))
	assert.InDelta(t, 45, p.Roll, 1e-9)

	p = FromAccel(vector.New(-1.0, 0.0, 0.0))
	assert.InDelta(t, 90, p.Pitch, 1e-9)
}

func TestFromAccelMagHeading(t *testing.T) {
	level := vector.New(0.0, 0.0, 1.0)
	cases := []struct {
		name string
		mag  vector.Vector3[float64]
		want float64
	}{
		{"north", vector.New(0.2, 0.0, 0.4), 0},
		{"east", vector.New(0.0, -0.2, 0.4), 90},
		{"south", vector.New(-0.2, 0.0, 0.4), 180},
		{"west", vector.New(0.0, 0.2, 0.4), 270},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.want, FromAccelMag(level, c.mag).Heading, 1e-9)
		})
	}
}

func TestFromAccelMagZeroField(t *testing.T) {
	p := FromAccelMag(vector.New(0.0, 0.0, 1.0), vector.Vector3[float64]{})
	assert.Equal(t, 0.0, p.Heading)
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package vector

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueIsZeroVector(t *testing.T) {
	var v Vector3[float64]
	assert.True(t, v.Equal(New(0.0, 0.0, 0.0)))
	assert.Equal(t, [3]float64{0, 0, 0}, v.Components())
}

func TestAddSubInverse(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector3[float64]
	}{
		{"integers", New(1.0, 2.0, 3.0), New(4.0, 5.0, 6.0)},
		{"negative", New(-1.5, 0.25, 9.75), New(3.125, -7.5, 0.0)},
		{"fractions", New(0.1, 0.2, 0.3), New(0.7, 1e-9, 123.456)},
		{"large", New(1e12, -1e12, 3.0), New(-5e11, 2e11, 1e-3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Add(tt.b).Sub(tt.b)
			assert.InDelta(t, tt.a.X, got.X, 1e-6)
			assert.InDelta(t, tt.a.Y, got.Y, 1e-6)
			assert.InDelta(t, tt.a.Z, got.Z, 1e-6)
		})
	}
}

func TestAddSubInverseIntegers(t *testing.T) {
	a := New[int16](100, -200, 300)
	b := New[int16](7, 8, -9)
	assert.Equal(t, a, a.Add(b).Sub(b))
}

func TestOperatorsLeaveOperandsUnchanged(t *testing.T) {
	a := New(1.0, 2.0, 3.0)
	b := New(2.0, 4.0, 8.0)

	_ = a.Add(b)
	_ = a.Sub(b)
	_ = a.Mul(b)
	_ = a.Scale(3)
	_, err := a.Div(b)
	require.NoError(t, err)

	assert.Equal(t, New(1.0, 2.0, 3.0), a)
	assert.Equal(t, New(2.0, 4.0, 8.0), b)
}

func TestAssignFormsMutateReceiver(t *testing.T) {
	v := New(1.0, 2.0, 3.0)

	ret := v.AddAssign(New(1.0, 1.0, 1.0))
	assert.Same(t, &v, ret)
	assert.Equal(t, New(2.0, 3.0, 4.0), v)

	v.SubAssign(New(2.0, 2.0, 2.0)).MulAssign(New(2.0, 3.0, 4.0)).ScaleAssign(2)
	assert.Equal(t, New(0.0, 6.0, 16.0), v)

	v = New(8.0, 6.0, 16.0)
	ret, err := v.DivAssign(New(2.0, 3.0, 4.0))
	require.NoError(t, err)
	assert.Same(t, &v, ret)
	assert.Equal(t, New(4.0, 2.0, 4.0), v)
}

func TestMulDivInverse(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector3[float64]
	}{
		{"simple", New(1.0, 2.0, 3.0), New(4.0, 5.0, 6.0)},
		{"negative divisor", New(-3.0, 0.0, 2.5), New(-1.0, 0.5, -8.0)},
		{"small", New(1e-6, 2e-6, 3e-6), New(1e-3, 1e3, 7.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Mul(tt.b).Div(tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.a.X, got.X, 1e-9)
			assert.InDelta(t, tt.a.Y, got.Y, 1e-9)
			assert.InDelta(t, tt.a.Z, got.Z, 1e-9)
		})
	}
}

func TestDivideByZero(t *testing.T) {
	a := New(1.0, 2.0, 3.0)

	for _, divisor := range []Vector3[float64]{
		New(0.0, 1.0, 1.0),
		New(1.0, 0.0, 1.0),
		New(1.0, 1.0, 0.0),
		{},
	} {
		got, err := a.Div(divisor)
		assert.ErrorIs(t, err, ErrDivideByZero)
		assert.Equal(t, Vector3[float64]{}, got)

		v := a
		_, err = v.DivAssign(divisor)
		assert.ErrorIs(t, err, ErrDivideByZero)
		assert.Equal(t, a, v, "receiver must be unchanged")
	}

	i := New(10, 20, 30)
	_, err := i.Div(New(1, 0, 1))
	assert.ErrorIs(t, err, ErrDivideByZero)
}

func TestEquality(t *testing.T) {
	a := New(1.0, 2.0, 3.0)
	b := New(1.0, 2.0, 3.0)
	c := New(1.0, 2.0, 3.0000001)

	assert.True(t, a.Equal(a), "reflexive")
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a), "symmetric")
	assert.False(t, a.Equal(c), "no tolerance")
	assert.False(t, c.Equal(a))
	assert.True(t, a.NotEqual(c))
	assert.False(t, a.NotEqual(b))

	nan := New(math.NaN(), 0.0, 0.0)
	assert.False(t, nan.Equal(nan), "NaN components follow float semantics")
}

func TestConversions(t *testing.T) {
	raw := New[int16](3, 4, 0)
	assert.Equal(t, New(3.0, 4.0, 0.0), Float64(raw))
	assert.InDelta(t, 5.0, Norm(raw), 1e-12)
	assert.Equal(t, New(1.5, 2.5, 3.5), FromArray([3]float64{1.5, 2.5, 3.5}))
	assert.Equal(t, "(1, 2, 3)", New(1, 2, 3).String())
}

func TestJSONFieldNames(t *testing.T) {
	b, err := json.Marshal(New(1.0, -2.0, 0.5))
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1,"y":-2,"z":0.5}`, string(b))
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package vector provides a small fixed-size 3D value type used for
// accelerometer, gyroscope and magnetometer readings.
package vector

import (
	"errors"
	"fmt"
	"math"
)

// ErrDivideByZero is returned by Div and DivAssign when any component of the
// divisor is zero.
var ErrDivideByZero = errors.New("vector: division by zero component")

// Number is the set of scalar types a Vector3 can hold.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Vector3 is a plain 3-component value. The zero value is the zero vector.
//
// Add, Sub, Mul, Div and Scale return a new vector and never modify their
// operands. The *Assign forms modify the receiver in place and return it.
type Vector3[T Number] struct {
	X T `json:"x"`
	Y T `json:"y"`
	Z T `json:"z"`
}

// New builds a vector from its three components.
func New[T Number](x, y, z T) Vector3[T] {
	return Vector3[T]{X: x, Y: y, Z: z}
}

// Add returns v + o.
func (v Vector3[T]) Add(o Vector3[T]) Vector3[T] {
	return Vector3[T]{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vector3[T]) Sub(o Vector3[T]) Vector3[T] {
	return Vector3[T]{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Mul returns the componentwise product of v and o.
func (v Vector3[T]) Mul(o Vector3[T]) Vector3[T] {
	return Vector3[T]{X: v.X * o.X, Y: v.Y * o.Y, Z: v.Z * o.Z}
}

// Scale returns v with every component multiplied by s.
func (v Vector3[T]) Scale(s T) Vector3[T] {
	return Vector3[T]{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Div returns the componentwise quotient of v and o. If any component of o
// is zero it returns the zero vector and ErrDivideByZero.
func (v Vector3[T]) Div(o Vector3[T]) (Vector3[T], error) {
	if o.hasZero() {
		return Vector3[T]{}, ErrDivideByZero
	}
	return Vector3[T]{X: v.X / o.X, Y: v.Y / o.Y, Z: v.Z / o.Z}, nil
}

// AddAssign adds o to v in place.
func (v *Vector3[T]) AddAssign(o Vector3[T]) *Vector3[T] {
	v.X += o.X
	v.Y += o.Y
	v.Z += o.Z
	return v
}

// SubAssign subtracts o from v in place.
func (v *Vector3[T]) SubAssign(o Vector3[T]) *Vector3[T] {
	v.X -= o.X
	v.Y -= o.Y
	v.Z -= o.Z
	return v
}

// MulAssign multiplies v by o componentwise in place.
func (v *Vector3[T]) MulAssign(o Vector3[T]) *Vector3[T] {
	v.X *= o.X
	v.Y *= o.Y
	v.Z *= o.Z
	return v
}

// ScaleAssign multiplies every component of v by s in place.
func (v *Vector3[T]) ScaleAssign(s T) *Vector3[T] {
	v.X *= s
	v.Y *= s
	v.Z *= s
	return v
}

// DivAssign divides v by o componentwise in place. On ErrDivideByZero v is
// left untouched.
func (v *Vector3[T]) DivAssign(o Vector3[T]) (*Vector3[T], error) {
	if o.hasZero() {
		return v, ErrDivideByZero
	}
	v.X /= o.X
	v.Y /= o.Y
	v.Z /= o.Z
	return v, nil
}

// Equal reports exact componentwise equality.
func (v Vector3[T]) Equal(o Vector3[T]) bool {
	return v.X == o.X && v.Y == o.Y && v.Z == o.Z
}

// NotEqual is the negation of Equal.
func (v Vector3[T]) NotEqual(o Vector3[T]) bool {
	return !v.Equal(o)
}

// Components returns the vector as an array in X, Y, Z order.
func (v Vector3[T]) Components() [3]T {
	return [3]T{v.X, v.Y, v.Z}
}

func (v Vector3[T]) String() string {
	return fmt.Sprintf("(%v, %v, %v)", v.X, v.Y, v.Z)
}

func (v Vector3[T]) hasZero() bool {
	var zero T
	return v.X == zero || v.Y == zero || v.Z == zero
}

// FromArray builds a vector from a 3-element array, the layout sensor SDKs
// usually deliver readings in.
func FromArray[T Number](a [3]T) Vector3[T] {
	return Vector3[T]{X: a[0], Y: a[1], Z: a[2]}
}

// Float64 converts any vector to a float64 vector.
func Float64[T Number](v Vector3[T]) Vector3[float64] {
	return Vector3[float64]{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// Norm returns the Euclidean length of v.
func Norm[T Number](v Vector3[T]) float64 {
	f := Float64(v)
	return math.Sqrt(f.X*f.X + f.Y*f.Y + f.Z*f.Z)
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/curvnet/internal/tensor"
)

// Type aliases for public API

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Storage is the growable buffer shared by a tensor and its views.
type Storage = tensor.Storage

// Tensor is a strided float64 view over a Storage.
//
// Example:
//
//	x := tensor.Zeros(tensor.Shape{2, 3})
//	x.Set(1.5, 0, 2)
//	col := x.Narrow(1, 1, 2) // [2, 1] view
type Tensor = tensor.Tensor

// Zeros creates a zero-filled tensor owning its storage.
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// FromSlice creates a tensor owning a copy of data, laid out row-major.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice(data []float64, shape Shape) *Tensor {
	return tensor.MustFromSlice(data, shape)
}

// Ones returns a shape of the given order with every dimension set to 1.
func Ones(order int) Shape {
	return tensor.Ones(order)
}

// Fill sets every element of t to v.
func Fill(t *Tensor, v float64) { tensor.Fill(t, v) }

// Clear zeroes t.
func Clear(t *Tensor) { tensor.Clear(t) }

// Copy copies src into dst. Shapes must match.
func Copy(dst, src *Tensor) { tensor.Copy(dst, src) }

// Accumulate computes dst += src.
func Accumulate(dst, src *Tensor) { tensor.Accumulate(dst, src) }

// Lincomb computes dst = ka*a + kb*b.
func Lincomb(dst, a *Tensor, ka float64, b *Tensor, kb float64) { tensor.Lincomb(dst, a, ka, b, kb) }

// Apply computes dst = f(src) elementwise.
func Apply(dst, src *Tensor, f func(float64) float64) { tensor.Apply(dst, src, f) }

// Sum returns the sum of all elements.
func Sum(t *Tensor) float64 { return tensor.Sum(t) }

// Dot returns the sum of elementwise products of a and b.
func Dot(a, b *Tensor) float64 { return tensor.Dot(a, b) }

// SquaredDistance returns the sum of squared differences of a and b.
func SquaredDistance(a, b *Tensor) float64 { return tensor.SquaredDistance(a, b) }

// Min returns the smallest element.
func Min(t *Tensor) float64 { return tensor.Min(t) }

// Max returns the largest element.
func Max(t *Tensor) float64 { return tensor.Max(t) }

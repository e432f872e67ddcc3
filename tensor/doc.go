// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the float64 n-dimensional arrays used by curvnet.
//
// # Overview
//
// A Tensor is a strided view over a shared Storage. This package provides:
//   - Owners created with Zeros or FromSlice, resizable in place
//   - Views created with Select, Narrow, Transpose and Reshape, sharing the
//     owner's storage without copying
//   - Elementwise and reduction kernels (Copy, Accumulate, Lincomb, Dot...)
//
// # Basic Usage
//
//	import "github.com/born-ml/curvnet/tensor"
//
//	func main() {
//	    x := tensor.MustFromSlice([]float64{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	    row := x.Select(0, 1)      // view [4, 5, 6]
//	    tensor.Fill(row, 0)        // writes through to x
//	    fmt.Println(tensor.Sum(x)) // 6
//	}
//
// # Views and Resizing
//
// Views never reallocate: resizing a view panics. Owners grow their storage
// in place, so existing views stay valid after a Resize.
package tensor

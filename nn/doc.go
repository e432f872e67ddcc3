// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layered modules of the curvnet engine.
//
// # Overview
//
// Every module exposes three passes over State edges, each holding a value
// (X), a gradient (DX) and a diagonal curvature (DDX):
//   - Forward: out.X from in.X
//   - Backward: accumulate out.DX into in.DX and the parameter gradients
//   - CurvatureBackward: accumulate out.DDX into in.DDX and the parameter
//     curvatures, with the Gauss-Newton approximation
//
// Trainable modules allocate their weights from one shared Parameter buffer,
// updated as a whole by package optim.
//
// This package contains:
//   - Kernels: Linear, Convolution (connection tables), Subsampling, AddC,
//     Diag, Tanh, StdSigmoid, Abs, Power, Threshold, Binarize, RangeLUT,
//     ZeroPad, MirrorPad, CutBorder, MaxSS, Identity
//   - Two-input modules: Diff, Mul
//   - Composition: Replicable, Layers (with branches), Merge, and the
//     FullLayer, ConvolutionLayer and SubsamplingLayer composites
//   - Weight files: Parameter.SaveX / LoadX, LoadFile, SaveTable / LoadTable
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/curvnet/nn"
//	    "github.com/born-ml/curvnet/tensor"
//	)
//
//	func main() {
//	    p := nn.NewParameter()
//	    net := nn.NewLayers("net")
//	    c1, _ := nn.NewConvolutionLayer(p, nn.ConvolutionConfig{
//	        Kernel: [2]int{5, 5},
//	        Table:  nn.FullTable(1, 6),
//	    }, true, "c1")
//	    net.Add(c1)
//	    net.Forget(nn.NewForgetParam(1, 0.5, 42))
//
//	    in := nn.NewBBState(tensor.Shape{1, 32, 32})
//	    out := nn.NewBBState(tensor.Shape{1})
//	    net.Forward(in, out)   // out: [6, 28, 28]
//	    net.Backward(in, out)
//	}
//
// # Logging
//
// Recoverable conditions (unused table inputs, partial weight loads) are
// logged through log/slog. Use SetLogger to redirect them.
package nn

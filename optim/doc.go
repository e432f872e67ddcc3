// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the update rules applied to a curvnet Parameter
// buffer.
//
// # Overview
//
// This package contains:
//   - GradientDescent: SGD with L1/L2 decay, momentum and optional
//     curvature-derived per-element step sizes
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Anneal: step-size schedule driven by the sample count
//   - EstimateCurvature: diagonal Hessian estimation pass
//   - Optimizer interface for custom update rules
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/curvnet/nn"
//	    "github.com/born-ml/curvnet/optim"
//	)
//
//	func main() {
//	    p := nn.NewParameter()
//	    net := buildNet(p)
//
//	    gd, err := optim.NewGradientDescent(optim.Config{
//	        Eta:       0.0001,
//	        Curvature: true,
//	    })
//
//	    // Derive per-element step sizes from the curvature
//	    err = gd.EstimateCurvature(ctx, p, func(i int) error {
//	        fpropBpropBBprop(net, i)
//	        return nil
//	    })
//
//	    // Training loop
//	    for age := 1; age <= n; age++ {
//	        p.ClearDX()
//	        fpropBprop(net, age)
//	        gd.Step(p)
//	        gd.Anneal(age)
//	    }
//	}
package optim

// Package optim implements the update rules applied to a network's
// Parameter buffer after each sample.
//
// This package provides:
//   - Optimizer interface: base interface for all update rules
//   - GradientDescent: stochastic gradient descent with L1/L2 decay, momentum
//     and optional curvature-derived per-element step sizes
//   - Adam: adaptive moment estimation over the same buffer
//   - Anneal: step-size schedule driven by the sample count
//   - EstimateCurvature: diagonal Hessian estimation pass producing the
//     per-element step sizes
//
// Example usage:
//
//	p := nn.NewParameter()
//	net := buildNet(p)
//	gd, _ := optim.NewGradientDescent(optim.Config{Eta: 0.001, Curvature: true})
//
//	_ = gd.EstimateCurvature(ctx, p, func(i int) error {
//	    net.Forward(in, out)
//	    net.Backward(in, out)
//	    net.CurvatureBackward(in, out)
//	    return nil
//	})
//
//	for age := 1; age <= samples; age++ {
//	    p.ClearDX()
//	    net.Forward(in, out)
//	    net.Backward(in, out)
//	    gd.Step(p)
//	    gd.Anneal(age)
//	}
package optim

import (
	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/nn"
)

// ErrInvalidConfig reports an optimizer configuration out of range.
var ErrInvalidConfig = errors.New("optim: invalid configuration")

// Optimizer is the base interface for all update rules.
//
// An Optimizer reads the gradients accumulated in a Parameter buffer and
// updates its values in place. It never clears the gradients: callers do
// that before the next backward sweep.
type Optimizer interface {
	// Step applies one update to every element of p.
	Step(p *nn.Parameter)

	// Eta returns the current global step size.
	Eta() float64

	// SetEta replaces the global step size, for schedules.
	SetEta(eta float64)
}

// Anneal applies the step-size schedule after sample number age (1-based):
// every period samples, eta = eta / (1 + (age/period)·value), with integer
// division of age by period. It reports whether eta changed. A non-positive
// period disables the schedule.
func Anneal(o Optimizer, age, period int, value float64) bool {
	if period <= 0 || (age-1)%period != 0 {
		return false
	}
	from := o.Eta()
	to := from / (1 + float64(age/period)*value)
	if to == from {
		return false
	}
	o.SetEta(to)
	nn.Logger().Info("annealed step size", "age", age, "from", from, "to", to)
	return true
}

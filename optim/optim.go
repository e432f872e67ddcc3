// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"context"

	"github.com/born-ml/curvnet/internal/nn"
	"github.com/born-ml/curvnet/internal/optim"
)

// Optimizer interface defines the common interface for all update rules.
type Optimizer = optim.Optimizer

// ErrInvalidConfig reports an optimizer configuration out of range.
var ErrInvalidConfig = optim.ErrInvalidConfig

// Gradient descent

// GradientDescent is SGD with decay, momentum and curvature scaling.
type GradientDescent = optim.GradientDescent

// Config contains configuration for GradientDescent.
type Config = optim.Config

// Sampler runs forward, backward and curvature backward for one sample.
type Sampler = optim.Sampler

// NewGradientDescent creates a gradient descent optimizer.
//
// Example:
//
//	gd, err := optim.NewGradientDescent(optim.Config{
//	    Eta:     0.01,
//	    Inertia: 0.9,
//	})
func NewGradientDescent(config Config) (*GradientDescent, error) {
	return optim.NewGradientDescent(config)
}

// EstimateCurvature averages the curvature of n samples and derives the
// per-element step sizes epsilon = 1/(curvature + mu).
func EstimateCurvature(ctx context.Context, p *nn.Parameter, n int, mu float64, sample Sampler) error {
	return optim.EstimateCurvature(ctx, p, n, mu, sample)
}

// Anneal applies eta = eta / (1 + (age/period)·value) every period samples.
func Anneal(o Optimizer, age, period int, value float64) bool {
	return optim.Anneal(o, age, period, value)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
//
// Example:
//
//	adam, err := optim.NewAdam(optim.AdamConfig{Eta: 0.001})
//	adam.Step(p)
func NewAdam(config AdamConfig) (*Adam, error) {
	return optim.NewAdam(config)
}

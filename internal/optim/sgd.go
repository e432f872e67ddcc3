package optim

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/nn"
	"github.com/born-ml/curvnet/internal/tensor"
)

// GradientDescent implements stochastic gradient descent over a Parameter
// buffer, with optional weight decay, momentum and curvature-derived
// per-element step sizes.
//
// Update rule, per element:
//
//	dx += decay_l2·x                          // if DecayL2 > 0
//	dx += decay_l1·sign(x)                    // if DecayL1 > 0
//	g = dx                                    // without momentum
//	deltax = (1-inertia)·dx + inertia·deltax  // with momentum
//	g = deltax
//	g *= epsilon                              // if Curvature
//	x -= eta·g
//
// With curvature enabled the multipliers come from the buffer's Epsilons,
// normally filled by EstimateCurvature.
//
// Example:
//
//	gd, _ := optim.NewGradientDescent(optim.Config{
//	    Eta:     0.01,
//	    Inertia: 0.9,
//	})
//	gd.Step(p)
type GradientDescent struct {
	cfg Config
	eta float64
}

// Config holds configuration for GradientDescent.
type Config struct {
	Eta            float64 // Global step size (default: 0.0001)
	DecayL1        float64 // L1 decay coefficient (default: 0)
	DecayL2        float64 // L2 decay coefficient (default: 0)
	Inertia        float64 // Momentum factor (default: 0, range: [0, 1))
	AnnealValue    float64 // Annealing coefficient (default: 0)
	AnnealPeriod   int     // Samples between two annealings (default: 0, disabled)
	Curvature      bool    // Scale updates by the per-element epsilons
	Mu             float64 // Curvature regularizer in epsilon = 1/(h+mu) (default: 0.02)
	HessianSamples int     // Samples used by EstimateCurvature (default: 100)
}

// withDefaults fills zero fields and validates ranges.
func (c Config) withDefaults() (Config, error) {
	if c.Eta == 0 {
		c.Eta = 0.0001
	}
	if c.Mu == 0 {
		c.Mu = 0.02
	}
	if c.HessianSamples == 0 {
		c.HessianSamples = 100
	}
	switch {
	case c.Eta < 0:
		return c, errors.Wrapf(ErrInvalidConfig, "eta %g is negative", c.Eta)
	case c.DecayL1 < 0 || c.DecayL2 < 0:
		return c, errors.Wrapf(ErrInvalidConfig, "decay l1 %g, l2 %g", c.DecayL1, c.DecayL2)
	case c.Inertia < 0 || c.Inertia >= 1:
		return c, errors.Wrapf(ErrInvalidConfig, "inertia %g outside [0, 1)", c.Inertia)
	case c.AnnealValue < 0 || c.AnnealPeriod < 0:
		return c, errors.Wrapf(ErrInvalidConfig, "anneal value %g, period %d", c.AnnealValue, c.AnnealPeriod)
	case c.Mu < 0:
		return c, errors.Wrapf(ErrInvalidConfig, "mu %g is negative", c.Mu)
	case c.HessianSamples < 0:
		return c, errors.Wrapf(ErrInvalidConfig, "hessian samples %d is negative", c.HessianSamples)
	}
	return c, nil
}

// NewGradientDescent creates a gradient descent optimizer.
func NewGradientDescent(config Config) (*GradientDescent, error) {
	cfg, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	return &GradientDescent{cfg: cfg, eta: cfg.Eta}, nil
}

// Config returns the configuration with defaults applied. Its Eta is the
// initial step size, not the annealed one.
func (g *GradientDescent) Config() Config {
	return g.cfg
}

// Step updates every element of p from its accumulated gradient. p.DX is
// modified in place by the decay terms, and by the epsilon scaling when
// momentum is off.
func (g *GradientDescent) Step(p *nn.Parameter) {
	x, dx := p.X(), p.DX()
	if g.cfg.DecayL2 > 0 {
		tensor.AddScaled(dx, x, g.cfg.DecayL2)
	}
	if g.cfg.DecayL1 > 0 {
		tensor.SignAddScaled(dx, x, g.cfg.DecayL1)
	}
	step := dx
	if g.cfg.Inertia != 0 {
		step = p.DeltaX()
		tensor.Lincomb(step, dx, 1-g.cfg.Inertia, step, g.cfg.Inertia)
	}
	if g.cfg.Curvature {
		tensor.Mul(step, step, p.Epsilons())
	}
	tensor.AddScaled(x, step, -g.eta)
}

// Eta returns the current step size.
func (g *GradientDescent) Eta() float64 {
	return g.eta
}

// SetEta updates the step size.
func (g *GradientDescent) SetEta(eta float64) {
	g.eta = eta
}

// Anneal applies the configured schedule after sample number age.
func (g *GradientDescent) Anneal(age int) bool {
	return Anneal(g, age, g.cfg.AnnealPeriod, g.cfg.AnnealValue)
}

// Sampler runs forward, backward and curvature backward for sample i,
// accumulating into the Parameter buffer being estimated.
type Sampler func(i int) error

// EstimateCurvature runs the diagonal Hessian estimation pass with the
// configured sample count and mu.
func (g *GradientDescent) EstimateCurvature(ctx context.Context, p *nn.Parameter, sample Sampler) error {
	return EstimateCurvature(ctx, p, g.cfg.HessianSamples, g.cfg.Mu, sample)
}

// EstimateCurvature averages the parameter curvature over n samples into
// DDeltaX and derives the per-element step sizes epsilon = 1/(ddeltax + mu).
// Gradients and curvatures are cleared before each sample; values are not
// updated. The pass stops early when ctx is done, leaving the epsilons
// unchanged.
func EstimateCurvature(ctx context.Context, p *nn.Parameter, n int, mu float64, sample Sampler) error {
	if n <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "curvature estimation needs at least one sample, got %d", n)
	}
	p.ClearDDeltaX()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "curvature estimation interrupted after %d samples", i)
		}
		p.ClearDX()
		p.ClearDDX()
		if err := sample(i); err != nil {
			return errors.Wrapf(err, "curvature estimation sample %d", i)
		}
		p.UpdateDDeltaX(1/float64(n), 1)
	}
	p.ComputeEpsilons(mu)
	lo, hi := tensor.Min(p.Epsilons()), tensor.Max(p.Epsilons())
	if math.IsInf(lo, 1) {
		lo, hi = 0, 0
	}
	nn.Logger().Info("estimated diagonal curvature", "samples", n, "mu", mu, "min", lo, "max", hi)
	return nil
}

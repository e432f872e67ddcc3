package optim

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/nn"
	"github.com/born-ml/curvnet/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer over a
// Parameter buffer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * dx
//	v_t = beta2 * v_{t-1} + (1-beta2) * dx²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	x = x - eta * m_hat / (sqrt(v_hat) + eps)
//
// The moment buffers are private and sized on the first Step; they grow if
// the Parameter buffer grows. The buffer's DeltaX, DDeltaX and Epsilons are
// not used.
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	adam, _ := optim.NewAdam(optim.AdamConfig{Eta: 0.001})
//	adam.Step(p)
type Adam struct {
	eta   float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int            // Timestep for bias correction
	m     *tensor.Tensor // First moment estimates
	v     *tensor.Tensor // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	Eta   float64    // Step size (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - Eta: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(config AdamConfig) (*Adam, error) {
	if config.Eta == 0 {
		config.Eta = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	for _, b := range config.Betas {
		if b < 0 || b >= 1 {
			return nil, errors.Wrapf(ErrInvalidConfig, "adam beta %g outside [0, 1)", b)
		}
	}
	if config.Eta < 0 || config.Eps < 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "adam eta %g, eps %g", config.Eta, config.Eps)
	}
	return &Adam{
		eta:   config.Eta,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
		m:     tensor.Zeros(tensor.Shape{0}),
		v:     tensor.Zeros(tensor.Shape{0}),
	}, nil
}

// Step performs a single optimization step:
//  1. Update biased first moment estimate
//  2. Update biased second moment estimate
//  3. Compute bias-corrected moment estimates
//  4. Update values
func (a *Adam) Step(p *nn.Parameter) {
	n := p.Footprint()
	if a.m.NumElements() != n {
		// Resize keeps existing moments; new elements start at zero.
		a.m.Resize(tensor.Shape{n})
		a.v.Resize(tensor.Shape{n})
	}
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	x, dx := p.X().Data(), p.DX().Data()
	m, v := a.m.Data(), a.v.Data()
	for i, g := range dx {
		m[i] = a.beta1*m[i] + (1-a.beta1)*g
		v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
		x[i] -= a.eta * (m[i] / bc1) / (math.Sqrt(v[i]/bc2) + a.eps)
	}
}

// Eta returns the current step size.
func (a *Adam) Eta() float64 {
	return a.eta
}

// SetEta updates the step size.
func (a *Adam) SetEta(eta float64) {
	a.eta = eta
}

// Timestep returns the number of steps taken.
func (a *Adam) Timestep() int {
	return a.t
}

// StateDict returns copies of the moment buffers and the timestep.
func (a *Adam) StateDict() (m, v *tensor.Tensor, t int) {
	return a.m.Clone(), a.v.Clone(), a.t
}

// LoadStateDict restores moment buffers saved by StateDict.
func (a *Adam) LoadStateDict(m, v *tensor.Tensor, t int) error {
	if !m.Shape().Equal(v.Shape()) || m.Order() != 1 {
		return errors.Errorf("adam state shapes mismatch: m %v, v %v", m.Shape(), v.Shape())
	}
	if t < 0 {
		return errors.Errorf("adam timestep %d is negative", t)
	}
	a.m, a.v, a.t = m.Clone(), v.Clone(), t
	return nil
}

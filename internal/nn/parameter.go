package nn

import (
	"github.com/born-ml/curvnet/internal/tensor"
)

// Parameter is the shared buffer backing every trainable tensor of a network.
//
// Modules allocate their weights from it at construction time: each Alloc
// returns a State whose tensors are views into a contiguous region starting
// at the current footprint, and the footprint then grows by the region size.
// Regions never overlap and are never reclaimed, so the buffer layout is
// fixed once construction is over.
//
// Besides X, DX and DDX, the buffer holds the per-element tensors used by the
// update rule:
//   - DeltaX: momentum accumulator
//   - Epsilons: per-element learning-rate multipliers (1 by default)
//   - DDeltaX: running curvature average used to derive Epsilons
//
// Example:
//
//	p := nn.NewParameter()
//	conv, _ := nn.NewConvolution(p, cfg, "c0")  // allocates the kernel from p
//	bias := nn.NewAddC(p, 6, "c0.bias")           // allocates 6 more elements
//	fmt.Println(p.Footprint())
type Parameter struct {
	state     *State
	deltaX    *tensor.Tensor
	epsilons  *tensor.Tensor
	ddeltaX   *tensor.Tensor
	footprint int
}

// NewParameter creates an empty parameter buffer.
func NewParameter() *Parameter {
	empty := tensor.Shape{0}
	return &Parameter{
		state:    NewBBState(empty),
		deltaX:   tensor.Zeros(empty),
		epsilons: tensor.Zeros(empty),
		ddeltaX:  tensor.Zeros(empty),
	}
}

// Alloc reserves a region of shape.NumElements() elements and returns a
// state of views onto it. New values are zero and new epsilons are one.
func (p *Parameter) Alloc(shape tensor.Shape) *State {
	n := shape.NumElements()
	offset := p.footprint
	p.resize(offset + n)
	tensor.Fill(p.epsilons.Narrow(0, n, offset), 1)
	return &State{
		X:   tensor.OnStorage(p.state.X.Storage(), offset, shape),
		DX:  tensor.OnStorage(p.state.DX.Storage(), offset, shape),
		DDX: tensor.OnStorage(p.state.DDX.Storage(), offset, shape),
	}
}

func (p *Parameter) resize(n int) {
	s := tensor.Shape{n}
	p.state.Resize(s)
	p.deltaX.Resize(s)
	p.epsilons.Resize(s)
	p.ddeltaX.Resize(s)
	p.footprint = n
}

// alloc allocates from p, or privately when p is nil.
func alloc(p *Parameter, shape tensor.Shape) *State {
	if p == nil {
		return NewBBState(shape)
	}
	return p.Alloc(shape)
}

// Footprint returns the number of allocated elements.
func (p *Parameter) Footprint() int {
	return p.footprint
}

// State returns the flat value/gradient/curvature state of the whole buffer.
func (p *Parameter) State() *State {
	return p.state
}

// X returns the flat value tensor.
func (p *Parameter) X() *tensor.Tensor { return p.state.X }

// DX returns the flat gradient tensor.
func (p *Parameter) DX() *tensor.Tensor { return p.state.DX }

// DDX returns the flat curvature tensor.
func (p *Parameter) DDX() *tensor.Tensor { return p.state.DDX }

// DeltaX returns the momentum accumulator.
func (p *Parameter) DeltaX() *tensor.Tensor { return p.deltaX }

// Epsilons returns the per-element learning-rate multipliers.
func (p *Parameter) Epsilons() *tensor.Tensor { return p.epsilons }

// DDeltaX returns the running curvature average.
func (p *Parameter) DDeltaX() *tensor.Tensor { return p.ddeltaX }

// ClearDX zeroes all gradients.
func (p *Parameter) ClearDX() { p.state.ClearDX() }

// ClearDDX zeroes all curvatures.
func (p *Parameter) ClearDDX() { p.state.ClearDDX() }

// ClearDeltaX zeroes the momentum accumulator.
func (p *Parameter) ClearDeltaX() { tensor.Clear(p.deltaX) }

// ClearDDeltaX zeroes the running curvature average.
func (p *Parameter) ClearDDeltaX() { tensor.Clear(p.ddeltaX) }

// SetEpsilon sets every learning-rate multiplier to v.
func (p *Parameter) SetEpsilon(v float64) { tensor.Fill(p.epsilons, v) }

// UpdateDDeltaX folds the current curvature into the running average:
// ddeltax = knew·ddx + kold·ddeltax.
func (p *Parameter) UpdateDDeltaX(knew, kold float64) {
	tensor.Lincomb(p.ddeltaX, p.state.DDX, knew, p.ddeltaX, kold)
}

// ComputeEpsilons derives the learning-rate multipliers from the curvature
// average: epsilon = 1/(ddeltax + mu).
func (p *Parameter) ComputeEpsilons(mu float64) {
	tensor.Apply(p.epsilons, p.ddeltaX, func(v float64) float64 { return 1 / (v + mu) })
}

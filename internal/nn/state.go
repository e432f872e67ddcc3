package nn

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/tensor"
)

// State carries the tensors of one pipeline edge:
//   - X: values
//   - DX: gradient of the objective with respect to X (nil for value-only states)
//   - DDX: diagonal curvature estimate (nil unless curvature is tracked)
//
// All present tensors always share X's shape.
type State struct {
	X   *tensor.Tensor
	DX  *tensor.Tensor
	DDX *tensor.Tensor
}

// NewFState creates a value-only state.
func NewFState(shape tensor.Shape) *State {
	return &State{X: tensor.Zeros(shape)}
}

// NewBState creates a state with values and gradients.
func NewBState(shape tensor.Shape) *State {
	return &State{X: tensor.Zeros(shape), DX: tensor.Zeros(shape)}
}

// NewBBState creates a state with values, gradients and curvatures.
func NewBBState(shape tensor.Shape) *State {
	return &State{X: tensor.Zeros(shape), DX: tensor.Zeros(shape), DDX: tensor.Zeros(shape)}
}

// NewStateLike creates a state with the same tensors present as s, every
// dimension of the given shape.
func NewStateLike(s *State, shape tensor.Shape) *State {
	n := &State{X: tensor.Zeros(shape)}
	if s.DX != nil {
		n.DX = tensor.Zeros(shape)
	}
	if s.DDX != nil {
		n.DDX = tensor.Zeros(shape)
	}
	return n
}

// Shape returns the shape of the state.
func (s *State) Shape() tensor.Shape {
	return s.X.Shape()
}

// Resize resizes every present tensor. It is a no-op when the shape already
// matches.
func (s *State) Resize(shape tensor.Shape) {
	s.X.Resize(shape)
	if s.DX != nil {
		s.DX.Resize(shape)
	}
	if s.DDX != nil {
		s.DDX.Resize(shape)
	}
}

// ClearX zeroes the values.
func (s *State) ClearX() {
	tensor.Clear(s.X)
}

// ClearDX zeroes the gradient, if present.
func (s *State) ClearDX() {
	if s.DX != nil {
		tensor.Clear(s.DX)
	}
}

// ClearDDX zeroes the curvature, if present.
func (s *State) ClearDDX() {
	if s.DDX != nil {
		tensor.Clear(s.DDX)
	}
}

// Select returns the state of views obtained by fixing dimension dim at i.
func (s *State) Select(dim, i int) *State {
	return s.view(func(t *tensor.Tensor) *tensor.Tensor { return t.Select(dim, i) })
}

// Narrow returns the state of views restricted to [offset, offset+size) along
// dim.
func (s *State) Narrow(dim, size, offset int) *State {
	return s.view(func(t *tensor.Tensor) *tensor.Tensor { return t.Narrow(dim, size, offset) })
}

func (s *State) view(f func(*tensor.Tensor) *tensor.Tensor) *State {
	v := &State{X: f(s.X)}
	if s.DX != nil {
		v.DX = f(s.DX)
	}
	if s.DDX != nil {
		v.DDX = f(s.DDX)
	}
	return v
}

// Same reports whether s and o address the same value buffer.
func (s *State) Same(o *State) bool {
	return s == o || s.X.SameView(o.X)
}

// String describes the state's shape and which tensors are present.
func (s *State) String() string {
	kind := "x"
	if s.DX != nil {
		kind += ",dx"
	}
	if s.DDX != nil {
		kind += ",ddx"
	}
	return fmt.Sprintf("State(%v)[%s]", s.X.Shape(), kind)
}

// checkDifferent panics when a module that cannot run in place receives the
// same buffer as input and output.
func checkDifferent(op string, in, out *State) {
	if in.Same(out) {
		panic(errors.Wrap(ErrAliasedStates, op))
	}
}

// resizeOutput resizes out to shape when it differs, logging the event.
func resizeOutput(module string, out *State, shape tensor.Shape) {
	if out.X.Shape().Equal(shape) {
		return
	}
	lg().Debug("resizing output", "module", module, "from", out.X.Shape().String(), "to", shape.String())
	out.Resize(shape)
}

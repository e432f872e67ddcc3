package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/curvnet/internal/tensor"
)

// Power raises every element to a fixed power: out = in^p.
//
// The backward passes re-derive in^(p-1) as out.x / in.x. Callers must not
// modify in.x or out.x between Forward and the backward passes: nothing
// detects it and the gradients come out silently wrong. Forward may run in
// place, but the backward passes panic with ErrAliasedStates when input and
// output are the same state.
type Power struct {
	named
	sameShapeSize
	noForget
	p float64
}

// NewPower creates a power module.
func NewPower(p float64, name string) *Power {
	return &Power{named: named{name}, p: p}
}

// Forward computes out = in^p.
func (m *Power) Forward(in, out *State) {
	if !in.Same(out) {
		resizeOutput(m.name, out, in.X.Shape())
	}
	tensor.Apply(out.X, in.X, func(x float64) float64 { return math.Pow(x, m.p) })
}

// ratio returns out.x / in.x, i.e. in^(p-1).
func (m *Power) ratio(in, out *State) *tensor.Tensor {
	tt := tensor.Zeros(in.X.Shape())
	tensor.Div(tt, out.X, in.X)
	return tt
}

// Backward accumulates in.dx += p · out.dx · in^(p-1).
func (m *Power) Backward(in, out *State) {
	checkDifferent("Power.Backward", in, out)
	tt := m.ratio(in, out)
	tensor.Scale(tt, m.p)
	tensor.MulAcc(in.DX, tt, out.DX)
}

// CurvatureBackward accumulates in.ddx += p² · out.ddx · in^(2p-2).
func (m *Power) CurvatureBackward(in, out *State) {
	checkDifferent("Power.CurvatureBackward", in, out)
	tt := m.ratio(in, out)
	tensor.Apply(tt, tt, func(v float64) float64 { return m.p * m.p * v * v })
	tensor.MulAcc(in.DDX, tt, out.DDX)
}

// Describe implements Module.
func (m *Power) Describe() string {
	return fmt.Sprintf("power module %s with exponent %g", m.name, m.p)
}

// Diff computes out = in1 - in2.
type Diff struct{ named }

// NewDiff creates a difference module.
func NewDiff(name string) *Diff { return &Diff{named{name}} }

// Forward computes out = in1 - in2.
func (d *Diff) Forward(in1, in2, out *State) {
	checkInputs2("Diff.Forward", in1, in2, out)
	resizeOutput(d.name, out, in1.X.Shape())
	tensor.Sub(out.X, in1.X, in2.X)
}

// Backward accumulates in1.dx += out.dx and in2.dx -= out.dx.
func (d *Diff) Backward(in1, in2, out *State) {
	checkInputs2("Diff.Backward", in1, in2, out)
	tensor.Accumulate(in1.DX, out.DX)
	tensor.AddScaled(in2.DX, out.DX, -1)
}

// CurvatureBackward accumulates out.ddx into both inputs; the squared
// derivative of ±1 is 1.
func (d *Diff) CurvatureBackward(in1, in2, out *State) {
	checkInputs2("Diff.CurvatureBackward", in1, in2, out)
	tensor.Accumulate(in1.DDX, out.DDX)
	tensor.Accumulate(in2.DDX, out.DDX)
}

// Describe implements Module2.
func (d *Diff) Describe() string { return "diff module " + d.name }

// Mul computes the elementwise product out = in1 · in2.
type Mul struct{ named }

// NewMul creates a product module.
func NewMul(name string) *Mul { return &Mul{named{name}} }

// Forward computes out = in1 · in2.
func (m *Mul) Forward(in1, in2, out *State) {
	checkInputs2("Mul.Forward", in1, in2, out)
	resizeOutput(m.name, out, in1.X.Shape())
	tensor.Mul(out.X, in1.X, in2.X)
}

// Backward accumulates in1.dx += out.dx·in2.x and in2.dx += out.dx·in1.x.
func (m *Mul) Backward(in1, in2, out *State) {
	checkInputs2("Mul.Backward", in1, in2, out)
	tensor.MulAcc(in1.DX, out.DX, in2.X)
	tensor.MulAcc(in2.DX, out.DX, in1.X)
}

// CurvatureBackward accumulates in1.ddx += out.ddx·in2.x² and
// in2.ddx += out.ddx·in1.x².
func (m *Mul) CurvatureBackward(in1, in2, out *State) {
	checkInputs2("Mul.CurvatureBackward", in1, in2, out)
	sq := tensor.Zeros(in1.X.Shape())
	tensor.Square(sq, in2.X)
	tensor.MulAcc(in1.DDX, out.DDX, sq)
	tensor.Square(sq, in1.X)
	tensor.MulAcc(in2.DDX, out.DDX, sq)
}

// Describe implements Module2.
func (m *Mul) Describe() string { return "mul module " + m.name }

func checkInputs2(op string, in1, in2, out *State) {
	checkDifferent(op, in1, out)
	checkDifferent(op, in2, out)
	if !in1.X.Shape().Equal(in2.X.Shape()) {
		panic(fmt.Sprintf("%s: input shapes %v and %v differ", op, in1.X.Shape(), in2.X.Shape()))
	}
}

package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/curvnet/internal/tensor"
)

// LeCun's standard sigmoid: f(x) = stdSigmoidA · tanh(stdSigmoidB · x).
const (
	stdSigmoidA = 1.7159
	stdSigmoidB = 2.0 / 3.0
)

// elementwise applies f in the forward pass and the derivative df in both
// backward passes: in.dx += df(x)·out.dx and in.ddx += df(x)²·out.ddx.
type elementwise struct {
	named
	sameShapeSize
	noForget
	kind string
	f    func(x float64) float64
	df   func(x float64) float64
}

func (e *elementwise) Forward(in, out *State) {
	if !in.Same(out) {
		resizeOutput(e.name, out, in.X.Shape())
	}
	tensor.Apply(out.X, in.X, e.f)
}

func (e *elementwise) Backward(in, out *State) {
	checkDifferent(e.kind+".Backward", in, out)
	d := tensor.Zeros(in.X.Shape())
	tensor.Apply(d, in.X, e.df)
	tensor.MulAcc(in.DX, d, out.DX)
}

func (e *elementwise) CurvatureBackward(in, out *State) {
	checkDifferent(e.kind+".CurvatureBackward", in, out)
	d := tensor.Zeros(in.X.Shape())
	tensor.Apply(d, in.X, func(x float64) float64 {
		v := e.df(x)
		return v * v
	})
	tensor.MulAcc(in.DDX, d, out.DDX)
}

func (e *elementwise) Describe() string {
	return fmt.Sprintf("%s module %s", e.kind, e.name)
}

// Tanh is the hyperbolic tangent module.
type Tanh struct{ elementwise }

// NewTanh creates a tanh module.
func NewTanh(name string) *Tanh {
	return &Tanh{elementwise{
		named: named{name},
		kind:  "tanh",
		f:     math.Tanh,
		df: func(x float64) float64 {
			t := math.Tanh(x)
			return 1 - t*t
		},
	}}
}

// StdSigmoid is LeCun's standard sigmoid 1.7159·tanh(2x/3).
type StdSigmoid struct{ elementwise }

// NewStdSigmoid creates a standard sigmoid module.
func NewStdSigmoid(name string) *StdSigmoid {
	return &StdSigmoid{elementwise{
		named: named{name},
		kind:  "stdsigmoid",
		f:     func(x float64) float64 { return stdSigmoidA * math.Tanh(stdSigmoidB*x) },
		df: func(x float64) float64 {
			t := math.Tanh(stdSigmoidB * x)
			return stdSigmoidA * stdSigmoidB * (1 - t*t)
		},
	}}
}

// Abs is absolute-value rectification. Inputs within [-threshold, threshold]
// pass no gradient; the curvature is passed through unchanged.
type Abs struct {
	named
	sameShapeSize
	noForget
	threshold float64
}

// NewAbs creates an abs module with the given dead-zone threshold.
func NewAbs(threshold float64, name string) *Abs {
	return &Abs{named: named{name}, threshold: threshold}
}

// Forward computes out = |in|.
func (a *Abs) Forward(in, out *State) {
	if !in.Same(out) {
		resizeOutput(a.name, out, in.X.Shape())
	}
	tensor.Apply(out.X, in.X, math.Abs)
}

// Backward accumulates sign(in.x)·out.dx outside the dead zone.
func (a *Abs) Backward(in, out *State) {
	checkDifferent("Abs.Backward", in, out)
	sign := tensor.Zeros(in.X.Shape())
	tensor.Apply(sign, in.X, func(x float64) float64 {
		switch {
		case x > a.threshold:
			return 1
		case x < -a.threshold:
			return -1
		}
		return 0
	})
	tensor.MulAcc(in.DX, sign, out.DX)
}

// CurvatureBackward accumulates out.ddx into in.ddx.
func (a *Abs) CurvatureBackward(in, out *State) {
	checkDifferent("Abs.CurvatureBackward", in, out)
	tensor.Accumulate(in.DDX, out.DDX)
}

// Describe implements Module.
func (a *Abs) Describe() string {
	return fmt.Sprintf("abs module %s with threshold %g", a.name, a.threshold)
}

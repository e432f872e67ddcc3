package nn

import (
	"fmt"

	"github.com/born-ml/curvnet/internal/tensor"
)

// AddC adds a learned bias to every element of each leading-dimension slice:
// out[f, ...] = in[f, ...] + bias[f]. It may run in place (in == out).
type AddC struct {
	named
	sameShapeSize
	bias *State // [features]
}

// NewAddC creates a bias module of n features allocating from p.
func NewAddC(p *Parameter, n int, name string) *AddC {
	return &AddC{named: named{name}, bias: alloc(p, tensor.Shape{n})}
}

// Bias returns the bias state.
func (a *AddC) Bias() *State { return a.bias }

func (a *AddC) check(op string, t *tensor.Tensor) {
	if t.Order() == 0 || t.Dim(0) != a.bias.X.Dim(0) {
		panic(fmt.Sprintf("AddC.%s: expected %d features, got shape %v", op, a.bias.X.Dim(0), t.Shape()))
	}
}

// Forward computes out = in + bias.
func (a *AddC) Forward(in, out *State) {
	a.check("Forward", in.X)
	inPlace := in.Same(out)
	if !inPlace {
		resizeOutput(a.name, out, in.X.Shape())
	}
	for f := 0; f < in.X.Dim(0); f++ {
		o := out.X.Select(0, f)
		if !inPlace {
			tensor.Copy(o, in.X.Select(0, f))
		}
		tensor.AddConst(o, a.bias.X.At(f))
	}
}

// Backward accumulates out.DX into in.DX (unless in place) and the sum of
// each output slice gradient into the bias gradient.
func (a *AddC) Backward(in, out *State) {
	a.check("Backward", out.DX)
	if !in.Same(out) {
		tensor.Accumulate(in.DX, out.DX)
	}
	for f := 0; f < out.DX.Dim(0); f++ {
		a.bias.DX.Set(a.bias.DX.At(f)+tensor.Sum(out.DX.Select(0, f)), f)
	}
}

// CurvatureBackward mirrors Backward on the curvature tensors.
func (a *AddC) CurvatureBackward(in, out *State) {
	a.check("CurvatureBackward", out.DDX)
	if !in.Same(out) {
		tensor.Accumulate(in.DDX, out.DDX)
	}
	for f := 0; f < out.DDX.Dim(0); f++ {
		a.bias.DDX.Set(a.bias.DDX.At(f)+tensor.Sum(out.DDX.Select(0, f)), f)
	}
}

// Forget clears the bias.
func (a *AddC) Forget(ForgetParam) {
	tensor.Clear(a.bias.X)
}

// Copy returns an AddC with private storage and the same bias.
func (a *AddC) Copy() Module {
	c := NewAddC(nil, a.bias.X.Dim(0), a.name)
	tensor.Copy(c.bias.X, a.bias.X)
	return c
}

// Describe implements Module.
func (a *AddC) Describe() string {
	return fmt.Sprintf("bias module %s with %d biases", a.name, a.bias.X.Dim(0))
}

// Diag scales each leading-dimension slice by a learned coefficient:
// out[f, ...] = coeff[f] · in[f, ...]. Coefficients start at 1.
type Diag struct {
	named
	sameShapeSize
	coeff *State // [features]
}

// NewDiag creates a diagonal scaling module of n features allocating from p.
func NewDiag(p *Parameter, n int, name string) *Diag {
	d := &Diag{named: named{name}, coeff: alloc(p, tensor.Shape{n})}
	tensor.Fill(d.coeff.X, 1)
	return d
}

// Coefficients returns the coefficient state.
func (d *Diag) Coefficients() *State { return d.coeff }

func (d *Diag) check(op string, t *tensor.Tensor) {
	if t.Order() == 0 || t.Dim(0) != d.coeff.X.Dim(0) {
		panic(fmt.Sprintf("Diag.%s: expected %d features, got shape %v", op, d.coeff.X.Dim(0), t.Shape()))
	}
}

// Forward computes out = coeff · in per feature.
func (d *Diag) Forward(in, out *State) {
	d.check("Forward", in.X)
	checkDifferent("Diag.Forward", in, out)
	resizeOutput(d.name, out, in.X.Shape())
	for f := 0; f < in.X.Dim(0); f++ {
		o := out.X.Select(0, f)
		tensor.Copy(o, in.X.Select(0, f))
		tensor.Scale(o, d.coeff.X.At(f))
	}
}

// Backward accumulates in.DX += c·out.DX and dc += dot(in.X, out.DX).
func (d *Diag) Backward(in, out *State) {
	d.check("Backward", in.X)
	checkDifferent("Diag.Backward", in, out)
	for f := 0; f < in.X.Dim(0); f++ {
		g := out.DX.Select(0, f)
		tensor.AddScaled(in.DX.Select(0, f), g, d.coeff.X.At(f))
		d.coeff.DX.Set(d.coeff.DX.At(f)+tensor.Dot(in.X.Select(0, f), g), f)
	}
}

// CurvatureBackward accumulates in.DDX += c²·out.DDX and
// ddc += dot(in.X², out.DDX).
func (d *Diag) CurvatureBackward(in, out *State) {
	d.check("CurvatureBackward", in.X)
	checkDifferent("Diag.CurvatureBackward", in, out)
	for f := 0; f < in.X.Dim(0); f++ {
		g := out.DDX.Select(0, f)
		c := d.coeff.X.At(f)
		tensor.AddScaled(in.DDX.Select(0, f), g, c*c)
		x2 := in.X.Select(0, f).Clone()
		tensor.Square(x2, x2)
		d.coeff.DDX.Set(d.coeff.DDX.At(f)+tensor.Dot(x2, g), f)
	}
}

// Forget resets every coefficient to 1.
func (d *Diag) Forget(ForgetParam) {
	tensor.Fill(d.coeff.X, 1)
}

// Copy returns a Diag with private storage and the same coefficients.
func (d *Diag) Copy() Module {
	c := NewDiag(nil, d.coeff.X.Dim(0), d.name)
	tensor.Copy(c.coeff.X, d.coeff.X)
	return c
}

// Describe implements Module.
func (d *Diag) Describe() string {
	return fmt.Sprintf("diag module %s with %d coefficients", d.name, d.coeff.X.Dim(0))
}

// Identity copies its input to its output; gradients flow back unchanged.
type Identity struct {
	named
	sameShapeSize
	noForget
}

// NewIdentity creates a copy module.
func NewIdentity(name string) *Identity {
	return &Identity{named: named{name}}
}

// Forward copies in.X into out.X.
func (c *Identity) Forward(in, out *State) {
	if in.Same(out) {
		return
	}
	resizeOutput(c.name, out, in.X.Shape())
	tensor.Copy(out.X, in.X)
}

// Backward accumulates out.DX into in.DX.
func (c *Identity) Backward(in, out *State) {
	if !in.Same(out) {
		tensor.Accumulate(in.DX, out.DX)
	}
}

// CurvatureBackward accumulates out.DDX into in.DDX.
func (c *Identity) CurvatureBackward(in, out *State) {
	if !in.Same(out) {
		tensor.Accumulate(in.DDX, out.DDX)
	}
}

// Describe implements Module.
func (c *Identity) Describe() string {
	return "copy module " + c.name
}

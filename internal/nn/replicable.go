package nn

import (
	"fmt"

	"github.com/born-ml/curvnet/internal/tensor"
)

// Replicable lifts a module defined over a fixed rank R to inputs of rank
// R+k: the k leading dimensions are iterated with an index stack and the base
// module runs on every trailing R-rank slice, writing the matching slice of
// the output.
//
// Example:
//
//	conv, _ := nn.NewConvolution(p, cfg, "c0")
//	rep := nn.Replicate(conv)
//	rep.Forward(in, out) // in: [batch, features, h, w]
type Replicable struct {
	base  ReplicableModule
	order int
}

// Replicate wraps m.
func Replicate(m ReplicableModule) *Replicable {
	return &Replicable{base: m, order: m.ReplicableOrder()}
}

// Base returns the wrapped module.
func (r *Replicable) Base() Module { return r.base }

// Name returns the wrapped module's name.
func (r *Replicable) Name() string { return r.base.Name() }

// lead returns the number of leading dimensions to iterate.
func (r *Replicable) lead(op string, in *State) int {
	n := in.X.Order() - r.order
	if n < 0 {
		panic(fmt.Sprintf("Replicable.%s: input order %d below module order %d for %s",
			op, in.X.Order(), r.order, r.base.Name()))
	}
	return n
}

// each runs f on every pair of trailing slices.
func (r *Replicable) each(lead int, in, out *State, f func(in, out *State)) {
	tensor.Index(in.X.Shape()[:lead], func(idx []int) {
		ii, oo := in, out
		for _, v := range idx {
			ii = ii.Select(0, v)
			oo = oo.Select(0, v)
		}
		f(ii, oo)
	})
}

// Forward resizes out for the whole input, then runs the base module on each
// slice.
func (r *Replicable) Forward(in, out *State) {
	lead := r.lead("Forward", in)
	if lead == 0 {
		r.base.Forward(in, out)
		return
	}
	resizeOutput(r.base.Name(), out, r.ForwardSize(in.X.Shape()))
	r.each(lead, in, out, r.base.Forward)
}

// Backward runs the base module's Backward on each slice.
func (r *Replicable) Backward(in, out *State) {
	lead := r.lead("Backward", in)
	if lead == 0 {
		r.base.Backward(in, out)
		return
	}
	r.each(lead, in, out, r.base.Backward)
}

// CurvatureBackward runs the base module's CurvatureBackward on each slice.
func (r *Replicable) CurvatureBackward(in, out *State) {
	lead := r.lead("CurvatureBackward", in)
	if lead == 0 {
		r.base.CurvatureBackward(in, out)
		return
	}
	r.each(lead, in, out, r.base.CurvatureBackward)
}

// Forget forwards to the base module.
func (r *Replicable) Forget(fp ForgetParam) { r.base.Forget(fp) }

// ForwardSize keeps the leading dimensions and maps the trailing ones.
func (r *Replicable) ForwardSize(in tensor.Shape) tensor.Shape {
	return r.mapTrailing(in, r.base.ForwardSize)
}

// BackwardSize keeps the leading dimensions and maps the trailing ones.
func (r *Replicable) BackwardSize(out tensor.Shape) tensor.Shape {
	return r.mapTrailing(out, r.base.BackwardSize)
}

func (r *Replicable) mapTrailing(s tensor.Shape, f func(tensor.Shape) tensor.Shape) tensor.Shape {
	lead := len(s) - r.order
	if lead <= 0 {
		return f(s)
	}
	res := append(tensor.Shape(nil), s[:lead]...)
	return append(res, f(s[lead:].Clone())...)
}

// Copy copies the base module when it supports it.
func (r *Replicable) Copy() Module {
	c, ok := r.base.(Copier)
	if !ok {
		return r
	}
	base, ok := c.Copy().(ReplicableModule)
	if !ok {
		return r
	}
	return Replicate(base)
}

// Describe implements Module.
func (r *Replicable) Describe() string {
	return fmt.Sprintf("replicable (order %d) %s", r.order, r.base.Describe())
}

package nn

import (
	"fmt"

	"github.com/born-ml/curvnet/internal/tensor"
)

// Linear implements a fully connected module.
//
// Performs the transformation: out = W · in
// where:
//   - in is viewed as a flat vector of InFeatures elements whatever its rank
//   - W is the weight matrix with shape [out_features, in_features]
//   - out has OutFeatures elements
//
// The curvature pass uses the Gauss-Newton rule: ddW += outer(out.ddx, in.x²)
// and in.ddx += (W²)ᵀ · out.ddx.
//
// Example:
//
//	p := nn.NewParameter()
//	fc := nn.NewLinear(p, 120, 10, "f7")
//	fc.Forget(nn.NewForgetParam(1, 0.5, 42))
//	fc.Forward(in, out)
type Linear struct {
	named
	w   *State // [out_features, in_features]
	in  int
	out int
}

// NewLinear creates a Linear module allocating its weights from p.
//
// Parameters:
//   - p: Parameter buffer, or nil for private storage
//   - in: Number of input elements
//   - out: Number of output elements
//   - name: Instance name
//
// Weights start at zero; call Forget to initialize them.
func NewLinear(p *Parameter, in, out int, name string) *Linear {
	return &Linear{
		named: named{name},
		w:     alloc(p, tensor.Shape{out, in}),
		in:    in,
		out:   out,
	}
}

// Weights returns the weight state.
func (l *Linear) Weights() *State { return l.w }

// InFeatures returns the number of input elements.
func (l *Linear) InFeatures() int { return l.in }

// OutFeatures returns the number of output elements.
func (l *Linear) OutFeatures() int { return l.out }

// ReplicableOrder returns 1: Linear natively maps a vector to a vector.
func (l *Linear) ReplicableOrder() int { return 1 }

// Forward computes out.X = W · in.X.
func (l *Linear) Forward(in, out *State) {
	checkDifferent("Linear.Forward", in, out)
	if in.X.NumElements() != l.in {
		panic(fmt.Sprintf("Linear.Forward: expected %d input elements, got shape %v", l.in, in.X.Shape()))
	}
	resizeOutput(l.name, out, l.ForwardSize(in.X.Shape()))
	inx := flatRead(in.X)
	flatWrite(out.X, false, func(dst *tensor.Tensor) {
		tensor.MatVec(dst, l.w.X, inx, false, 0)
	})
}

// Backward accumulates dW += outer(out.DX, in.X) and in.DX += Wᵀ · out.DX.
func (l *Linear) Backward(in, out *State) {
	checkDifferent("Linear.Backward", in, out)
	if out.DX.NumElements() != l.out {
		panic(fmt.Sprintf("Linear.Backward: expected %d output elements, got shape %v", l.out, out.DX.Shape()))
	}
	inx := flatRead(in.X)
	outdx := flatRead(out.DX)
	tensor.OuterAcc(l.w.DX, outdx, inx, 1)
	flatWrite(in.DX, true, func(dst *tensor.Tensor) {
		tensor.MatVec(dst, l.w.X, outdx, true, 1)
	})
}

// CurvatureBackward accumulates ddW += outer(out.DDX, in.X²) and
// in.DDX += (W²)ᵀ · out.DDX.
func (l *Linear) CurvatureBackward(in, out *State) {
	checkDifferent("Linear.CurvatureBackward", in, out)
	if out.DDX.NumElements() != l.out {
		panic(fmt.Sprintf("Linear.CurvatureBackward: expected %d output elements, got shape %v", l.out, out.DDX.Shape()))
	}
	inx2 := tensor.Zeros(tensor.Shape{l.in})
	tensor.Square(inx2, flatRead(in.X))
	w2 := tensor.Zeros(l.w.X.Shape())
	tensor.Square(w2, l.w.X)
	outddx := flatRead(out.DDX)
	tensor.OuterAcc(l.w.DDX, outddx, inx2, 1)
	flatWrite(in.DDX, true, func(dst *tensor.Tensor) {
		tensor.MatVec(dst, w2, outddx, true, 1)
	})
}

// Forget draws weights from U(-z, z) with z = v / in^p.
func (l *Linear) Forget(fp ForgetParam) {
	fp.uniform(l.w.X, fp.bound(l.in))
}

// ForwardSize keeps the input layout when every dimension but the first is
// 1 (e.g. [in, 1, 1] -> [out, 1, 1]) and returns [out] otherwise. Any other
// input is flattened, so its rank cannot be recovered: BackwardSize of [out]
// is [in], not the original shape.
func (l *Linear) ForwardSize(in tensor.Shape) tensor.Shape {
	return resizeFirst(in, l.out)
}

// BackwardSize is the inverse of ForwardSize.
func (l *Linear) BackwardSize(out tensor.Shape) tensor.Shape {
	return resizeFirst(out, l.in)
}

func resizeFirst(s tensor.Shape, n int) tensor.Shape {
	if len(s) == 0 || s.NumElements() != s[0] {
		return tensor.Shape{n}
	}
	return s.With(0, n)
}

// Copy returns a Linear with private storage and the same weights.
func (l *Linear) Copy() Module {
	c := NewLinear(nil, l.in, l.out, l.name)
	tensor.Copy(c.w.X, l.w.X)
	return c
}

// Describe implements Module.
func (l *Linear) Describe() string {
	return fmt.Sprintf("linear module %s %dx%d", l.name, l.in, l.out)
}

// flatRead returns a flat view of t, copying when t is not contiguous.
func flatRead(t *tensor.Tensor) *tensor.Tensor {
	if t.IsContiguous() {
		return t.Flat()
	}
	return t.Clone().Flat()
}

// flatWrite runs f on a flat destination aliasing t. Strided destinations go
// through a scratch vector that is copied (or, with accumulate, added) back.
func flatWrite(t *tensor.Tensor, accumulate bool, f func(dst *tensor.Tensor)) {
	if t.IsContiguous() {
		f(t.Flat())
		return
	}
	tmp := tensor.Zeros(tensor.Shape{t.NumElements()})
	f(tmp)
	if accumulate {
		tensor.Accumulate(t, tmp.Reshape(t.Shape()))
	} else {
		tensor.Copy(t, tmp.Reshape(t.Shape()))
	}
}

package nn

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/tensor"
)

// SubsamplingConfig holds configuration for a Subsampling module.
type SubsamplingConfig struct {
	Thickness int    // Number of features
	Kernel    [2]int // Reported kernel size (default: Stride)
	Stride    [2]int // Block height and width
	Crop      bool   // Trim trailing rows/columns that do not fill a block
}

// Subsampling sums each non-overlapping stride block of every feature and
// scales the sum by a learned per-feature coefficient:
//
//	out[f, i, j] = coeff[f] · Σ in[f, i·sh+u, j·sw+v]
//
// Coefficients start at 1/sqrt(sh·sw).
type Subsampling struct {
	named
	coeff     *State // [thickness]
	thickness int
	kernel    [2]int
	sh, sw    int
	crop      bool
}

// NewSubsampling creates a Subsampling module allocating its coefficients
// from p.
func NewSubsampling(p *Parameter, cfg SubsamplingConfig, name string) (*Subsampling, error) {
	if cfg.Thickness <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "subsampling %s: thickness %d", name, cfg.Thickness)
	}
	if cfg.Stride[0] <= 0 || cfg.Stride[1] <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "subsampling %s: stride %dx%d", name, cfg.Stride[0], cfg.Stride[1])
	}
	if cfg.Kernel == [2]int{} {
		cfg.Kernel = cfg.Stride
	}
	s := &Subsampling{
		named:     named{name},
		coeff:     alloc(p, tensor.Shape{cfg.Thickness}),
		thickness: cfg.Thickness,
		kernel:    cfg.Kernel,
		sh:        cfg.Stride[0],
		sw:        cfg.Stride[1],
		crop:      cfg.Crop,
	}
	s.Forget(ForgetParam{Value: 1, Exponent: 0.5})
	return s, nil
}

// Coefficients returns the coefficient state.
func (s *Subsampling) Coefficients() *State { return s.coeff }

// ReplicableOrder returns 3: [features, height, width].
func (s *Subsampling) ReplicableOrder() int { return 3 }

// cropped returns the view of t covering whole blocks only.
func (s *Subsampling) cropped(op string, t *tensor.Tensor) *tensor.Tensor {
	if t.Order() != 3 || t.Dim(0) != s.thickness {
		panic(fmt.Sprintf("Subsampling.%s: expected [%d, height, width] input, got %v", op, s.thickness, t.Shape()))
	}
	h, w := t.Dim(1), t.Dim(2)
	if h%s.sh != 0 || w%s.sw != 0 {
		if !s.crop {
			panic(fmt.Sprintf("Subsampling.%s: input %dx%d is not a multiple of stride %dx%d",
				op, h, w, s.sh, s.sw))
		}
		t = t.Narrow(1, h-h%s.sh, 0).Narrow(2, w-w%s.sw, 0)
	}
	return t
}

func (s *Subsampling) boxSum(in *tensor.Tensor, f int, shape tensor.Shape) *tensor.Tensor {
	sub := tensor.Zeros(shape)
	tensor.BoxSum2D(sub, in.Select(0, f), s.sh, s.sw)
	return sub
}

// Forward computes coeff-scaled block sums.
func (s *Subsampling) Forward(in, out *State) {
	inx := s.cropped("Forward", in.X)
	resizeOutput(s.name, out, tensor.Shape{s.thickness, inx.Dim(1) / s.sh, inx.Dim(2) / s.sw})
	for f := 0; f < s.thickness; f++ {
		o := out.X.Select(0, f)
		tensor.BoxSum2D(o, inx.Select(0, f), s.sh, s.sw)
		tensor.Scale(o, s.coeff.X.At(f))
	}
}

// Backward accumulates dcoeff += dot(sum, out.DX) and oversamples
// coeff·out.DX into in.DX. Block sums are recomputed from in.X.
func (s *Subsampling) Backward(in, out *State) {
	inx := s.cropped("Backward", in.X)
	indx := s.cropped("Backward", in.DX)
	oshape := tensor.Shape{out.DX.Dim(1), out.DX.Dim(2)}
	for f := 0; f < s.thickness; f++ {
		g := out.DX.Select(0, f)
		sub := s.boxSum(inx, f, oshape)
		s.coeff.DX.Set(s.coeff.DX.At(f)+tensor.Dot(sub, g), f)
		tensor.Oversample2DAcc(indx.Select(0, f), g, s.sh, s.sw, s.coeff.X.At(f))
	}
}

// CurvatureBackward accumulates ddcoeff += dot(sum², out.DDX) and
// oversamples coeff²·out.DDX into in.DDX.
func (s *Subsampling) CurvatureBackward(in, out *State) {
	inx := s.cropped("CurvatureBackward", in.X)
	inddx := s.cropped("CurvatureBackward", in.DDX)
	oshape := tensor.Shape{out.DDX.Dim(1), out.DDX.Dim(2)}
	for f := 0; f < s.thickness; f++ {
		g := out.DDX.Select(0, f)
		sub := s.boxSum(inx, f, oshape)
		tensor.Square(sub, sub)
		s.coeff.DDX.Set(s.coeff.DDX.At(f)+tensor.Dot(sub, g), f)
		c := s.coeff.X.At(f)
		tensor.Oversample2DAcc(inddx.Select(0, f), g, s.sh, s.sw, c*c)
	}
}

// Forget sets every coefficient to v / (sh·sw)^p.
func (s *Subsampling) Forget(fp ForgetParam) {
	tensor.Fill(s.coeff.X, fp.Value/math.Pow(float64(s.sh*s.sw), fp.Exponent))
}

// ForwardSize maps [f, h, w] to [f, max(1, h/sh), max(1, w/sw)].
func (s *Subsampling) ForwardSize(in tensor.Shape) tensor.Shape {
	n := len(in)
	out := in.Clone()
	out[n-2] = max(1, in[n-2]/s.sh)
	out[n-1] = max(1, in[n-1]/s.sw)
	return out
}

// BackwardSize maps [f, h, w] to [f, h·sh, w·sw].
func (s *Subsampling) BackwardSize(out tensor.Shape) tensor.Shape {
	n := len(out)
	in := out.Clone()
	in[n-2] = out[n-2] * s.sh
	in[n-1] = out[n-1] * s.sw
	return in
}

// Copy returns a Subsampling with private storage and the same coefficients.
func (s *Subsampling) Copy() Module {
	cp := *s
	cp.coeff = NewBBState(s.coeff.X.Shape())
	tensor.Copy(cp.coeff.X, s.coeff.X)
	return &cp
}

// Describe implements Module.
func (s *Subsampling) Describe() string {
	return fmt.Sprintf("subsampling module %s with thickness %d, kernel %dx%d and stride %dx%d",
		s.name, s.thickness, s.kernel[0], s.kernel[1], s.sh, s.sw)
}

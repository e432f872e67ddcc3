package nn

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/tensor"
)

// MaxSS is max subsampling over [features, height, width] states. Window
// (i, j) starts at (i·sh, j·sw), spans kh×kw and is clipped to the input.
// The position of each window's maximum (the "switch", first maximum in
// row-major scan order) receives all of the output gradient. Switches are
// derived from in.X on every pass and are not stored, so one instance can
// serve every slice of a replicated input.
type MaxSS struct {
	named
	noForget
	thickness int
	kh, kw    int
	sh, sw    int
}

// NewMaxSS creates a max subsampling module.
func NewMaxSS(thickness int, kernel, stride [2]int, name string) (*MaxSS, error) {
	if thickness <= 0 || stride[0] <= 0 || stride[1] <= 0 || kernel[0] <= 0 || kernel[1] <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "maxss %s: thickness %d, kernel %v, stride %v", name, thickness, kernel, stride)
	}
	return &MaxSS{
		named:     named{name},
		thickness: thickness,
		kh:        kernel[0],
		kw:        kernel[1],
		sh:        stride[0],
		sw:        stride[1],
	}, nil
}

// ReplicableOrder returns 3: [features, height, width].
func (m *MaxSS) ReplicableOrder() int { return 3 }

func (m *MaxSS) check(op string, in *tensor.Tensor) {
	if in.Order() != 3 {
		panic(fmt.Sprintf("MaxSS.%s: expected [features, height, width] input, got %v", op, in.Shape()))
	}
	if in.Dim(0) != m.thickness {
		panic(fmt.Sprintf("MaxSS.%s: %s expects %d features, got input %v", op, m.name, m.thickness, in.Shape()))
	}
	if in.Dim(1)%m.sh != 0 || in.Dim(2)%m.sw != 0 {
		panic(fmt.Sprintf("MaxSS.%s: input %dx%d is not a multiple of stride %dx%d",
			op, in.Dim(1), in.Dim(2), m.sh, m.sw))
	}
}

// argmax returns the input position of the maximum of window (i, j) of
// feature map x.
func (m *MaxSS) argmax(x *tensor.Tensor, i, j int) (int, int) {
	r0, c0 := i*m.sh, j*m.sw
	r1, c1 := min(r0+m.kh, x.Dim(0)), min(c0+m.kw, x.Dim(1))
	br, bc := r0, c0
	best := x.At(r0, c0)
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			if v := x.At(r, c); v > best {
				best, br, bc = v, r, c
			}
		}
	}
	return br, bc
}

// Forward writes each window maximum.
func (m *MaxSS) Forward(in, out *State) {
	m.check("Forward", in.X)
	shape := tensor.Shape{in.X.Dim(0), in.X.Dim(1) / m.sh, in.X.Dim(2) / m.sw}
	resizeOutput(m.name, out, shape)
	for f := 0; f < shape[0]; f++ {
		x := in.X.Select(0, f)
		for i := 0; i < shape[1]; i++ {
			for j := 0; j < shape[2]; j++ {
				r, c := m.argmax(x, i, j)
				out.X.Set(x.At(r, c), f, i, j)
			}
		}
	}
}

// Switches returns the input position of every window maximum of in, one
// per output element in row-major order over [f, i, j].
func (m *MaxSS) Switches(in *State) [][2]int {
	m.check("Switches", in.X)
	h, w := in.X.Dim(1)/m.sh, in.X.Dim(2)/m.sw
	sw := make([][2]int, 0, in.X.Dim(0)*h*w)
	for f := 0; f < in.X.Dim(0); f++ {
		x := in.X.Select(0, f)
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				r, c := m.argmax(x, i, j)
				sw = append(sw, [2]int{r, c})
			}
		}
	}
	return sw
}

// scatter adds each element of g to its window's maximum position in dst.
func (m *MaxSS) scatter(op string, in *State, dst, g *tensor.Tensor) {
	m.check(op, in.X)
	for f := 0; f < g.Dim(0); f++ {
		x := in.X.Select(0, f)
		d := dst.Select(0, f)
		for i := 0; i < g.Dim(1); i++ {
			for j := 0; j < g.Dim(2); j++ {
				r, c := m.argmax(x, i, j)
				d.Set(d.At(r, c)+g.At(f, i, j), r, c)
			}
		}
	}
}

// Backward routes out.DX to the switches.
func (m *MaxSS) Backward(in, out *State) {
	m.scatter("Backward", in, in.DX, out.DX)
}

// CurvatureBackward routes out.DDX to the switches.
func (m *MaxSS) CurvatureBackward(in, out *State) {
	m.scatter("CurvatureBackward", in, in.DDX, out.DDX)
}

// ForwardSize maps [f, h, w] to [f, max(1, h/sh), max(1, w/sw)].
func (m *MaxSS) ForwardSize(in tensor.Shape) tensor.Shape {
	h, w := spatial("MaxSS.ForwardSize", in)
	return withSpatial(in, max(1, h/m.sh), max(1, w/m.sw))
}

// BackwardSize maps [f, h, w] to [f, h·sh, w·sw].
func (m *MaxSS) BackwardSize(out tensor.Shape) tensor.Shape {
	h, w := spatial("MaxSS.BackwardSize", out)
	return withSpatial(out, h*m.sh, w*m.sw)
}

// Describe implements Module.
func (m *MaxSS) Describe() string {
	return fmt.Sprintf("maxss module %s with thickness %d, kernel %dx%d and stride %dx%d",
		m.name, m.thickness, m.kh, m.kw, m.sh, m.sw)
}

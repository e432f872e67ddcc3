package nn

import (
	"fmt"

	"github.com/born-ml/curvnet/internal/tensor"
)

// Padding and cropping modules act on the last two (spatial) dimensions and
// keep every other dimension. Gradients flow only through the region copied
// in the forward pass.

// window returns the spatial sub-view [top, top+h) x [left, left+w) of t.
func window(t *tensor.Tensor, top, left, h, w int) *tensor.Tensor {
	n := t.Order()
	return t.Narrow(n-2, h, top).Narrow(n-1, w, left)
}

func spatial(op string, s tensor.Shape) (int, int) {
	if len(s) < 2 {
		panic(fmt.Sprintf("%s: expected at least 2 dimensions, got %v", op, s))
	}
	return s[len(s)-2], s[len(s)-1]
}

func withSpatial(s tensor.Shape, h, w int) tensor.Shape {
	o := s.Clone()
	o[len(o)-2] = h
	o[len(o)-1] = w
	return o
}

// ZeroPad surrounds the input with zeros.
type ZeroPad struct {
	named
	noForget
	top, left, bottom, right int
}

// NewZeroPad creates a zero padding module.
func NewZeroPad(top, left, bottom, right int, name string) *ZeroPad {
	return &ZeroPad{named: named{name}, top: top, left: left, bottom: bottom, right: right}
}

// NewZeroPadForKernel pads so that a valid convolution with a kh×kw kernel
// preserves spatial size: floor(k/2) before, floor(k/2) after, minus one
// after for even kernels.
func NewZeroPadForKernel(kh, kw int, name string) *ZeroPad {
	top, left := kh/2, kw/2
	bottom, right := top, left
	if kh%2 == 0 {
		bottom--
	}
	if kw%2 == 0 {
		right--
	}
	return NewZeroPad(top, left, bottom, right, name)
}

// Forward copies in.X into the center of a zeroed out.X.
func (z *ZeroPad) Forward(in, out *State) {
	checkDifferent("ZeroPad.Forward", in, out)
	resizeOutput(z.name, out, z.ForwardSize(in.X.Shape()))
	out.ClearX()
	h, w := spatial("ZeroPad.Forward", in.X.Shape())
	tensor.Copy(window(out.X, z.top, z.left, h, w), in.X)
}

// Backward accumulates the center of out.DX into in.DX.
func (z *ZeroPad) Backward(in, out *State) {
	h, w := spatial("ZeroPad.Backward", in.X.Shape())
	tensor.Accumulate(in.DX, window(out.DX, z.top, z.left, h, w))
}

// CurvatureBackward accumulates the center of out.DDX into in.DDX.
func (z *ZeroPad) CurvatureBackward(in, out *State) {
	h, w := spatial("ZeroPad.CurvatureBackward", in.X.Shape())
	tensor.Accumulate(in.DDX, window(out.DDX, z.top, z.left, h, w))
}

// ForwardSize adds the padding.
func (z *ZeroPad) ForwardSize(in tensor.Shape) tensor.Shape {
	h, w := spatial("ZeroPad.ForwardSize", in)
	return withSpatial(in, h+z.top+z.bottom, w+z.left+z.right)
}

// BackwardSize removes the padding.
func (z *ZeroPad) BackwardSize(out tensor.Shape) tensor.Shape {
	h, w := spatial("ZeroPad.BackwardSize", out)
	return withSpatial(out, h-z.top-z.bottom, w-z.left-z.right)
}

// Describe implements Module.
func (z *ZeroPad) Describe() string {
	return fmt.Sprintf("zpad module %s with borders top %d, left %d, bottom %d, right %d",
		z.name, z.top, z.left, z.bottom, z.right)
}

// MirrorPad pads nrow rows and ncol columns on each side with a mirror image
// of the input border (the edge row/column included).
type MirrorPad struct {
	named
	noForget
	nrow, ncol int
}

// NewMirrorPad creates a mirror padding module.
func NewMirrorPad(nrow, ncol int, name string) *MirrorPad {
	return &MirrorPad{named: named{name}, nrow: nrow, ncol: ncol}
}

// mirror maps a padded coordinate to its source coordinate in [0, n).
func mirror(k, n int) int {
	switch {
	case k < 0:
		return -k - 1
	case k >= n:
		return 2*n - k - 1
	}
	return k
}

// Forward copies in.X and mirrors its borders.
func (m *MirrorPad) Forward(in, out *State) {
	checkDifferent("MirrorPad.Forward", in, out)
	h, w := spatial("MirrorPad.Forward", in.X.Shape())
	if m.nrow > h || m.ncol > w {
		panic(fmt.Sprintf("MirrorPad.Forward: padding %dx%d larger than input %dx%d", m.nrow, m.ncol, h, w))
	}
	resizeOutput(m.name, out, m.ForwardSize(in.X.Shape()))
	n := in.X.Order()
	oh, ow := h+2*m.nrow, w+2*m.ncol
	for r := 0; r < oh; r++ {
		sr := mirror(r-m.nrow, h)
		for c := 0; c < ow; c++ {
			sc := mirror(c-m.ncol, w)
			tensor.Copy(
				out.X.Narrow(n-2, 1, r).Narrow(n-1, 1, c),
				in.X.Narrow(n-2, 1, sr).Narrow(n-1, 1, sc))
		}
	}
}

// Backward accumulates the center of out.DX into in.DX.
func (m *MirrorPad) Backward(in, out *State) {
	h, w := spatial("MirrorPad.Backward", in.X.Shape())
	tensor.Accumulate(in.DX, window(out.DX, m.nrow, m.ncol, h, w))
}

// CurvatureBackward accumulates the center of out.DDX into in.DDX.
func (m *MirrorPad) CurvatureBackward(in, out *State) {
	h, w := spatial("MirrorPad.CurvatureBackward", in.X.Shape())
	tensor.Accumulate(in.DDX, window(out.DDX, m.nrow, m.ncol, h, w))
}

// ForwardSize adds 2·nrow rows and 2·ncol columns.
func (m *MirrorPad) ForwardSize(in tensor.Shape) tensor.Shape {
	h, w := spatial("MirrorPad.ForwardSize", in)
	return withSpatial(in, h+2*m.nrow, w+2*m.ncol)
}

// BackwardSize removes the padding.
func (m *MirrorPad) BackwardSize(out tensor.Shape) tensor.Shape {
	h, w := spatial("MirrorPad.BackwardSize", out)
	return withSpatial(out, h-2*m.nrow, w-2*m.ncol)
}

// Describe implements Module.
func (m *MirrorPad) Describe() string {
	return fmt.Sprintf("mirrorpad module %s with %d rows and %d columns", m.name, m.nrow, m.ncol)
}

// CutBorder removes nrow rows and ncol columns from each side.
type CutBorder struct {
	named
	noForget
	nrow, ncol int
}

// NewCutBorder creates a border cropping module.
func NewCutBorder(nrow, ncol int, name string) *CutBorder {
	return &CutBorder{named: named{name}, nrow: nrow, ncol: ncol}
}

func (c *CutBorder) inner(op string, t *tensor.Tensor) *tensor.Tensor {
	h, w := spatial(op, t.Shape())
	if h <= 2*c.nrow || w <= 2*c.ncol {
		panic(fmt.Sprintf("%s: cannot cut %dx%d borders from %dx%d", op, c.nrow, c.ncol, h, w))
	}
	return window(t, c.nrow, c.ncol, h-2*c.nrow, w-2*c.ncol)
}

// Forward copies the inner region of in.X.
func (c *CutBorder) Forward(in, out *State) {
	checkDifferent("CutBorder.Forward", in, out)
	inner := c.inner("CutBorder.Forward", in.X)
	resizeOutput(c.name, out, inner.Shape())
	tensor.Copy(out.X, inner)
}

// Backward accumulates out.DX into the inner region of in.DX.
func (c *CutBorder) Backward(in, out *State) {
	tensor.Accumulate(c.inner("CutBorder.Backward", in.DX), out.DX)
}

// CurvatureBackward accumulates out.DDX into the inner region of in.DDX.
func (c *CutBorder) CurvatureBackward(in, out *State) {
	tensor.Accumulate(c.inner("CutBorder.CurvatureBackward", in.DDX), out.DDX)
}

// ForwardSize removes the borders.
func (c *CutBorder) ForwardSize(in tensor.Shape) tensor.Shape {
	h, w := spatial("CutBorder.ForwardSize", in)
	return withSpatial(in, max(1, h-2*c.nrow), max(1, w-2*c.ncol))
}

// BackwardSize adds the borders back.
func (c *CutBorder) BackwardSize(out tensor.Shape) tensor.Shape {
	h, w := spatial("CutBorder.BackwardSize", out)
	return withSpatial(out, h+2*c.nrow, w+2*c.ncol)
}

// Describe implements Module.
func (c *CutBorder) Describe() string {
	return fmt.Sprintf("cutborder module %s removing %d rows and %d columns", c.name, c.nrow, c.ncol)
}

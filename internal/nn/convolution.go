package nn

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/tensor"
)

// ConvolutionConfig holds configuration for a Convolution module.
type ConvolutionConfig struct {
	Kernel [2]int // Kernel height and width
	Stride [2]int // Only {1, 1} is supported (default: {1, 1})
	Table  Table  // Connection table
	// Outputs declares the output thickness. When zero it is derived from
	// the table as 1 + max output index.
	Outputs int
}

// Convolution implements a table-driven 2-D convolution over [features,
// height, width] states.
//
// For every table entry k = (i, j), the input feature i is correlated
// (valid mode, no padding) with kernel slice k and accumulated into output
// feature j. Output spatial size is input size - kernel size + 1.
//
// Example:
//
//	p := nn.NewParameter()
//	conv, err := nn.NewConvolution(p, nn.ConvolutionConfig{
//	    Kernel: [2]int{5, 5},
//	    Table:  nn.FullTable(1, 6),
//	}, "c1")
type Convolution struct {
	named
	kernel    *State // [entries, kh, kw]
	table     Table
	kh, kw    int
	thickness int
	tableMax  int

	warned bool
}

// NewConvolution creates a Convolution module allocating its kernel from p.
//
// Returns ErrStrideNotSupported for a stride other than 1 and
// ErrInvalidTable for a malformed table. A table leaving some input index
// unused, or some output feature without connections, is accepted with a
// logged warning.
func NewConvolution(p *Parameter, cfg ConvolutionConfig, name string) (*Convolution, error) {
	if cfg.Stride == [2]int{} {
		cfg.Stride = [2]int{1, 1}
	}
	if cfg.Stride != [2]int{1, 1} {
		return nil, errors.Wrapf(ErrStrideNotSupported, "convolution %s: stride %dx%d", name, cfg.Stride[0], cfg.Stride[1])
	}
	if cfg.Kernel[0] <= 0 || cfg.Kernel[1] <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "convolution %s: kernel %dx%d", name, cfg.Kernel[0], cfg.Kernel[1])
	}
	if err := cfg.Table.validate(cfg.Outputs); err != nil {
		return nil, errors.Wrapf(err, "convolution %s", name)
	}
	table := append(Table(nil), cfg.Table...)
	thickness := table.MaxOut() + 1
	if cfg.Outputs > thickness {
		thickness = cfg.Outputs
	}
	if unused := table.unusedInputs(); len(unused) > 0 {
		lg().Warn("connection table does not use some inputs", "module", name, "input", unused)
	}
	fanin := table.FanIn()
	for j := 0; j < thickness; j++ {
		if j >= len(fanin) || fanin[j] == 0 {
			lg().Warn("output feature has no connection and will stay zero", "module", name, "output", j)
		}
	}
	return &Convolution{
		named:     named{name},
		kernel:    alloc(p, tensor.Shape{len(table), cfg.Kernel[0], cfg.Kernel[1]}),
		table:     table,
		kh:        cfg.Kernel[0],
		kw:        cfg.Kernel[1],
		thickness: thickness,
		tableMax:  table.MaxIn(),
	}, nil
}

// Kernel returns the kernel state, one [kh, kw] slice per table entry.
func (c *Convolution) Kernel() *State { return c.kernel }

// Table returns a copy of the connection table.
func (c *Convolution) Table() Table { return append(Table(nil), c.table...) }

// Thickness returns the number of output features.
func (c *Convolution) Thickness() int { return c.thickness }

// ReplicableOrder returns 3: [features, height, width].
func (c *Convolution) ReplicableOrder() int { return 3 }

func (c *Convolution) checkInput(op string, in *State) {
	if in.X.Order() != 3 {
		panic(fmt.Sprintf("Convolution.%s: expected [features, height, width] input, got %v", op, in.X.Shape()))
	}
	if in.X.Dim(0) < c.tableMax+1 {
		panic(fmt.Sprintf("Convolution.%s: input has %d features, table needs %d", op, in.X.Dim(0), c.tableMax+1))
	}
	if in.X.Dim(1) < c.kh || in.X.Dim(2) < c.kw {
		panic(fmt.Sprintf("Convolution.%s: input %v smaller than kernel %dx%d", op, in.X.Shape(), c.kh, c.kw))
	}
}

// Forward computes the table-driven correlation.
func (c *Convolution) Forward(in, out *State) {
	c.checkInput("Forward", in)
	if in.X.Dim(0) > c.tableMax+1 && !c.warned {
		c.warned = true
		lg().Warn("input has more features than the table uses", "module", c.name,
			"shape", in.X.Shape().String(), "expected", c.tableMax+1)
	}
	resizeOutput(c.name, out, tensor.Shape{c.thickness, in.X.Dim(1) - c.kh + 1, in.X.Dim(2) - c.kw + 1})
	out.ClearX()
	for k, e := range c.table {
		tensor.Correlate2DAcc(out.X.Select(0, e[1]), in.X.Select(0, e[0]), c.kernel.X.Select(0, k))
	}
}

// Backward accumulates the full correlation of out.DX with the kernel into
// in.DX and the correlation of input patches with out.DX into the kernel
// gradient.
func (c *Convolution) Backward(in, out *State) {
	c.checkInput("Backward", in)
	for k, e := range c.table {
		g := out.DX.Select(0, e[1])
		tensor.FullCorrelate2DAcc(in.DX.Select(0, e[0]), g, c.kernel.X.Select(0, k))
		tensor.KernelCorrelate2DAcc(c.kernel.DX.Select(0, k), in.X.Select(0, e[0]), g)
	}
}

// CurvatureBackward mirrors Backward with squared kernel and squared input.
func (c *Convolution) CurvatureBackward(in, out *State) {
	c.checkInput("CurvatureBackward", in)
	k2 := tensor.Zeros(c.kernel.X.Shape())
	tensor.Square(k2, c.kernel.X)
	in2 := tensor.Zeros(in.X.Shape())
	tensor.Square(in2, in.X)
	for k, e := range c.table {
		g := out.DDX.Select(0, e[1])
		tensor.FullCorrelate2DAcc(in.DDX.Select(0, e[0]), g, k2.Select(0, k))
		tensor.KernelCorrelate2DAcc(c.kernel.DDX.Select(0, k), in2.Select(0, e[0]), g)
	}
}

// Forget draws each kernel slice from U(-z, z) where the fan-in of its
// output feature is kernel area × number of connections to that output.
func (c *Convolution) Forget(fp ForgetParam) {
	fanin := c.table.FanIn()
	for k, e := range c.table {
		fp.uniform(c.kernel.X.Select(0, k), fp.bound(c.kh*c.kw*fanin[e[1]]))
	}
}

// ForwardSize maps [f, h, w] to [thickness, max(1, h-kh+1), max(1, w-kw+1)].
// Extra leading dimensions are kept.
func (c *Convolution) ForwardSize(in tensor.Shape) tensor.Shape {
	n := len(in)
	out := in.Clone()
	out[n-3] = c.thickness
	out[n-2] = max(1, in[n-2]-c.kh+1)
	out[n-1] = max(1, in[n-1]-c.kw+1)
	return out
}

// BackwardSize maps [f, h, w] to [tablemax+1, h+kh-1, w+kw-1].
func (c *Convolution) BackwardSize(out tensor.Shape) tensor.Shape {
	n := len(out)
	in := out.Clone()
	in[n-3] = c.tableMax + 1
	in[n-2] = out[n-2] + c.kh - 1
	in[n-1] = out[n-1] + c.kw - 1
	return in
}

// Copy returns a Convolution with private storage and the same kernel.
func (c *Convolution) Copy() Module {
	cp := &Convolution{
		named:     c.named,
		kernel:    NewBBState(c.kernel.X.Shape()),
		table:     c.Table(),
		kh:        c.kh,
		kw:        c.kw,
		thickness: c.thickness,
		tableMax:  c.tableMax,
	}
	tensor.Copy(cp.kernel.X, c.kernel.X)
	return cp
}

// Describe implements Module.
func (c *Convolution) Describe() string {
	return fmt.Sprintf("convolution module %s with %d kernels of size %dx%d, stride 1x1, table %d inputs -> %d outputs",
		c.name, len(c.table), c.kh, c.kw, c.tableMax+1, c.thickness)
}

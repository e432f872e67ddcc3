package nn

import (
	"fmt"

	"github.com/born-ml/curvnet/internal/tensor"
)

// composite chains a trainable core, an in-place bias and a squashing
// nonlinearity through one intermediate sum state, allocated on the first
// Forward once its shape is known.
type composite struct {
	named
	kind   string
	core   ReplicableModule
	bias   *AddC
	squash Module
	sum    *State
	sumOf  *tensor.Tensor // input the sum was computed from
}

func newComposite(p *Parameter, kind, name string, core ReplicableModule, features int, tanh bool) *composite {
	var squash Module
	if tanh {
		squash = NewTanh(name + ".tanh")
	} else {
		squash = NewStdSigmoid(name + ".sigmoid")
	}
	return &composite{
		named:  named{name},
		kind:   kind,
		core:   core,
		bias:   NewAddC(p, features, name+".bias"),
		squash: squash,
	}
}

// Bias returns the bias module.
func (c *composite) Bias() *AddC { return c.bias }

// Sum returns the intermediate state, nil before the first Forward.
func (c *composite) Sum() *State { return c.sum }

// ReplicableOrder returns the core module's order.
func (c *composite) ReplicableOrder() int { return c.core.ReplicableOrder() }

func (c *composite) Forward(in, out *State) {
	if c.sum == nil {
		c.sum = NewStateLike(in, tensor.Ones(in.X.Order()))
	}
	c.computeSum(in)
	c.squash.Forward(c.sum, out)
}

func (c *composite) computeSum(in *State) {
	c.core.Forward(in, c.sum)
	c.bias.Forward(c.sum, c.sum)
	c.sumOf = in.X
}

// ensureSum recomputes the sum when the last Forward saw another input, as
// happens when the layer is replicated over slices.
func (c *composite) ensureSum(in *State) {
	if c.sum == nil {
		panic(fmt.Sprintf("%s: backward called before Forward", c.name))
	}
	if !c.sumOf.SameView(in.X) {
		c.computeSum(in)
	}
}

func (c *composite) Backward(in, out *State) {
	c.ensureSum(in)
	c.sum.ClearDX()
	c.squash.Backward(c.sum, out)
	c.bias.Backward(c.sum, c.sum)
	c.core.Backward(in, c.sum)
}

func (c *composite) CurvatureBackward(in, out *State) {
	c.ensureSum(in)
	c.sum.ClearDDX()
	c.squash.CurvatureBackward(c.sum, out)
	c.bias.CurvatureBackward(c.sum, c.sum)
	c.core.CurvatureBackward(in, c.sum)
}

func (c *composite) Forget(fp ForgetParam) {
	c.core.Forget(fp)
	c.bias.Forget(fp)
}

func (c *composite) ForwardSize(in tensor.Shape) tensor.Shape   { return c.core.ForwardSize(in) }
func (c *composite) BackwardSize(out tensor.Shape) tensor.Shape { return c.core.BackwardSize(out) }

func (c *composite) Describe() string {
	return fmt.Sprintf("%s %s: %s; %s; %s", c.kind, c.name,
		c.core.Describe(), c.bias.Describe(), c.squash.Describe())
}

func (c *composite) copyComposite() *composite {
	cp := &composite{named: c.named, kind: c.kind, squash: c.squash}
	cp.core = c.core.(Copier).Copy().(ReplicableModule)
	cp.bias = c.bias.Copy().(*AddC)
	return cp
}

// FullLayer is Linear + bias + squashing.
type FullLayer struct {
	*composite
	linear *Linear
}

// NewFullLayer creates a fully connected layer. tanh selects tanh over the
// standard sigmoid.
func NewFullLayer(p *Parameter, in, out int, tanh bool, name string) *FullLayer {
	lin := NewLinear(p, in, out, name+".linear")
	return &FullLayer{composite: newComposite(p, "full layer", name, lin, out, tanh), linear: lin}
}

// Linear returns the linear module.
func (l *FullLayer) Linear() *Linear { return l.linear }

// Copy returns a layer with private storage and the same weights.
func (l *FullLayer) Copy() Module {
	c := l.copyComposite()
	return &FullLayer{composite: c, linear: c.core.(*Linear)}
}

// ConvolutionLayer is Convolution + bias + squashing.
type ConvolutionLayer struct {
	*composite
	conv *Convolution
}

// NewConvolutionLayer creates a convolution layer.
func NewConvolutionLayer(p *Parameter, cfg ConvolutionConfig, tanh bool, name string) (*ConvolutionLayer, error) {
	conv, err := NewConvolution(p, cfg, name+".conv")
	if err != nil {
		return nil, err
	}
	return &ConvolutionLayer{
		composite: newComposite(p, "convolution layer", name, conv, conv.Thickness(), tanh),
		conv:      conv,
	}, nil
}

// Convolution returns the convolution module.
func (l *ConvolutionLayer) Convolution() *Convolution { return l.conv }

// Copy returns a layer with private storage and the same weights.
func (l *ConvolutionLayer) Copy() Module {
	c := l.copyComposite()
	return &ConvolutionLayer{composite: c, conv: c.core.(*Convolution)}
}

// SubsamplingLayer is Subsampling + bias + squashing.
type SubsamplingLayer struct {
	*composite
	sub *Subsampling
}

// NewSubsamplingLayer creates a subsampling layer.
func NewSubsamplingLayer(p *Parameter, cfg SubsamplingConfig, tanh bool, name string) (*SubsamplingLayer, error) {
	sub, err := NewSubsampling(p, cfg, name+".sub")
	if err != nil {
		return nil, err
	}
	return &SubsamplingLayer{
		composite: newComposite(p, "subsampling layer", name, sub, cfg.Thickness, tanh),
		sub:       sub,
	}, nil
}

// Subsampling returns the subsampling module.
func (l *SubsamplingLayer) Subsampling() *Subsampling { return l.sub }

// Copy returns a layer with private storage and the same weights.
func (l *SubsamplingLayer) Copy() Module {
	c := l.copyComposite()
	return &SubsamplingLayer{composite: c, sub: c.core.(*Subsampling)}
}

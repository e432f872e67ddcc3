package netconf

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/nn"
)

// builder carries the state shared by nested containers: the parameter
// buffer and the branches built so far, looked up by merge modules.
type builder struct {
	arch     *Architecture
	p        *nn.Parameter
	branches map[string]*nn.Layers
	names    map[string]bool
}

// Build creates the network described by a, allocating every trainable
// tensor from p in module order. When a.Forget is set the weights are
// initialized with it.
func Build(a *Architecture, p *nn.Parameter) (*nn.Layers, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	b := &builder{arch: a, p: p, branches: map[string]*nn.Layers{}, names: map[string]bool{}}
	name := a.Name
	if name == "" {
		name = "net"
	}
	net, err := b.layers(nn.NewLayers(name), a.Modules)
	if err != nil {
		return nil, err
	}
	if last := net.LastModule(); last != nil {
		if l, ok := last.(*nn.Layers); ok && l.IsBranch() {
			return nil, errors.Wrapf(ErrInvalidArchitecture, "last module %s is a branch", last.Name())
		}
	}
	if a.Forget != nil {
		net.Forget(nn.NewForgetParam(a.Forget.Value, a.Forget.Exponent, a.Forget.Seed))
	}
	return net, nil
}

func (b *builder) layers(l *nn.Layers, specs []ModuleSpec) (*nn.Layers, error) {
	for i := range specs {
		s := specs[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("%s.%d", l.Name(), i)
		}
		if b.names[s.Name] {
			return nil, errors.Wrapf(ErrInvalidArchitecture, "duplicate module name %q", s.Name)
		}
		b.names[s.Name] = true
		m, err := b.module(&s)
		if err != nil {
			return nil, errors.Wrapf(err, "module %s", s.Name)
		}
		l.Add(m)
	}
	return l, nil
}

func (b *builder) module(s *ModuleSpec) (nn.Module, error) {
	m, err := b.base(s)
	if err != nil {
		return nil, err
	}
	if !s.Replicable {
		return m, nil
	}
	rm, ok := m.(nn.ReplicableModule)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidArchitecture, "%s modules cannot be replicated", s.Type)
	}
	return nn.Replicate(rm), nil
}

//nolint:gocyclo // one case per module type
func (b *builder) base(s *ModuleSpec) (nn.Module, error) {
	switch s.Type {
	case "linear":
		return nn.NewLinear(b.p, s.In, s.Out, s.Name), nil
	case "full", "full_layer":
		return nn.NewFullLayer(b.p, s.In, s.Out, s.Tanh, s.Name), nil
	case "convolution", "convolution_layer":
		cfg, err := b.convolution(s)
		if err != nil {
			return nil, err
		}
		if s.Type == "convolution" {
			return nn.NewConvolution(b.p, cfg, s.Name)
		}
		return nn.NewConvolutionLayer(b.p, cfg, s.Tanh, s.Name)
	case "subsampling", "subsampling_layer":
		cfg, err := subsampling(s)
		if err != nil {
			return nil, err
		}
		if s.Type == "subsampling" {
			return nn.NewSubsampling(b.p, cfg, s.Name)
		}
		return nn.NewSubsamplingLayer(b.p, cfg, s.Tanh, s.Name)
	case "maxss":
		kernel, err := pair("kernel", s.Kernel, nil)
		if err != nil {
			return nil, err
		}
		stride, err := pair("stride", s.Stride, s.Kernel)
		if err != nil {
			return nil, err
		}
		return nn.NewMaxSS(s.Thickness, kernel, stride, s.Name)
	case "addc":
		return nn.NewAddC(b.p, s.Out, s.Name), nil
	case "diag":
		return nn.NewDiag(b.p, s.Out, s.Name), nil
	case "tanh":
		return nn.NewTanh(s.Name), nil
	case "stdsigmoid":
		return nn.NewStdSigmoid(s.Name), nil
	case "abs":
		return nn.NewAbs(s.Threshold, s.Name), nil
	case "power":
		return nn.NewPower(s.P, s.Name), nil
	case "threshold":
		return nn.NewThreshold(s.Threshold, s.Value, s.Name), nil
	case "binarize":
		return nn.NewBinarize(s.Threshold, s.Low, s.High, s.Name), nil
	case "rangelut":
		ranges := make([]nn.Range, len(s.Ranges))
		for i, r := range s.Ranges {
			ranges[i] = nn.Range{Value: r.Value, Bound: r.Bound}
		}
		return nn.NewRangeLUT(ranges, s.Name)
	case "zpad":
		switch {
		case len(s.Pad) == 4:
			return nn.NewZeroPad(s.Pad[0], s.Pad[1], s.Pad[2], s.Pad[3], s.Name), nil
		case len(s.Pad) == 0 && len(s.Kernel) == 2:
			return nn.NewZeroPadForKernel(s.Kernel[0], s.Kernel[1], s.Name), nil
		}
		return nil, errors.Wrapf(ErrInvalidArchitecture, "zpad needs pad [top, left, bottom, right] or kernel [h, w], got pad %v kernel %v", s.Pad, s.Kernel)
	case "mirrorpad", "cutborder":
		pad, err := pair("pad", s.Pad, nil)
		if err != nil {
			return nil, err
		}
		if s.Type == "mirrorpad" {
			return nn.NewMirrorPad(pad[0], pad[1], s.Name), nil
		}
		return nn.NewCutBorder(pad[0], pad[1], s.Name), nil
	case "identity", "copy":
		return nn.NewIdentity(s.Name), nil
	case "branch":
		var narrow *nn.BranchNarrow
		if s.Narrow != nil {
			narrow = &nn.BranchNarrow{Dim: s.Narrow.Dim, Size: s.Narrow.Size, Offset: s.Narrow.Offset}
		}
		br, err := b.layers(nn.NewBranch(s.Name, narrow), s.Modules)
		if err != nil {
			return nil, err
		}
		b.branches[s.Name] = br
		return br, nil
	case "merge":
		if len(s.Inputs) == 0 {
			return nil, errors.Wrap(ErrInvalidArchitecture, "merge needs at least one input branch")
		}
		sources := make([]nn.StateSource, len(s.Inputs))
		for i, name := range s.Inputs {
			br, ok := b.branches[name]
			if !ok {
				return nil, errors.Wrapf(ErrInvalidArchitecture, "merge input %q is not a preceding branch", name)
			}
			sources[i] = br
		}
		return nn.NewMerge(sources, s.Dim, s.Name), nil
	}
	return nil, errors.Wrapf(ErrUnknownModule, "%q", s.Type)
}

func (b *builder) convolution(s *ModuleSpec) (nn.ConvolutionConfig, error) {
	kernel, err := pair("kernel", s.Kernel, nil)
	if err != nil {
		return nn.ConvolutionConfig{}, err
	}
	stride, err := pair("stride", s.Stride, []int{1, 1})
	if err != nil {
		return nn.ConvolutionConfig{}, err
	}
	if s.Table == nil {
		return nn.ConvolutionConfig{}, errors.Wrap(ErrInvalidArchitecture, "convolution needs a table")
	}
	table, err := b.table(s.Table)
	if err != nil {
		return nn.ConvolutionConfig{}, err
	}
	return nn.ConvolutionConfig{Kernel: kernel, Stride: stride, Table: table, Outputs: s.Outputs}, nil
}

func subsampling(s *ModuleSpec) (nn.SubsamplingConfig, error) {
	stride, err := pair("stride", s.Stride, nil)
	if err != nil {
		return nn.SubsamplingConfig{}, err
	}
	kernel, err := pair("kernel", s.Kernel, s.Stride)
	if err != nil {
		return nn.SubsamplingConfig{}, err
	}
	return nn.SubsamplingConfig{Thickness: s.Thickness, Kernel: kernel, Stride: stride, Crop: s.Crop}, nil
}

func (b *builder) table(t *TableSpec) (nn.Table, error) {
	switch t.Type {
	case "full":
		return nn.FullTable(t.In, t.Out), nil
	case "onetoone":
		return nn.OneToOneTable(t.In), nil
	case "random":
		//nolint:gosec // table sampling is not security-critical
		return nn.RandomTable(t.In, t.Out, t.FanIn, rand.New(rand.NewSource(t.Seed)))
	case "file":
		path := t.Path
		if !filepath.IsAbs(path) && b.arch.dir != "" {
			path = filepath.Join(b.arch.dir, path)
		}
		return nn.LoadTable(path)
	}
	return nil, errors.Wrapf(ErrInvalidArchitecture, "unknown table type %q", t.Type)
}

// pair reads a two-element size, falling back to def when v is empty.
func pair(field string, v, def []int) ([2]int, error) {
	if len(v) == 0 {
		v = def
	}
	if len(v) != 2 {
		return [2]int{}, errors.Wrapf(ErrInvalidArchitecture, "%s must have 2 elements, got %v", field, v)
	}
	return [2]int{v[0], v[1]}, nil
}

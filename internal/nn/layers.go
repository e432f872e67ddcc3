package nn

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/tensor"
)

// BranchNarrow restricts a branch's input to [Offset, Offset+Size) along Dim.
type BranchNarrow struct {
	Dim    int
	Size   int
	Offset int
}

// Layers is an ordered container of modules forming a pipeline.
//
// Forward runs the modules front to back, each module's output state
// becoming the next module's input. Intermediate (hidden) states are
// allocated lazily with the same tensors as the pipeline input. Backward and
// CurvatureBackward run strictly in reverse order and clear the hidden
// gradients (resp. curvatures) first.
//
// A Layers created with NewBranch does not advance the track of its parent:
// it reads the parent's current state (optionally narrowed), keeps its
// result internally, and exposes it through Output for a later Merge.
//
// Example:
//
//	net := nn.NewLayers("net")
//	net.Add(conv0)
//	net.Add(nn.NewTanh("t0"))
//	net.Forward(in, out)
type Layers struct {
	named
	modules []Module
	hiddens []*State
	ins     []*State // per-module input of the last Forward
	outs    []*State // per-module output of the last Forward

	branch bool
	narrow *BranchNarrow
	output *State
}

// NewLayers creates an empty container.
func NewLayers(name string) *Layers {
	return &Layers{named: named{name}}
}

// NewBranch creates an empty branch container. narrow may be nil.
func NewBranch(name string, narrow *BranchNarrow) *Layers {
	return &Layers{named: named{name}, branch: true, narrow: narrow}
}

// Add appends a module.
func (l *Layers) Add(m Module) {
	l.modules = append(l.modules, m)
	l.hiddens = append(l.hiddens, nil)
}

// IsBranch reports whether l is a branch.
func (l *Layers) IsBranch() bool { return l.branch }

// Output returns the state produced by the last Forward of a branch, or nil
// before the first Forward.
func (l *Layers) Output() *State { return l.output }

// Modules returns the contained modules.
func (l *Layers) Modules() []Module {
	return append([]Module(nil), l.modules...)
}

// Len returns the number of contained modules.
func (l *Layers) Len() int { return len(l.modules) }

func isBranch(m Module) bool {
	b, ok := m.(*Layers)
	return ok && b.branch
}

// Forward runs every module in order.
func (l *Layers) Forward(in, out *State) {
	if len(l.modules) == 0 && !l.branch {
		panic(fmt.Sprintf("Layers.Forward: %s is empty", l.name))
	}
	last := len(l.modules) - 1
	if !l.branch && isBranch(l.modules[last]) {
		panic(fmt.Sprintf("Layers.Forward: last module of %s is a branch", l.name))
	}
	hi := in
	if l.branch && l.narrow != nil {
		hi = in.Narrow(l.narrow.Dim, l.narrow.Size, l.narrow.Offset)
	}
	l.ins = l.ins[:0]
	l.outs = l.outs[:0]
	for i, m := range l.modules {
		var ho *State
		if i == last && !l.branch {
			ho = out
		} else {
			if l.hiddens[i] == nil {
				l.hiddens[i] = NewStateLike(in, tensor.Ones(in.X.Order()))
			}
			ho = l.hiddens[i]
		}
		m.Forward(hi, ho)
		l.ins = append(l.ins, hi)
		l.outs = append(l.outs, ho)
		if !isBranch(m) {
			hi = ho
		}
	}
	if l.branch {
		l.output = hi
	}
}

func (l *Layers) checkForwarded(op string) {
	if len(l.ins) != len(l.modules) || len(l.modules) == 0 {
		panic(fmt.Sprintf("Layers.%s: %s has not been forwarded", op, l.name))
	}
}

// Backward runs every module's Backward in reverse order. A top-level
// container clears its hidden gradients first; branches rely on their
// parent for that.
func (l *Layers) Backward(in, out *State) {
	if l.branch && len(l.modules) == 0 {
		return
	}
	l.checkForwarded("Backward")
	if !l.branch {
		l.ClearDX()
	}
	for i := len(l.modules) - 1; i >= 0; i-- {
		l.modules[i].Backward(l.ins[i], l.outs[i])
	}
}

// CurvatureBackward runs every module's CurvatureBackward in reverse order.
func (l *Layers) CurvatureBackward(in, out *State) {
	if l.branch && len(l.modules) == 0 {
		return
	}
	l.checkForwarded("CurvatureBackward")
	if !l.branch {
		l.ClearDDX()
	}
	for i := len(l.modules) - 1; i >= 0; i-- {
		l.modules[i].CurvatureBackward(l.ins[i], l.outs[i])
	}
}

// ClearDX zeroes the gradients of every hidden state, branches included.
func (l *Layers) ClearDX() {
	for i, h := range l.hiddens {
		if h != nil {
			h.ClearDX()
		}
		if b, ok := l.modules[i].(*Layers); ok && b.branch {
			b.ClearDX()
		}
	}
}

// ClearDDX zeroes the curvatures of every hidden state, branches included.
func (l *Layers) ClearDDX() {
	for i, h := range l.hiddens {
		if h != nil {
			h.ClearDDX()
		}
		if b, ok := l.modules[i].(*Layers); ok && b.branch {
			b.ClearDDX()
		}
	}
}

// Forget re-initializes every module, branches included.
func (l *Layers) Forget(fp ForgetParam) {
	for _, m := range l.modules {
		m.Forget(fp)
	}
}

// OutputSize returns the shape of Output for a branch reading a track of
// shape in: the narrowed input run through the branch's modules.
func (l *Layers) OutputSize(in tensor.Shape) tensor.Shape {
	return l.ForwardSize(l.narrowShape(in))
}

func (l *Layers) narrowShape(in tensor.Shape) tensor.Shape {
	if l.narrow == nil {
		return in
	}
	return in.With(l.narrow.Dim, l.narrow.Size)
}

// walkSizes runs an input shape through the pipeline and calls visit, when
// non-nil, with every module's input and output shape. A branch reports its
// own output shape and leaves the track unchanged; a merge sizes each branch
// from the track shape at the branch's position.
func (l *Layers) walkSizes(in tensor.Shape, visit func(i int, m Module, in, out tensor.Shape)) tensor.Shape {
	s := in.Clone()
	branches := map[StateSource]tensor.Shape{}
	size := func(src StateSource, in tensor.Shape) tensor.Shape {
		if o, ok := branches[src]; ok {
			return o
		}
		return src.OutputSize(in)
	}
	for i, m := range l.modules {
		var o tensor.Shape
		switch m := m.(type) {
		case *Merge:
			o = m.outputSize(s, size)
		case *Layers:
			if m.branch {
				branches[m] = m.OutputSize(s)
				if visit != nil {
					visit(i, m, s, branches[m])
				}
				continue
			}
			o = m.ForwardSize(s)
		default:
			o = m.ForwardSize(s)
		}
		if visit != nil {
			visit(i, m, s, o)
		}
		s = o
	}
	return s
}

// ForwardSize chains the modules' ForwardSize. It depends only on in and
// the modules' fixed parameters.
func (l *Layers) ForwardSize(in tensor.Shape) tensor.Shape {
	return l.walkSizes(in, nil)
}

// BackwardSize chains the modules' BackwardSize in reverse, skipping
// branches.
func (l *Layers) BackwardSize(out tensor.Shape) tensor.Shape {
	s, _ := l.backwardRange(0, len(l.modules), out, nil)
	return s
}

// backwardRange runs BackwardSize over modules [lo, hi) in reverse. When fwd
// holds the forward output shapes, a shape whose rank no longer matches the
// module's output is reported as ErrShapeMismatch instead of being passed on.
func (l *Layers) backwardRange(lo, hi int, out tensor.Shape, fwd []tensor.Shape) (tensor.Shape, error) {
	s := out.Clone()
	for i := hi - 1; i >= lo; i-- {
		m := l.modules[i]
		if isBranch(m) {
			continue
		}
		if fwd != nil && len(s) != len(fwd[i]) {
			return nil, errors.Wrapf(ErrShapeMismatch, "%s produces %v, its input cannot be inferred from %v",
				m.Name(), fwd[i], s)
		}
		mg, ok := m.(*Merge)
		if !ok {
			s = m.BackwardSize(s)
			continue
		}
		s = mg.inputSize(s, func(src StateSource, in tensor.Shape) tensor.Shape {
			j := l.index(src)
			if j < 0 || j >= i {
				return src.OutputSize(in)
			}
			at, _ := l.backwardRange(j+1, i, in, nil)
			return src.OutputSize(at)
		})
	}
	return s, nil
}

// index returns the position of branch src in l, or -1.
func (l *Layers) index(src StateSource) int {
	for i, m := range l.modules {
		if b, ok := m.(*Layers); ok && StateSource(b) == src {
			return i
		}
	}
	return -1
}

// MinInputSize returns the smallest input shape producing at least a 1x1
// output, obtained by a forward-size / backward-size round trip. It returns
// ErrShapeMismatch when the round trip cannot recover the input rank, e.g.
// when a Linear module flattens the output of spatial modules.
func (l *Layers) MinInputSize(in tensor.Shape) (tensor.Shape, error) {
	fwd := make([]tensor.Shape, len(l.modules))
	o := l.walkSizes(in, func(i int, _ Module, _, out tensor.Shape) { fwd[i] = out }).Clone()
	for i := 1; i < len(o); i++ {
		o[i] = 1
	}
	return l.backwardRange(0, len(l.modules), o, fwd)
}

// Find returns the first module named name, searching nested containers.
func (l *Layers) Find(name string) Module {
	for _, m := range l.modules {
		if m.Name() == name {
			return m
		}
		if sub, ok := m.(*Layers); ok {
			if found := sub.Find(name); found != nil {
				return found
			}
		}
	}
	return nil
}

// LastModule returns the last module, or nil when empty.
func (l *Layers) LastModule() Module {
	if len(l.modules) == 0 {
		return nil
	}
	return l.modules[len(l.modules)-1]
}

// Pretty walks an input shape through the pipeline, one line per module.
func (l *Layers) Pretty(in tensor.Shape) string {
	var b strings.Builder
	l.walkSizes(in, func(_ int, m Module, s, o tensor.Shape) {
		if sub, ok := m.(*Layers); ok && sub.branch {
			fmt.Fprintf(&b, "%s (branch):\n", m.Name())
			for _, line := range strings.Split(strings.TrimRight(sub.Pretty(sub.narrowShape(s)), "\n"), "\n") {
				fmt.Fprintf(&b, "  %s\n", line)
			}
			return
		}
		fmt.Fprintf(&b, "%s: %v -> %v\n", m.Name(), s, o)
	})
	return b.String()
}

// Copy returns a container of copies of every module supporting Copy.
// Branches are copied too, and merges of the copy read from the copied
// branches.
func (l *Layers) Copy() Module {
	return l.copyWith(map[StateSource]StateSource{})
}

func (l *Layers) copyWith(branches map[StateSource]StateSource) *Layers {
	c := &Layers{named: l.named, branch: l.branch}
	if l.narrow != nil {
		n := *l.narrow
		c.narrow = &n
	}
	for _, m := range l.modules {
		switch m := m.(type) {
		case *Layers:
			sub := m.copyWith(branches)
			branches[m] = sub
			c.Add(sub)
		case *Merge:
			sources := make([]StateSource, len(m.sources))
			for i, src := range m.sources {
				if cp, ok := branches[src]; ok {
					src = cp
				}
				sources[i] = src
			}
			c.Add(m.copyWith(sources))
		case Copier:
			c.Add(m.Copy())
		default:
			c.Add(m)
		}
	}
	return c
}

// Describe lists the contained modules.
func (l *Layers) Describe() string {
	var b strings.Builder
	kind := "layers"
	if l.branch {
		kind = "branch"
	}
	fmt.Fprintf(&b, "%s %s with %d modules:", kind, l.name, len(l.modules))
	for i, m := range l.modules {
		fmt.Fprintf(&b, "\n  %d: %s", i, strings.ReplaceAll(m.Describe(), "\n", "\n  "))
	}
	return b.String()
}

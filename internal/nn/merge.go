package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/curvnet/internal/tensor"
)

// StateSource provides a state produced elsewhere in a pipeline, typically a
// branch's output. OutputSize is the shape Output will have when the source
// reads an input of shape in.
type StateSource interface {
	Name() string
	Output() *State
	OutputSize(in tensor.Shape) tensor.Shape
}

// sourceSize returns the output shape of src for the given input shape.
type sourceSize func(src StateSource, in tensor.Shape) tensor.Shape

func readsInput(src StateSource, in tensor.Shape) tensor.Shape { return src.OutputSize(in) }

// Merge concatenates its input with the outputs of other sources along one
// dimension: the main input first, then each source in order. Backward
// splits the output gradient back into the same slices.
type Merge struct {
	named
	noForget
	sources []StateSource
	dim     int
}

// NewMerge creates a merge module.
func NewMerge(sources []StateSource, dim int, name string) *Merge {
	return &Merge{named: named{name}, sources: append([]StateSource(nil), sources...), dim: dim}
}

func (m *Merge) source(op string, i int) *State {
	s := m.sources[i].Output()
	if s == nil {
		panic(fmt.Sprintf("Merge.%s: source %s has no output yet", op, m.sources[i].Name()))
	}
	return s
}

// Forward writes the concatenation into out.X.
func (m *Merge) Forward(in, out *State) {
	checkDifferent("Merge.Forward", in, out)
	shape := in.X.Shape()
	for i := range m.sources {
		s := m.source("Forward", i).X.Shape()
		if !s.With(m.dim, shape[m.dim]).Equal(shape) {
			panic(fmt.Sprintf("Merge.Forward: source %s has shape %v, incompatible with %v along dimension %d",
				m.sources[i].Name(), s, in.X.Shape(), m.dim))
		}
		shape[m.dim] += s[m.dim]
	}
	resizeOutput(m.name, out, shape)
	offset := 0
	m.parts("Forward", in, func(s *State) {
		n := s.X.Dim(m.dim)
		tensor.Copy(out.X.Narrow(m.dim, n, offset), s.X)
		offset += n
	})
}

// Backward accumulates each slice of out.DX into its source's gradient.
func (m *Merge) Backward(in, out *State) {
	offset := 0
	m.parts("Backward", in, func(s *State) {
		n := s.DX.Dim(m.dim)
		tensor.Accumulate(s.DX, out.DX.Narrow(m.dim, n, offset))
		offset += n
	})
}

// CurvatureBackward accumulates each slice of out.DDX into its source's
// curvature.
func (m *Merge) CurvatureBackward(in, out *State) {
	offset := 0
	m.parts("CurvatureBackward", in, func(s *State) {
		n := s.DDX.Dim(m.dim)
		tensor.Accumulate(s.DDX, out.DDX.Narrow(m.dim, n, offset))
		offset += n
	})
}

func (m *Merge) parts(op string, in *State, f func(*State)) {
	f(in)
	for i := range m.sources {
		f(m.source(op, i))
	}
}

// copyWith returns a merge of the same layout reading from sources.
func (m *Merge) copyWith(sources []StateSource) *Merge {
	return NewMerge(sources, m.dim, m.name)
}

// ForwardSize adds the sizes of the sources along the merge dimension,
// assuming every source reads the merge input. Inside a Layers the sources
// are sized from the shape at their own position instead.
func (m *Merge) ForwardSize(in tensor.Shape) tensor.Shape {
	return m.outputSize(in, readsInput)
}

// BackwardSize returns the smallest input shape whose ForwardSize reaches
// out along the merge dimension.
func (m *Merge) BackwardSize(out tensor.Shape) tensor.Shape {
	return m.inputSize(out, readsInput)
}

func (m *Merge) outputSize(in tensor.Shape, size sourceSize) tensor.Shape {
	out := in.Clone()
	for _, s := range m.sources {
		out[m.dim] += size(s, in)[m.dim]
	}
	return out
}

func (m *Merge) inputSize(out tensor.Shape, size sourceSize) tensor.Shape {
	for k := 1; k < out[m.dim]; k++ {
		in := out.With(m.dim, k)
		if m.outputSize(in, size)[m.dim] >= out[m.dim] {
			return in
		}
	}
	return out.Clone()
}

// Describe implements Module.
func (m *Merge) Describe() string {
	names := make([]string, len(m.sources))
	for i, s := range m.sources {
		names[i] = s.Name()
	}
	return fmt.Sprintf("merge module %s, merging main input + %d inputs (%s) along dimension %d",
		m.name, len(m.sources), strings.Join(names, ", "), m.dim)
}

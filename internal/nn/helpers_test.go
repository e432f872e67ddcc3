package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/curvnet/internal/tensor"
)

const (
	fdEps = 1e-6
	fdTol = 1e-6
)

// randomState returns a state with x drawn from U(lo, hi).
func randomState(shape tensor.Shape, seed int64, lo, hi float64) *State {
	s := NewBBState(shape)
	fillUniform(s.X, rand.New(rand.NewSource(seed)), lo, hi)
	return s
}

func fillUniform(t *tensor.Tensor, r *rand.Rand, lo, hi float64) {
	tensor.Apply(t, t, func(float64) float64 { return lo + (hi-lo)*r.Float64() })
}

// forwardValues runs m on in into a fresh state and returns the output.
func forwardValues(m Module, in *State) []float64 {
	out := NewFState(tensor.Shape{1})
	m.Forward(in, out)
	return out.X.Values()
}

// column returns d out / d vals[i] by central differences.
func column(m Module, in *State, vals []float64, i int) []float64 {
	v := vals[i]
	vals[i] = v + fdEps
	plus := forwardValues(m, in)
	vals[i] = v - fdEps
	minus := forwardValues(m, in)
	vals[i] = v
	col := make([]float64, len(plus))
	for j := range col {
		col[j] = (plus[j] - minus[j]) / (2 * fdEps)
	}
	return col
}

type gradCheck struct {
	// curvature also checks the Gauss-Newton diagonal Σ J² · ddx.
	curvature bool
	seed      int64
}

// check runs the three passes of m with random output gradient and
// curvature, then compares in.DX/in.DDX and p.DX/p.DDX (when p is not nil)
// against finite-difference Jacobians.
func (c gradCheck) check(t *testing.T, m Module, in *State, p *Parameter) {
	t.Helper()
	out := NewBBState(tensor.Shape{1})
	m.Forward(in, out)
	r := rand.New(rand.NewSource(c.seed + 1))
	fillUniform(out.DX, r, -1, 1)
	fillUniform(out.DDX, r, 0.1, 1)
	g, h := out.DX.Values(), out.DDX.Values()

	in.ClearDX()
	in.ClearDDX()
	if p != nil {
		p.ClearDX()
		p.ClearDDX()
	}
	m.Backward(in, out)
	if c.curvature {
		m.CurvatureBackward(in, out)
	}

	compare := func(label string, vals, dx, ddx []float64) {
		require.Len(t, dx, len(vals))
		for i := range vals {
			col := column(m, in, vals, i)
			require.Len(t, col, len(g))
			var wantDX, wantDDX float64
			for j, d := range col {
				wantDX += d * g[j]
				wantDDX += d * d * h[j]
			}
			assert.InDelta(t, wantDX, dx[i], fdTol, "%s dx[%d]", label, i)
			if c.curvature {
				assert.InDelta(t, wantDDX, ddx[i], fdTol, "%s ddx[%d]", label, i)
			}
		}
	}
	compare("input", in.X.Data(), in.DX.Values(), in.DDX.Values())
	if p != nil {
		compare("parameter", p.X().Data(), p.DX().Values(), p.DDX().Values())
	}
}

// recoverPanic returns the value m panicked with, or nil.
func recoverPanic(f func()) (v any) {
	defer func() { v = recover() }()
	f()
	return nil
}

package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/curvnet/internal/tensor"
)

func TestLinear_Forward(t *testing.T) {
	lin := NewLinear(nil, 3, 2, "f")
	copy(lin.Weights().X.Data(), []float64{
		1, 2, 3,
		-1, 0, 1,
	})
	in := NewBBState(tensor.Shape{3})
	copy(in.X.Data(), []float64{1, 1, 2})
	out := NewBBState(tensor.Shape{1})
	lin.Forward(in, out)
	assert.Equal(t, []float64{9, 1}, out.X.Values())
}

func TestLinear_ShapeRules(t *testing.T) {
	lin := NewLinear(nil, 12, 5, "f")
	assert.Equal(t, tensor.Shape{5, 1, 1}, lin.ForwardSize(tensor.Shape{12, 1, 1}))
	assert.Equal(t, tensor.Shape{5}, lin.ForwardSize(tensor.Shape{3, 2, 2}))
	assert.Equal(t, tensor.Shape{12, 1, 1}, lin.BackwardSize(tensor.Shape{5, 1, 1}))

	in := randomState(tensor.Shape{3, 2, 2}, 1, -1, 1)
	out := NewBBState(tensor.Shape{1})
	lin.Forward(in, out)
	assert.Equal(t, tensor.Shape{5}, out.X.Shape())
	// flattened inputs do not survive the size round trip
	assert.Equal(t, tensor.Shape{12}, lin.BackwardSize(lin.ForwardSize(tensor.Shape{3, 2, 2})))
}

func TestLinear_AliasedStates(t *testing.T) {
	lin := NewLinear(nil, 2, 2, "f")
	s := vector(1, 2)
	assert.PanicsWithError(t, "Linear.Forward: input and output states must differ", func() { lin.Forward(s, s) })
	assert.PanicsWithError(t, "Linear.Backward: input and output states must differ", func() { lin.Backward(s, s) })
	assert.PanicsWithError(t, "Linear.CurvatureBackward: input and output states must differ", func() {
		lin.CurvatureBackward(s, s)
	})
}

func TestLinear_Gradients(t *testing.T) {
	p := NewParameter()
	lin := NewLinear(p, 4, 3, "f")
	lin.Forget(NewForgetParam(1, 0.5, 3))
	gradCheck{curvature: true, seed: 11}.check(t, lin, randomState(tensor.Shape{4}, 10, -1, 1), p)
}

func TestLinear_GradientsStridedInput(t *testing.T) {
	lin := NewLinear(nil, 6, 2, "f")
	lin.Forget(NewForgetParam(1, 0.5, 4))
	base := randomState(tensor.Shape{3, 2}, 5, -1, 1)
	in := &State{X: base.X.Transpose(0, 1), DX: base.DX.Transpose(0, 1), DDX: base.DDX.Transpose(0, 1)}

	out := NewBBState(tensor.Shape{1})
	lin.Forward(in, out)
	want := tensor.Zeros(tensor.Shape{2})
	tensor.MatVec(want, lin.Weights().X, in.X.Clone().Flat(), false, 0)
	assert.InDeltaSlice(t, want.Values(), out.X.Values(), 1e-12)

	tensor.Fill(out.DX, 1)
	lin.Backward(in, out)
	assert.NotZero(t, tensor.SumSquares(base.DX))
}

func TestLinear_ForgetIsReproducible(t *testing.T) {
	a := NewLinear(nil, 16, 4, "a")
	b := NewLinear(nil, 16, 4, "b")
	a.Forget(NewForgetParam(1, 0.5, 42))
	b.Forget(NewForgetParam(1, 0.5, 42))
	assert.Equal(t, a.Weights().X.Values(), b.Weights().X.Values())

	// z = 1 / 16^0.5
	assert.LessOrEqual(t, tensor.Max(a.Weights().X), 0.25)
	assert.GreaterOrEqual(t, tensor.Min(a.Weights().X), -0.25)

	b.Forget(NewForgetParam(1, 0.5, 43))
	assert.NotEqual(t, a.Weights().X.Values(), b.Weights().X.Values())
}

func TestLinear_CopyIsIndependent(t *testing.T) {
	p := NewParameter()
	lin := NewLinear(p, 2, 2, "f")
	lin.Forget(NewForgetParam(1, 0, 1))
	c, ok := lin.Copy().(*Linear)
	require.True(t, ok)
	assert.Equal(t, lin.Weights().X.Values(), c.Weights().X.Values())
	assert.False(t, c.Weights().X.SameStorage(p.X()))

	tensor.Fill(c.Weights().X, 0)
	assert.NotZero(t, tensor.SumSquares(lin.Weights().X))
}

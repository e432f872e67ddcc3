package nn

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/curvnet/internal/tensor"
)

func TestMaxSS_ForwardAndSwitches(t *testing.T) {
	m, err := NewMaxSS(1, [2]int{2, 2}, [2]int{2, 2}, "m")
	require.NoError(t, err)
	in := NewBBState(tensor.Shape{1, 4, 4})
	copy(in.X.Data(), []float64{
		1, 9, 3, 4,
		5, 6, 8, 7,
		0, 2, 5, 5,
		3, 1, 4, 2,
	})
	out := NewBBState(tensor.Shape{1})
	m.Forward(in, out)
	assert.Equal(t, []float64{9, 8, 3, 5}, out.X.Values())
	// ties resolve to the first maximum in scan order
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {3, 0}, {2, 2}}, m.Switches(in))

	tensor.Fill(out.DX, 1)
	m.Backward(in, out)
	assert.Equal(t, []float64{
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 1, 0,
		1, 0, 0, 0,
	}, in.DX.Values())
}

func TestMaxSS_NonSquareSwitches(t *testing.T) {
	m, err := NewMaxSS(1, [2]int{1, 3}, [2]int{1, 3}, "m")
	require.NoError(t, err)
	in := NewBBState(tensor.Shape{1, 2, 3})
	copy(in.X.Data(), []float64{0, 0, 1, 2, 0, 0})
	out := NewBBState(tensor.Shape{1})
	m.Forward(in, out)
	assert.Equal(t, [][2]int{{0, 2}, {1, 0}}, m.Switches(in))
}

func TestMaxSS_Gradients(t *testing.T) {
	m, err := NewMaxSS(2, [2]int{2, 2}, [2]int{2, 2}, "m")
	require.NoError(t, err)
	gradCheck{curvature: true, seed: 6}.check(t, m, randomState(tensor.Shape{2, 4, 6}, 7, -1, 1), nil)
}

func TestMaxSS_Errors(t *testing.T) {
	_, err := NewMaxSS(1, [2]int{2, 2}, [2]int{0, 2}, "m")
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	_, err = NewMaxSS(0, [2]int{2, 2}, [2]int{2, 2}, "m")
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	m, err := NewMaxSS(1, [2]int{2, 2}, [2]int{2, 2}, "m")
	require.NoError(t, err)
	assert.Panics(t, func() { m.Forward(randomState(tensor.Shape{1, 3, 4}, 1, 0, 1), NewBBState(tensor.Shape{1})) })
	assert.Equal(t, tensor.Shape{1, 4, 4}, m.BackwardSize(m.ForwardSize(tensor.Shape{1, 4, 4})))
}

func TestMaxSS_ThicknessMismatch(t *testing.T) {
	m, err := NewMaxSS(2, [2]int{2, 2}, [2]int{2, 2}, "m")
	require.NoError(t, err)
	assert.PanicsWithValue(t, "MaxSS.Forward: m expects 2 features, got input 3x4x4", func() {
		m.Forward(randomState(tensor.Shape{3, 4, 4}, 1, 0, 1), NewBBState(tensor.Shape{1}))
	})
}

func TestMaxSS_ReplicatedSwitches(t *testing.T) {
	m, err := NewMaxSS(1, [2]int{2, 2}, [2]int{2, 2}, "m")
	require.NoError(t, err)
	r := Replicate(m)
	in := NewBBState(tensor.Shape{2, 1, 2, 2})
	copy(in.X.Data(), []float64{
		4, 1, 0, 0,
		0, 0, 0, 7,
	})
	out := NewBBState(tensor.Shape{1})
	r.Forward(in, out)
	assert.Equal(t, []float64{4, 7}, out.X.Values())

	// every slice routes its gradient through its own switch
	assert.Equal(t, [][2]int{{0, 0}}, m.Switches(in.Select(0, 0)))
	assert.Equal(t, [][2]int{{1, 1}}, m.Switches(in.Select(0, 1)))
	tensor.Fill(out.DX, 1)
	r.Backward(in, out)
	assert.Equal(t, []float64{1, 0, 0, 0, 0, 0, 0, 1}, in.DX.Values())
}

package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/curvnet/internal/tensor"
)

func TestReplicable_MatchesPerSample(t *testing.T) {
	conv, err := NewConvolution(nil, ConvolutionConfig{Kernel: [2]int{2, 2}, Table: FullTable(2, 3)}, "c")
	require.NoError(t, err)
	conv.Forget(NewForgetParam(1, 0.5, 1))
	rep := Replicate(conv)

	in := randomState(tensor.Shape{4, 2, 3, 3}, 2, -1, 1)
	out := NewBBState(tensor.Shape{1})
	rep.Forward(in, out)
	require.Equal(t, tensor.Shape{4, 3, 2, 2}, out.X.Shape())

	for b := 0; b < 4; b++ {
		single := NewBBState(tensor.Shape{1})
		conv.Forward(&State{X: in.X.Select(0, b).Clone()}, single)
		assert.InDeltaSlice(t, single.X.Values(), out.X.Select(0, b).Values(), 1e-12, "sample %d", b)
	}
}

func TestReplicable_TwoLeadingDims(t *testing.T) {
	lin := NewLinear(nil, 3, 2, "f")
	lin.Forget(NewForgetParam(1, 0.5, 2))
	rep := Replicate(lin)
	assert.Equal(t, tensor.Shape{5, 4, 2}, rep.ForwardSize(tensor.Shape{5, 4, 3}))
	assert.Equal(t, tensor.Shape{5, 4, 3}, rep.BackwardSize(tensor.Shape{5, 4, 2}))

	out := NewBBState(tensor.Shape{1})
	in := randomState(tensor.Shape{2, 3, 3}, 3, -1, 1)
	rep.Forward(in, out)
	assert.Equal(t, tensor.Shape{2, 3, 2}, out.X.Shape())
}

func TestReplicable_Gradients(t *testing.T) {
	p := NewParameter()
	conv, err := NewConvolution(p, ConvolutionConfig{Kernel: [2]int{2, 2}, Table: FullTable(1, 2)}, "c")
	require.NoError(t, err)
	conv.Forget(NewForgetParam(1, 0.5, 3))
	gradCheck{curvature: true, seed: 14}.check(t, Replicate(conv), randomState(tensor.Shape{3, 1, 3, 3}, 5, -1, 1), p)
}

func TestReplicable_SubsamplingAndMaxSS(t *testing.T) {
	p := NewParameter()
	sub, err := NewSubsampling(p, SubsamplingConfig{Thickness: 2, Stride: [2]int{2, 2}}, "s")
	require.NoError(t, err)
	gradCheck{curvature: true, seed: 15}.check(t, Replicate(sub), randomState(tensor.Shape{3, 2, 4, 2}, 6, -1, 1), p)

	mx, err := NewMaxSS(2, [2]int{2, 2}, [2]int{2, 2}, "m")
	require.NoError(t, err)
	gradCheck{curvature: true, seed: 16}.check(t, Replicate(mx), randomState(tensor.Shape{2, 2, 4, 4}, 7, -1, 1), nil)
}

func TestReplicable_OrderTooLow(t *testing.T) {
	conv, err := NewConvolution(nil, ConvolutionConfig{Kernel: [2]int{1, 1}, Table: OneToOneTable(1)}, "c")
	require.NoError(t, err)
	assert.Panics(t, func() {
		Replicate(conv).Forward(randomState(tensor.Shape{3, 3}, 1, 0, 1), NewBBState(tensor.Shape{1}))
	})
}

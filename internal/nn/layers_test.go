package nn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/curvnet/internal/tensor"
)

// smallNet is conv 3x3 -> tanh -> subsampling 2x2 -> tanh -> linear.
func smallNet(t *testing.T, p *Parameter) *Layers {
	t.Helper()
	conv, err := NewConvolution(p, ConvolutionConfig{Kernel: [2]int{3, 3}, Table: FullTable(1, 2)}, "c0")
	require.NoError(t, err)
	sub, err := NewSubsampling(p, SubsamplingConfig{Thickness: 2, Stride: [2]int{2, 2}}, "s1")
	require.NoError(t, err)
	net := NewLayers("net")
	net.Add(conv)
	net.Add(NewTanh("t0"))
	net.Add(sub)
	net.Add(NewTanh("t1"))
	net.Add(NewLinear(p, 8, 3, "f2"))
	net.Forget(NewForgetParam(1, 0.5, 21))
	return net
}

func TestLayers_Gradients(t *testing.T) {
	p := NewParameter()
	net := smallNet(t, p)
	// the layer-wise curvature drops cross terms, so only gradients are exact here
	gradCheck{seed: 17}.check(t, net, randomState(tensor.Shape{1, 6, 6}, 8, -1, 1), p)
}

func TestLayers_BackwardClearsHiddenGradients(t *testing.T) {
	p := NewParameter()
	net := smallNet(t, p)
	in := randomState(tensor.Shape{1, 6, 6}, 9, -1, 1)
	out := NewBBState(tensor.Shape{1})
	net.Forward(in, out)
	tensor.Fill(out.DX, 1)

	net.Backward(in, out)
	first := in.DX.Values()
	in.ClearDX()
	net.Backward(in, out)
	assert.InDeltaSlice(t, first, in.DX.Values(), 1e-12)
}

func TestLayers_Sizes(t *testing.T) {
	net := smallNet(t, NewParameter())
	assert.Equal(t, tensor.Shape{3}, net.ForwardSize(tensor.Shape{1, 6, 6}))

	conv, err := NewConvolution(nil, ConvolutionConfig{Kernel: [2]int{3, 3}, Table: FullTable(1, 2)}, "c0")
	require.NoError(t, err)
	sub, err := NewSubsampling(nil, SubsamplingConfig{Thickness: 2, Stride: [2]int{2, 2}}, "s1")
	require.NoError(t, err)
	features := NewLayers("features")
	features.Add(conv)
	features.Add(sub)
	minIn, err := features.MinInputSize(tensor.Shape{1, 6, 6})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 4, 4}, minIn)

	_, err = net.MinInputSize(tensor.Shape{1, 6, 6})
	assert.ErrorIs(t, err, ErrShapeMismatch, "linear output cannot be walked back to spatial inputs")

	pretty := net.Pretty(tensor.Shape{1, 6, 6})
	assert.Contains(t, pretty, "c0: 1x6x6 -> 2x4x4")
	assert.Contains(t, pretty, "s1: 2x4x4 -> 2x2x2")
	assert.Equal(t, 5, strings.Count(pretty, "\n"))
}

func TestLayers_FindAndDescribe(t *testing.T) {
	net := smallNet(t, NewParameter())
	inner := NewLayers("inner")
	inner.Add(NewIdentity("deep"))
	net.Add(inner)

	assert.Equal(t, "s1", net.Find("s1").Name())
	assert.Equal(t, "deep", net.Find("deep").Name())
	assert.Nil(t, net.Find("nope"))
	assert.Equal(t, "inner", net.LastModule().Name())
	assert.Equal(t, 6, net.Len())
	assert.Contains(t, net.Describe(), "linear module f2 8x3")
}

func TestLayers_Misuse(t *testing.T) {
	in := randomState(tensor.Shape{1, 2, 2}, 1, 0, 1)
	out := NewBBState(tensor.Shape{1})
	assert.Panics(t, func() { NewLayers("empty").Forward(in, out) })

	bad := NewLayers("bad")
	bad.Add(NewIdentity("c"))
	bad.Add(NewBranch("b", nil))
	assert.Panics(t, func() { bad.Forward(in, out) })

	fresh := NewLayers("fresh")
	fresh.Add(NewIdentity("c"))
	assert.Panics(t, func() { fresh.Backward(in, out) })
}

func TestLayers_BranchAndMerge(t *testing.T) {
	p := NewParameter()
	branch := NewBranch("b", &BranchNarrow{Dim: 0, Size: 1, Offset: 1})
	branch.Add(NewDiag(p, 1, "scale"))
	copy(p.X().Data(), []float64{3})

	net := NewLayers("net")
	net.Add(branch)
	net.Add(NewMerge([]StateSource{branch}, 0, "merge"))

	in := randomState(tensor.Shape{2, 2, 2}, 10, -1, 1)
	out := NewBBState(tensor.Shape{1})
	net.Forward(in, out)
	require.Equal(t, tensor.Shape{3, 2, 2}, out.X.Shape())
	assert.Equal(t, in.X.Values(), out.X.Narrow(0, 2, 0).Values())
	for i, v := range in.X.Select(0, 1).Values() {
		assert.InDelta(t, 3*v, out.X.Select(0, 2).Values()[i], 1e-12)
	}
	assert.Equal(t, tensor.Shape{1, 2, 2}, branch.Output().X.Shape())

	gradCheck{curvature: true, seed: 18}.check(t, net, in, p)
}

func TestMerge_Sizes(t *testing.T) {
	branch := NewBranch("b", nil)
	branch.Add(NewIdentity("c"))
	m := NewMerge([]StateSource{branch}, 0, "merge")
	assert.Equal(t, tensor.Shape{4, 4, 4}, m.ForwardSize(tensor.Shape{2, 4, 4}))
	assert.Equal(t, tensor.Shape{2, 4, 4}, m.BackwardSize(tensor.Shape{4, 4, 4}))
	assert.Contains(t, m.Describe(), "merging main input + 1 inputs (b) along dimension 0")

	branch.Forward(randomState(tensor.Shape{3, 4, 4}, 1, 0, 1), nil)
	assert.Panics(t, func() {
		m.Forward(randomState(tensor.Shape{2, 3, 4}, 1, 0, 1), NewBBState(tensor.Shape{1}))
	})
}

// branchNet reads a branch at the pipeline input, crops both tracks and
// merges them along the feature dimension.
func branchNet() *Layers {
	branch := NewBranch("b", &BranchNarrow{Dim: 0, Size: 1, Offset: 1})
	branch.Add(NewCutBorder(1, 1, "b.cut"))
	net := NewLayers("net")
	net.Add(branch)
	net.Add(NewCutBorder(1, 1, "cut"))
	net.Add(NewMerge([]StateSource{branch}, 0, "merge"))
	return net
}

func TestLayers_MergeSizesBeforeForward(t *testing.T) {
	net := branchNet()
	assert.Equal(t, tensor.Shape{3, 2, 2}, net.ForwardSize(tensor.Shape{2, 4, 4}))
	assert.Equal(t, tensor.Shape{2, 4, 4}, net.BackwardSize(tensor.Shape{3, 2, 2}))
	assert.Contains(t, net.Pretty(tensor.Shape{2, 4, 4}), "merge: 2x2x2 -> 3x2x2")

	in := randomState(tensor.Shape{2, 4, 4}, 2, -1, 1)
	out := NewBBState(tensor.Shape{1})
	net.Forward(in, out)
	assert.Equal(t, tensor.Shape{3, 2, 2}, out.X.Shape())

	// a new input shape is sized from the shape alone
	assert.Equal(t, tensor.Shape{3, 4, 4}, net.ForwardSize(tensor.Shape{2, 6, 6}))
	minIn, err := net.MinInputSize(tensor.Shape{2, 6, 6})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 3}, minIn)
}

func TestLayers_CopyWithBranches(t *testing.T) {
	p := NewParameter()
	branch := NewBranch("b", &BranchNarrow{Dim: 0, Size: 1, Offset: 1})
	branch.Add(NewDiag(p, 1, "scale"))
	copy(p.X().Data(), []float64{3})
	net := NewLayers("net")
	net.Add(branch)
	net.Add(NewMerge([]StateSource{branch}, 0, "merge"))

	cp, ok := net.Copy().(*Layers)
	require.True(t, ok)
	cpBranch, ok := cp.Find("b").(*Layers)
	require.True(t, ok)
	assert.NotSame(t, branch, cpBranch)
	assert.True(t, cpBranch.IsBranch())

	a := randomState(tensor.Shape{2, 2, 2}, 3, -1, 1)
	b := randomState(tensor.Shape{2, 2, 2}, 4, -1, 1)
	cpOut := NewBBState(tensor.Shape{1})
	cp.Forward(b, cpOut)
	require.Equal(t, tensor.Shape{3, 2, 2}, cpOut.X.Shape())

	net.Forward(a, NewBBState(tensor.Shape{1}))
	cp.Forward(b, cpOut)
	for i, v := range b.X.Select(0, 1).Values() {
		assert.InDelta(t, 3*v, cpOut.X.Select(0, 2).Values()[i], 1e-12)
	}
	assert.NotSame(t, branch.Output(), cpBranch.Output())
}

func TestLayers_CopyIsIndependent(t *testing.T) {
	p := NewParameter()
	net := smallNet(t, p)
	cp, ok := net.Copy().(*Layers)
	require.True(t, ok)

	in := randomState(tensor.Shape{1, 6, 6}, 11, -1, 1)
	a, b := NewBBState(tensor.Shape{1}), NewBBState(tensor.Shape{1})
	net.Forward(in, a)
	cp.Forward(in, b)
	assert.InDeltaSlice(t, a.X.Values(), b.X.Values(), 1e-12)

	tensor.Clear(p.X())
	cp.Forward(in, b)
	assert.NotZero(t, tensor.SumSquares(b.X))
}

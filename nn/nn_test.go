// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/curvnet/nn"
	"github.com/born-ml/curvnet/tensor"
)

func buildNet(t *testing.T, p *nn.Parameter) *nn.Layers {
	t.Helper()
	c1, err := nn.NewConvolutionLayer(p, nn.ConvolutionConfig{
		Kernel: [2]int{3, 3},
		Table:  nn.FullTable(1, 2),
	}, true, "c1")
	require.NoError(t, err)
	s2, err := nn.NewSubsamplingLayer(p, nn.SubsamplingConfig{Thickness: 2, Stride: [2]int{2, 2}}, true, "s2")
	require.NoError(t, err)

	net := nn.NewLayers("net")
	net.Add(c1)
	net.Add(s2)
	net.Add(nn.NewFullLayer(p, 8, 3, false, "f3"))
	return net
}

func input() *nn.State {
	in := nn.NewBBState(tensor.Shape{1, 6, 6})
	for i := range in.X.Data() {
		in.X.Data()[i] = math.Cos(float64(i))
	}
	return in
}

func TestLayers_PublicPipeline(t *testing.T) {
	p := nn.NewParameter()
	net := buildNet(t, p)
	// c1 18+2, s2 2+2, f3 24+3
	assert.Equal(t, 51, p.Footprint())
	net.Forget(nn.NewForgetParam(1, 0.5, 1))

	in, out := input(), nn.NewBBState(tensor.Shape{1})
	net.Forward(in, out)
	assert.Equal(t, tensor.Shape{3}, out.X.Shape())

	tensor.Fill(out.DX, 1)
	p.ClearDX()
	net.Backward(in, out)
	assert.NotZero(t, tensor.Dot(p.DX(), p.DX()))
}

func TestParameter_PublicSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.cvnw")

	p1 := nn.NewParameter()
	net1 := buildNet(t, p1)
	net1.Forget(nn.NewForgetParam(1, 0.5, 3))
	require.NoError(t, p1.SaveX(path))

	p2 := nn.NewParameter()
	net2 := buildNet(t, p2)
	require.NoError(t, p2.LoadX(context.Background(), path))
	assert.Equal(t, p1.X().Values(), p2.X().Values())

	o1, o2 := nn.NewBBState(tensor.Shape{1}), nn.NewBBState(tensor.Shape{1})
	net1.Forward(input(), o1)
	net2.Forward(input(), o2)
	assert.Equal(t, o1.X.Values(), o2.X.Values())
}

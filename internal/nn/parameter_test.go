package nn

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/curvnet/internal/serialization"
	"github.com/born-ml/curvnet/internal/tensor"
)

func TestParameter_AllocDisjointRegions(t *testing.T) {
	p := NewParameter()
	a := p.Alloc(tensor.Shape{2, 3})
	b := p.Alloc(tensor.Shape{4})
	assert.Equal(t, 10, p.Footprint())

	tensor.Fill(a.X, 1)
	tensor.Fill(b.X, 2)
	tensor.Fill(b.DX, 5)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1, 2, 2, 2, 2}, p.X().Values())
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 5, 5, 5, 5}, p.DX().Values())
	assert.Equal(t, 6, b.X.Offset())
}

func TestParameter_AllocKeepsEarlierValues(t *testing.T) {
	p := NewParameter()
	a := p.Alloc(tensor.Shape{2})
	tensor.Fill(a.X, 3)
	p.Alloc(tensor.Shape{1000})
	assert.Equal(t, []float64{3, 3}, a.X.Values())
	assert.Equal(t, 3.0, p.X().At(1))
}

func TestParameter_EpsilonsStartAtOne(t *testing.T) {
	p := NewParameter()
	p.Alloc(tensor.Shape{3})
	p.SetEpsilon(0.5)
	p.Alloc(tensor.Shape{2})
	assert.Equal(t, []float64{0.5, 0.5, 0.5, 1, 1}, p.Epsilons().Values())
}

func TestParameter_CurvatureAverage(t *testing.T) {
	p := NewParameter()
	s := p.Alloc(tensor.Shape{2})
	copy(s.DDX.Data(), []float64{2, 4})

	p.ClearDDeltaX()
	p.UpdateDDeltaX(0.5, 1)
	p.UpdateDDeltaX(0.5, 1)
	assert.Equal(t, []float64{2, 4}, p.DDeltaX().Values())

	p.ComputeEpsilons(2)
	assert.InDeltaSlice(t, []float64{0.25, 1.0 / 6}, p.Epsilons().Values(), 1e-12)
}

func TestParameter_SaveLoadRoundTrip(t *testing.T) {
	p := NewParameter()
	lin := NewLinear(p, 3, 2, "f")
	lin.Forget(NewForgetParam(1, 0.5, 7))
	want := p.X().Values()

	path := filepath.Join(t.TempDir(), "p.cvnw")
	require.NoError(t, p.SaveX(path))

	q := NewParameter()
	NewLinear(q, 3, 2, "f")
	require.NoError(t, q.LoadX(context.Background(), path))
	assert.Equal(t, want, q.X().Values())

	small := NewParameter()
	small.Alloc(tensor.Shape{5})
	err := small.LoadX(context.Background(), path)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestParameter_LoadConcatenatedFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "0.cvnw")
	second := filepath.Join(dir, "1.cvnw")
	require.NoError(t, serialization.WriteFile(first, serialization.KindParameter, nil,
		serialization.FloatRecord("x", tensor.MustFromSlice([]float64{1, 2, 3}, tensor.Shape{3}))))
	require.NoError(t, serialization.WriteFile(second, serialization.KindParameter, nil,
		serialization.FloatRecord("x", tensor.MustFromSlice([]float64{4}, tensor.Shape{1}))))

	p := NewParameter()
	conv := p.Alloc(tensor.Shape{3})
	bias := p.Alloc(tensor.Shape{1})
	require.NoError(t, p.LoadX(context.Background(), first, second))
	assert.Equal(t, []float64{1, 2, 3}, conv.X.Values())
	assert.Equal(t, []float64{4}, bias.X.Values())
}

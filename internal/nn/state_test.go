package nn

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/curvnet/internal/tensor"
)

func TestState_Constructors(t *testing.T) {
	f := NewFState(tensor.Shape{2, 3})
	assert.Nil(t, f.DX)
	assert.Nil(t, f.DDX)

	b := NewBState(tensor.Shape{2, 3})
	assert.NotNil(t, b.DX)
	assert.Nil(t, b.DDX)

	like := NewStateLike(b, tensor.Shape{4})
	assert.Equal(t, tensor.Shape{4}, like.Shape())
	assert.NotNil(t, like.DX)
	assert.Nil(t, like.DDX)
	assert.Equal(t, "State(4)[x,dx]", like.String())
}

func TestState_ResizeKeepsTensorsAligned(t *testing.T) {
	s := NewBBState(tensor.Shape{1})
	s.Resize(tensor.Shape{3, 2})
	assert.Equal(t, tensor.Shape{3, 2}, s.X.Shape())
	assert.Equal(t, tensor.Shape{3, 2}, s.DX.Shape())
	assert.Equal(t, tensor.Shape{3, 2}, s.DDX.Shape())
}

func TestState_SelectIsView(t *testing.T) {
	s := NewBBState(tensor.Shape{2, 3})
	row := s.Select(0, 1)
	tensor.Fill(row.X, 7)
	tensor.Fill(row.DX, 1)

	assert.Equal(t, []float64{0, 0, 0, 7, 7, 7}, s.X.Values())
	assert.Equal(t, []float64{0, 0, 0, 1, 1, 1}, s.DX.Values())
	assert.False(t, row.Same(s))
	assert.True(t, s.Same(s.Narrow(0, 2, 0)))
}

func TestState_ClearSkipsMissingTensors(t *testing.T) {
	s := NewFState(tensor.Shape{2})
	tensor.Fill(s.X, 3)
	assert.NotPanics(t, func() {
		s.ClearDX()
		s.ClearDDX()
	})
	s.ClearX()
	assert.Equal(t, []float64{0, 0}, s.X.Values())
}

func TestCheckDifferent_PanicsOnAlias(t *testing.T) {
	s := NewBBState(tensor.Shape{2, 2, 2})
	v := recoverPanic(func() { NewDiag(nil, 2, "d").Forward(s, s) })
	require.NotNil(t, v)
	err, ok := v.(error)
	require.True(t, ok)
	assert.True(t, errors.Is(err, ErrAliasedStates))
}

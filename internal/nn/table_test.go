package nn

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/curvnet/internal/tensor"
)

func TestTable_Builders(t *testing.T) {
	full := FullTable(2, 3)
	assert.Len(t, full, 6)
	assert.Equal(t, 1, full.MaxIn())
	assert.Equal(t, 2, full.MaxOut())
	assert.Equal(t, []int{2, 2, 2}, full.FanIn())

	one := OneToOneTable(3)
	assert.Equal(t, Table{{0, 0}, {1, 1}, {2, 2}}, one)
	assert.Empty(t, one.unusedInputs())
}

func TestTable_RandomFanIn(t *testing.T) {
	tab, err := RandomTable(6, 16, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, tab, 48)
	for j, f := range tab.FanIn() {
		assert.Equal(t, 3, f, "output %d", j)
	}

	seen := map[[2]int]bool{}
	usage := make([]int, 6)
	for _, e := range tab {
		assert.False(t, seen[e], "duplicate entry %v", e)
		seen[e] = true
		usage[e[0]]++
	}
	// 48 connections over 6 inputs, balanced
	for i, u := range usage {
		assert.Equal(t, 8, u, "input %d", i)
	}

	again, err := RandomTable(6, 16, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, tab, again)

	_, err = RandomTable(2, 4, 3, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, ErrInvalidTable))
}

func TestTable_TensorRoundTrip(t *testing.T) {
	tab := Table{{0, 1}, {2, 0}}
	back, err := TableFromTensor(tab.Tensor())
	require.NoError(t, err)
	assert.Equal(t, tab, back)

	_, err = TableFromTensor(tensor.MustFromSlice([]float64{0, 1.5}, tensor.Shape{1, 2}))
	assert.True(t, errors.Is(err, ErrInvalidTable))
	_, err = TableFromTensor(tensor.MustFromSlice([]float64{0, 1, 2}, tensor.Shape{1, 3}))
	assert.True(t, errors.Is(err, ErrInvalidTable))
}

func TestTable_UnusedInputs(t *testing.T) {
	assert.Equal(t, []int{1}, Table{{0, 0}, {2, 0}}.unusedInputs())
}

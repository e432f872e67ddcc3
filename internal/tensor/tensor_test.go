package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(shape Shape) *Tensor {
	t := Zeros(shape)
	d := t.Data()
	for i := range d {
		d[i] = float64(i + 1)
	}
	return t
}

func TestShape_NumElements(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
	assert.Equal(t, 0, Shape{2, 0, 4}.NumElements())
}

func TestShape_ComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
}

func TestShape_InsertWith(t *testing.T) {
	s := Shape{3, 4}
	assert.Equal(t, Shape{2, 3, 4}, s.Insert(0, 2))
	assert.Equal(t, Shape{3, 7}, s.With(1, 7))
	assert.Equal(t, Shape{3, 4}, s, "original must be untouched")
	assert.Equal(t, "3x4", s.String())
}

func TestFromSlice_Errors(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3}, Shape{2, 2})
	require.Error(t, err)
	_, err = FromSlice(nil, Shape{0})
	require.Error(t, err)
}

func TestTensor_AtSet(t *testing.T) {
	x := seq(Shape{2, 3})
	assert.Equal(t, 6.0, x.At(1, 2))
	x.Set(-1, 0, 1)
	assert.Equal(t, -1.0, x.At(0, 1))
	assert.Panics(t, func() { x.At(2, 0) })
	assert.Panics(t, func() { x.At(0) })
}

func TestTensor_SelectSharesData(t *testing.T) {
	x := seq(Shape{2, 3, 4})
	s := x.Select(0, 1)
	assert.Equal(t, Shape{3, 4}, s.Shape())
	assert.Equal(t, 13.0, s.At(0, 0))
	s.Set(100, 2, 3)
	assert.Equal(t, 100.0, x.At(1, 2, 3))
	assert.True(t, s.IsView())

	col := x.Select(2, 1)
	assert.Equal(t, Shape{2, 3}, col.Shape())
	assert.False(t, col.IsContiguous())
	assert.Equal(t, []float64{2, 6, 10, 14, 18, 22}, col.Values())
}

func TestTensor_Narrow(t *testing.T) {
	x := seq(Shape{4, 4})
	n := x.Narrow(0, 2, 1).Narrow(1, 2, 1)
	assert.Equal(t, []float64{6, 7, 10, 11}, n.Values())
	assert.Panics(t, func() { x.Narrow(0, 3, 2) })
}

func TestTensor_Transpose(t *testing.T) {
	x := seq(Shape{2, 3})
	tr := x.Transpose(0, 1)
	assert.Equal(t, Shape{3, 2}, tr.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, tr.Values())
	assert.Panics(t, func() { tr.Reshape(Shape{6}) })
}

func TestTensor_Reshape(t *testing.T) {
	x := seq(Shape{2, 3})
	r := x.Reshape(Shape{3, 2})
	assert.Equal(t, 4.0, r.At(1, 1))
	assert.Panics(t, func() { x.Reshape(Shape{4}) })
	assert.Equal(t, Shape{6}, x.Flat().Shape())
}

func TestTensor_Resize(t *testing.T) {
	x := seq(Shape{2, 2})
	x.Resize(Shape{3, 2})
	assert.Equal(t, Shape{3, 2}, x.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 0, 0}, x.Values())

	v := x.Select(0, 0)
	assert.NotPanics(t, func() { v.Resize(Shape{2}) })
	assert.Panics(t, func() { v.Resize(Shape{3}) })
}

func TestStorage_GrowKeepsViews(t *testing.T) {
	st := NewStorage(4)
	a := OnStorage(st, 0, Shape{2, 2})
	Fill(a, 3)
	st.Grow(100)
	b := OnStorage(st, 4, Shape{10})
	Fill(b, 1)
	assert.Equal(t, []float64{3, 3, 3, 3}, a.Values())
	assert.Equal(t, 100, st.Len())
	assert.Panics(t, func() { OnStorage(st, 95, Shape{10}) })
}

func TestTensor_SameView(t *testing.T) {
	x := seq(Shape{2, 3})
	assert.True(t, x.SameView(x.Reshape(Shape{2, 3})))
	assert.False(t, x.SameView(x.Select(0, 0)))
	assert.True(t, x.SameStorage(x.Select(0, 0)))
	assert.False(t, x.SameStorage(x.Clone()))
}

func TestIndex_Order(t *testing.T) {
	var got [][]int
	Index(Shape{2, 2}, func(idx []int) {
		got = append(got, append([]int(nil), idx...))
	})
	assert.Equal(t, [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, got)
}

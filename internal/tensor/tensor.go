// Package tensor implements the dense float64 n-dimensional array used by the
// curvnet engine.
//
// A Tensor is a strided view over a shared, growable Storage. Views created
// with Select, Narrow, Transpose and Reshape never copy data, and writes
// through a view are visible to every other view of the same storage.
// Tensors created by Zeros/FromSlice own their storage and may be resized;
// views may not.
package tensor

import (
	"fmt"
	"strings"
)

// Tensor is a strided view over a Storage.
type Tensor struct {
	st      *Storage
	shape   Shape
	strides []int
	offset  int
	view    bool
}

// Zeros creates a zero-filled tensor owning its storage.
//
// Dimensions may be zero (empty tensor) but not negative.
func Zeros(shape Shape) *Tensor {
	checkDims("tensor.Zeros", shape)
	return &Tensor{
		st:      NewStorage(shape.NumElements()),
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
	}
}

// FromSlice creates a tensor owning a copy of data, laid out row-major.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	t := Zeros(shape)
	copy(t.st.data, data)
	return t, nil
}

// MustFromSlice is FromSlice that panics on error. Intended for tests and
// literals.
func MustFromSlice(data []float64, shape Shape) *Tensor {
	t, err := FromSlice(data, shape)
	if err != nil {
		panic("tensor.MustFromSlice: " + err.Error())
	}
	return t
}

// OnStorage creates a contiguous view of the given shape starting at offset
// inside st. The storage must already hold offset+shape.NumElements() elements.
func OnStorage(st *Storage, offset int, shape Shape) *Tensor {
	checkDims("tensor.OnStorage", shape)
	if offset < 0 || offset+shape.NumElements() > st.Len() {
		panic(fmt.Sprintf("tensor.OnStorage: region [%d, %d) outside storage of %d elements",
			offset, offset+shape.NumElements(), st.Len()))
	}
	return &Tensor{
		st:      st,
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		offset:  offset,
		view:    true,
	}
}

func checkDims(op string, shape Shape) {
	for i, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("%s: negative dimension %d at index %d", op, d, i))
		}
	}
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Dim returns the size of dimension d.
func (t *Tensor) Dim(d int) int {
	return t.shape[d]
}

// Order returns the number of dimensions.
func (t *Tensor) Order() int {
	return len(t.shape)
}

// NumElements returns the number of elements visible through the view.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// Strides returns a copy of the element strides.
func (t *Tensor) Strides() []int {
	s := make([]int, len(t.strides))
	copy(s, t.strides)
	return s
}

// Offset returns the storage offset of the first element.
func (t *Tensor) Offset() int {
	return t.offset
}

// Storage returns the underlying storage.
func (t *Tensor) Storage() *Storage {
	return t.st
}

// IsView reports whether t is a view (not resizable).
func (t *Tensor) IsView() bool {
	return t.view
}

// IsContiguous reports whether the elements are laid out row-major without
// gaps.
func (t *Tensor) IsContiguous() bool {
	expected := 1
	for i := len(t.shape) - 1; i >= 0; i-- {
		if t.shape[i] == 1 {
			continue
		}
		if t.strides[i] != expected {
			return false
		}
		expected *= t.shape[i]
	}
	return true
}

// Data returns the elements as a slice sharing memory with the storage.
// Panics if the tensor is not contiguous. The slice is invalidated when the
// storage grows.
func (t *Tensor) Data() []float64 {
	if !t.IsContiguous() {
		panic("Tensor.Data: tensor is not contiguous")
	}
	return t.st.data[t.offset : t.offset+t.NumElements()]
}

// SameStorage reports whether t and o are views of the same storage.
func (t *Tensor) SameStorage(o *Tensor) bool {
	return t.st == o.st
}

// SameView reports whether t and o address exactly the same elements in the
// same layout.
func (t *Tensor) SameView(o *Tensor) bool {
	if t == o {
		return true
	}
	if t.st != o.st || t.offset != o.offset || !t.shape.Equal(o.shape) {
		return false
	}
	for i := range t.strides {
		if t.strides[i] != o.strides[i] {
			return false
		}
	}
	return true
}

func (t *Tensor) index(op string, idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("%s: expected %d indices, got %d", op, len(t.shape), len(idx)))
	}
	off := t.offset
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("%s: index %d out of range [0, %d) in dimension %d", op, v, t.shape[i], i))
		}
		off += v * t.strides[i]
	}
	return off
}

// At returns the element at the given indices.
func (t *Tensor) At(idx ...int) float64 {
	return t.st.data[t.index("Tensor.At", idx)]
}

// Set writes v at the given indices.
func (t *Tensor) Set(v float64, idx ...int) {
	t.st.data[t.index("Tensor.Set", idx)] = v
}

// Select returns the (order-1) view obtained by fixing dimension dim at i.
func (t *Tensor) Select(dim, i int) *Tensor {
	if dim < 0 || dim >= len(t.shape) {
		panic(fmt.Sprintf("Tensor.Select: dimension %d out of range for order %d", dim, len(t.shape)))
	}
	if i < 0 || i >= t.shape[dim] {
		panic(fmt.Sprintf("Tensor.Select: index %d out of range [0, %d)", i, t.shape[dim]))
	}
	shape := make(Shape, 0, len(t.shape)-1)
	strides := make([]int, 0, len(t.shape)-1)
	for d := range t.shape {
		if d == dim {
			continue
		}
		shape = append(shape, t.shape[d])
		strides = append(strides, t.strides[d])
	}
	return &Tensor{
		st:      t.st,
		shape:   shape,
		strides: strides,
		offset:  t.offset + i*t.strides[dim],
		view:    true,
	}
}

// Narrow returns the view of size elements along dim starting at offset.
func (t *Tensor) Narrow(dim, size, offset int) *Tensor {
	if dim < 0 || dim >= len(t.shape) {
		panic(fmt.Sprintf("Tensor.Narrow: dimension %d out of range for order %d", dim, len(t.shape)))
	}
	if size < 0 || offset < 0 || offset+size > t.shape[dim] {
		panic(fmt.Sprintf("Tensor.Narrow: range [%d, %d) outside dimension %d of size %d",
			offset, offset+size, dim, t.shape[dim]))
	}
	n := &Tensor{
		st:      t.st,
		shape:   t.shape.With(dim, size),
		strides: t.Strides(),
		offset:  t.offset + offset*t.strides[dim],
		view:    true,
	}
	return n
}

// Transpose returns the view with dimensions d1 and d2 swapped.
func (t *Tensor) Transpose(d1, d2 int) *Tensor {
	n := &Tensor{
		st:      t.st,
		shape:   t.shape.Clone(),
		strides: t.Strides(),
		offset:  t.offset,
		view:    true,
	}
	n.shape[d1], n.shape[d2] = n.shape[d2], n.shape[d1]
	n.strides[d1], n.strides[d2] = n.strides[d2], n.strides[d1]
	return n
}

// Reshape returns a view with a new shape and the same number of elements.
// The tensor must be contiguous.
func (t *Tensor) Reshape(shape Shape) *Tensor {
	checkDims("Tensor.Reshape", shape)
	if shape.NumElements() != t.NumElements() {
		panic(fmt.Sprintf("Tensor.Reshape: cannot reshape %v to %v", t.shape, shape))
	}
	if !t.IsContiguous() {
		panic("Tensor.Reshape: tensor is not contiguous")
	}
	return &Tensor{
		st:      t.st,
		shape:   shape.Clone(),
		strides: shape.ComputeStrides(),
		offset:  t.offset,
		view:    true,
	}
}

// Flat returns a 1-D view of a contiguous tensor.
func (t *Tensor) Flat() *Tensor {
	return t.Reshape(Shape{t.NumElements()})
}

// Resize changes the shape of a tensor owning its storage, growing the storage
// if needed. Resizing to the current shape is a no-op and is allowed on views;
// any other resize of a view panics.
func (t *Tensor) Resize(shape Shape) {
	if t.shape.Equal(shape) {
		return
	}
	if t.view {
		panic(fmt.Sprintf("Tensor.Resize: cannot resize view %v to %v", t.shape, shape))
	}
	checkDims("Tensor.Resize", shape)
	t.st.Grow(t.offset + shape.NumElements())
	t.shape = shape.Clone()
	t.strides = shape.ComputeStrides()
}

// Clone returns a contiguous copy owning its own storage.
func (t *Tensor) Clone() *Tensor {
	c := Zeros(t.shape)
	Copy(c, t)
	return c
}

// Values returns the elements in row-major order as a new slice.
func (t *Tensor) Values() []float64 {
	out := make([]float64, 0, t.NumElements())
	walk(func(off []int) {
		out = append(out, t.st.data[off[0]])
	}, t)
	return out
}

// String renders the shape and values. Large tensors are abbreviated.
func (t *Tensor) String() string {
	const limit = 32
	var b strings.Builder
	fmt.Fprintf(&b, "Tensor(%v)[", t.shape)
	vals := t.Values()
	for i, v := range vals {
		if i == limit {
			fmt.Fprintf(&b, " ... (%d more)", len(vals)-limit)
			break
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%g", v)
	}
	b.WriteByte(']')
	return b.String()
}

package tensor

import "fmt"

// walk visits every element of the tensors in row-major order, passing the
// storage offset of the current element in each tensor. All tensors must share
// the shape of the first one. Non-contiguous layouts are walked with an index
// stack rather than recursion.
func walk(fn func(off []int), ts ...*Tensor) {
	shape := ts[0].shape
	n := shape.NumElements()
	if n == 0 {
		return
	}
	off := make([]int, len(ts))
	contiguous := true
	for k, t := range ts {
		off[k] = t.offset
		if !t.IsContiguous() {
			contiguous = false
		}
	}
	if contiguous {
		for i := 0; i < n; i++ {
			fn(off)
			for k := range off {
				off[k]++
			}
		}
		return
	}

	idx := make([]int, len(shape))
	for i := 0; i < n; i++ {
		fn(off)
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			for k, t := range ts {
				off[k] += t.strides[d]
			}
			if idx[d] < shape[d] {
				break
			}
			for k, t := range ts {
				off[k] -= t.strides[d] * shape[d]
			}
			idx[d] = 0
		}
	}
}

func sameShape(op string, ts ...*Tensor) {
	for _, t := range ts[1:] {
		if !t.shape.Equal(ts[0].shape) {
			panic(fmt.Sprintf("%s: shape mismatch %v vs %v", op, ts[0].shape, t.shape))
		}
	}
}

func allContiguous(ts ...*Tensor) bool {
	for _, t := range ts {
		if !t.IsContiguous() {
			return false
		}
	}
	return true
}

// Index walks the index space of shape in row-major order using an index
// stack. fn receives the current multi-index; it must not retain it.
func Index(shape Shape, fn func(idx []int)) {
	n := shape.NumElements()
	if n == 0 {
		return
	}
	idx := make([]int, len(shape))
	for i := 0; i < n; i++ {
		fn(idx)
		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
}

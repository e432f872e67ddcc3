package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// general exposes a row-major 2-D tensor as a blas64 matrix.
func general(op string, a *Tensor) blas64.General {
	if a.Order() != 2 {
		panic(fmt.Sprintf("%s: expected a matrix, got shape %v", op, a.shape))
	}
	if a.strides[1] != 1 && a.shape[1] > 1 {
		panic(fmt.Sprintf("%s: matrix rows must be contiguous", op))
	}
	stride := a.strides[0]
	if stride < a.shape[1] {
		stride = a.shape[1]
	}
	return blas64.General{
		Rows:   a.shape[0],
		Cols:   a.shape[1],
		Stride: stride,
		Data:   a.st.data[a.offset:],
	}
}

// vector exposes a 1-D tensor as a blas64 vector.
func vector(op string, v *Tensor) blas64.Vector {
	if v.Order() != 1 {
		panic(fmt.Sprintf("%s: expected a vector, got shape %v", op, v.shape))
	}
	inc := v.strides[0]
	if inc <= 0 {
		inc = 1
	}
	return blas64.Vector{
		N:    v.shape[0],
		Inc:  inc,
		Data: v.st.data[v.offset:],
	}
}

// MatVec computes y = op(a)·x + beta·y where op transposes a when trans is
// true. a is (m, n); x and y are 1-D.
func MatVec(y, a, x *Tensor, trans bool, beta float64) {
	m := general("tensor.MatVec", a)
	rows, cols := m.Rows, m.Cols
	t := blas.NoTrans
	if trans {
		t = blas.Trans
		rows, cols = cols, rows
	}
	xv, yv := vector("tensor.MatVec", x), vector("tensor.MatVec", y)
	if xv.N != cols || yv.N != rows {
		panic(fmt.Sprintf("tensor.MatVec: shapes %v, %v, %v do not conform", a.shape, x.shape, y.shape))
	}
	if rows == 0 || cols == 0 {
		return
	}
	blas64.Gemv(t, 1, m, xv, beta, yv)
}

// OuterAcc computes a += alpha·x·yᵀ for a of shape (len(x), len(y)).
func OuterAcc(a, x, y *Tensor, alpha float64) {
	m := general("tensor.OuterAcc", a)
	xv, yv := vector("tensor.OuterAcc", x), vector("tensor.OuterAcc", y)
	if xv.N != m.Rows || yv.N != m.Cols {
		panic(fmt.Sprintf("tensor.OuterAcc: shapes %v, %v, %v do not conform", a.shape, x.shape, y.shape))
	}
	if m.Rows == 0 || m.Cols == 0 {
		return
	}
	blas64.Ger(alpha, xv, yv, m)
}

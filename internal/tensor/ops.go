package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Elementwise kernels. Every binary kernel panics with "tensor.Op: shape
// mismatch" when operand shapes differ. Contiguous operands go through gonum's
// floats routines; strided views fall back to the index-stack walker.

// Fill sets every element of t to v.
func Fill(t *Tensor, v float64) {
	if t.IsContiguous() {
		d := t.Data()
		for i := range d {
			d[i] = v
		}
		return
	}
	data := t.st.data
	walk(func(off []int) { data[off[0]] = v }, t)
}

// Clear sets every element of t to zero.
func Clear(t *Tensor) {
	if t.IsContiguous() {
		clear(t.Data())
		return
	}
	Fill(t, 0)
}

// Copy copies src into dst.
func Copy(dst, src *Tensor) {
	sameShape("tensor.Copy", dst, src)
	if allContiguous(dst, src) {
		copy(dst.Data(), src.Data())
		return
	}
	dd, sd := dst.st.data, src.st.data
	walk(func(off []int) { dd[off[0]] = sd[off[1]] }, dst, src)
}

// Accumulate computes dst += src.
func Accumulate(dst, src *Tensor) {
	sameShape("tensor.Accumulate", dst, src)
	if allContiguous(dst, src) {
		floats.Add(dst.Data(), src.Data())
		return
	}
	dd, sd := dst.st.data, src.st.data
	walk(func(off []int) { dd[off[0]] += sd[off[1]] }, dst, src)
}

// AddScaled computes dst += c*src.
func AddScaled(dst, src *Tensor, c float64) {
	sameShape("tensor.AddScaled", dst, src)
	if allContiguous(dst, src) {
		floats.AddScaled(dst.Data(), c, src.Data())
		return
	}
	dd, sd := dst.st.data, src.st.data
	walk(func(off []int) { dd[off[0]] += c * sd[off[1]] }, dst, src)
}

// SignAddScaled computes dst += c*sign(src), with sign(0) = 0.
func SignAddScaled(dst, src *Tensor, c float64) {
	sameShape("tensor.SignAddScaled", dst, src)
	dd, sd := dst.st.data, src.st.data
	walk(func(off []int) {
		switch v := sd[off[1]]; {
		case v > 0:
			dd[off[0]] += c
		case v < 0:
			dd[off[0]] -= c
		}
	}, dst, src)
}

// Scale computes t *= c.
func Scale(t *Tensor, c float64) {
	if t.IsContiguous() {
		floats.Scale(c, t.Data())
		return
	}
	data := t.st.data
	walk(func(off []int) { data[off[0]] *= c }, t)
}

// AddConst computes t += c.
func AddConst(t *Tensor, c float64) {
	if t.IsContiguous() {
		floats.AddConst(c, t.Data())
		return
	}
	data := t.st.data
	walk(func(off []int) { data[off[0]] += c }, t)
}

// Add computes dst = a + b.
func Add(dst, a, b *Tensor) {
	sameShape("tensor.Add", dst, a, b)
	if allContiguous(dst, a, b) {
		floats.AddTo(dst.Data(), a.Data(), b.Data())
		return
	}
	Apply2(dst, a, b, func(x, y float64) float64 { return x + y })
}

// Sub computes dst = a - b.
func Sub(dst, a, b *Tensor) {
	sameShape("tensor.Sub", dst, a, b)
	if allContiguous(dst, a, b) {
		floats.SubTo(dst.Data(), a.Data(), b.Data())
		return
	}
	Apply2(dst, a, b, func(x, y float64) float64 { return x - y })
}

// Mul computes dst = a * b elementwise.
func Mul(dst, a, b *Tensor) {
	sameShape("tensor.Mul", dst, a, b)
	if allContiguous(dst, a, b) {
		floats.MulTo(dst.Data(), a.Data(), b.Data())
		return
	}
	Apply2(dst, a, b, func(x, y float64) float64 { return x * y })
}

// Div computes dst = a / b elementwise.
func Div(dst, a, b *Tensor) {
	sameShape("tensor.Div", dst, a, b)
	if allContiguous(dst, a, b) {
		floats.DivTo(dst.Data(), a.Data(), b.Data())
		return
	}
	Apply2(dst, a, b, func(x, y float64) float64 { return x / y })
}

// MulAcc computes dst += a * b elementwise.
func MulAcc(dst, a, b *Tensor) {
	sameShape("tensor.MulAcc", dst, a, b)
	dd, ad, bd := dst.st.data, a.st.data, b.st.data
	walk(func(off []int) { dd[off[0]] += ad[off[1]] * bd[off[2]] }, dst, a, b)
}

// Lincomb computes dst = ka*a + kb*b. dst may alias a or b.
func Lincomb(dst, a *Tensor, ka float64, b *Tensor, kb float64) {
	sameShape("tensor.Lincomb", dst, a, b)
	dd, ad, bd := dst.st.data, a.st.data, b.st.data
	walk(func(off []int) { dd[off[0]] = ka*ad[off[1]] + kb*bd[off[2]] }, dst, a, b)
}

// Apply computes dst = f(src) elementwise. dst may alias src.
func Apply(dst, src *Tensor, f func(float64) float64) {
	sameShape("tensor.Apply", dst, src)
	dd, sd := dst.st.data, src.st.data
	walk(func(off []int) { dd[off[0]] = f(sd[off[1]]) }, dst, src)
}

// Apply2 computes dst = f(a, b) elementwise.
func Apply2(dst, a, b *Tensor, f func(x, y float64) float64) {
	sameShape("tensor.Apply2", dst, a, b)
	dd, ad, bd := dst.st.data, a.st.data, b.st.data
	walk(func(off []int) { dd[off[0]] = f(ad[off[1]], bd[off[2]]) }, dst, a, b)
}

// Square computes dst = src².
func Square(dst, src *Tensor) {
	Apply(dst, src, func(x float64) float64 { return x * x })
}

// Sum returns the sum of all elements.
func Sum(t *Tensor) float64 {
	if t.IsContiguous() {
		return floats.Sum(t.Data())
	}
	var s float64
	data := t.st.data
	walk(func(off []int) { s += data[off[0]] }, t)
	return s
}

// SumSquares returns the sum of squared elements.
func SumSquares(t *Tensor) float64 {
	return Dot(t, t)
}

// Dot returns the sum of elementwise products of a and b.
func Dot(a, b *Tensor) float64 {
	sameShape("tensor.Dot", a, b)
	if allContiguous(a, b) {
		return floats.Dot(a.Data(), b.Data())
	}
	var s float64
	ad, bd := a.st.data, b.st.data
	walk(func(off []int) { s += ad[off[0]] * bd[off[1]] }, a, b)
	return s
}

// SquaredDistance returns Σ(a-b)².
func SquaredDistance(a, b *Tensor) float64 {
	sameShape("tensor.SquaredDistance", a, b)
	var s float64
	ad, bd := a.st.data, b.st.data
	walk(func(off []int) {
		d := ad[off[0]] - bd[off[1]]
		s += d * d
	}, a, b)
	return s
}

// Max returns the largest element, or -Inf for an empty tensor.
func Max(t *Tensor) float64 {
	m := math.Inf(-1)
	data := t.st.data
	walk(func(off []int) {
		if data[off[0]] > m {
			m = data[off[0]]
		}
	}, t)
	return m
}

// Min returns the smallest element, or +Inf for an empty tensor.
func Min(t *Tensor) float64 {
	m := math.Inf(1)
	data := t.st.data
	walk(func(off []int) {
		if data[off[0]] < m {
			m = data[off[0]]
		}
	}, t)
	return m
}

// AllClose reports whether a and b have the same shape and every pair of
// elements differs by at most tol.
func AllClose(a, b *Tensor, tol float64) bool {
	if !a.shape.Equal(b.shape) {
		return false
	}
	ok := true
	ad, bd := a.st.data, b.st.data
	walk(func(off []int) {
		if math.Abs(ad[off[0]]-bd[off[1]]) > tol {
			ok = false
		}
	}, a, b)
	return ok
}

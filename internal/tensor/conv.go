package tensor

import "fmt"

// 2-D kernels over (rows, cols) views of any stride. They back the
// convolution and subsampling modules and all accumulate into their
// destination.

func check2D(op string, ts ...*Tensor) {
	for _, t := range ts {
		if t.Order() != 2 {
			panic(fmt.Sprintf("%s: expected 2-D tensors, got shape %v", op, t.shape))
		}
	}
}

// Correlate2DAcc accumulates the valid-mode correlation of in with kernel
// into out: out[i,j] += Σ in[i+u, j+v]·kernel[u,v].
// out must be (in.rows-k.rows+1, in.cols-k.cols+1).
func Correlate2DAcc(out, in, kernel *Tensor) {
	check2D("tensor.Correlate2DAcc", out, in, kernel)
	kh, kw := kernel.shape[0], kernel.shape[1]
	oh, ow := out.shape[0], out.shape[1]
	if oh != in.shape[0]-kh+1 || ow != in.shape[1]-kw+1 {
		panic(fmt.Sprintf("tensor.Correlate2DAcc: output %v does not match input %v and kernel %v",
			out.shape, in.shape, kernel.shape))
	}
	od, id, kd := out.st.data, in.st.data, kernel.st.data
	for i := 0; i < oh; i++ {
		for j := 0; j < ow; j++ {
			var s float64
			for u := 0; u < kh; u++ {
				irow := in.offset + (i+u)*in.strides[0] + j*in.strides[1]
				krow := kernel.offset + u*kernel.strides[0]
				for v := 0; v < kw; v++ {
					s += id[irow+v*in.strides[1]] * kd[krow+v*kernel.strides[1]]
				}
			}
			od[out.offset+i*out.strides[0]+j*out.strides[1]] += s
		}
	}
}

// FullCorrelate2DAcc back-projects grad through kernel:
// dst[i+u, j+v] += grad[i,j]·kernel[u,v]. dst has the size of the forward
// input.
func FullCorrelate2DAcc(dst, grad, kernel *Tensor) {
	check2D("tensor.FullCorrelate2DAcc", dst, grad, kernel)
	kh, kw := kernel.shape[0], kernel.shape[1]
	gh, gw := grad.shape[0], grad.shape[1]
	if dst.shape[0] != gh+kh-1 || dst.shape[1] != gw+kw-1 {
		panic(fmt.Sprintf("tensor.FullCorrelate2DAcc: destination %v does not match gradient %v and kernel %v",
			dst.shape, grad.shape, kernel.shape))
	}
	dd, gd, kd := dst.st.data, grad.st.data, kernel.st.data
	for i := 0; i < gh; i++ {
		for j := 0; j < gw; j++ {
			g := gd[grad.offset+i*grad.strides[0]+j*grad.strides[1]]
			if g == 0 {
				continue
			}
			for u := 0; u < kh; u++ {
				drow := dst.offset + (i+u)*dst.strides[0] + j*dst.strides[1]
				krow := kernel.offset + u*kernel.strides[0]
				for v := 0; v < kw; v++ {
					dd[drow+v*dst.strides[1]] += g * kd[krow+v*kernel.strides[1]]
				}
			}
		}
	}
}

// KernelCorrelate2DAcc accumulates the kernel gradient:
// dk[u,v] += Σ in[i+u, j+v]·grad[i,j].
func KernelCorrelate2DAcc(dk, in, grad *Tensor) {
	check2D("tensor.KernelCorrelate2DAcc", dk, in, grad)
	kh, kw := dk.shape[0], dk.shape[1]
	gh, gw := grad.shape[0], grad.shape[1]
	if in.shape[0] != gh+kh-1 || in.shape[1] != gw+kw-1 {
		panic(fmt.Sprintf("tensor.KernelCorrelate2DAcc: input %v does not match gradient %v and kernel %v",
			in.shape, grad.shape, dk.shape))
	}
	kd, id, gd := dk.st.data, in.st.data, grad.st.data
	for u := 0; u < kh; u++ {
		for v := 0; v < kw; v++ {
			var s float64
			for i := 0; i < gh; i++ {
				irow := in.offset + (i+u)*in.strides[0] + v*in.strides[1]
				grow := grad.offset + i*grad.strides[0]
				for j := 0; j < gw; j++ {
					s += id[irow+j*in.strides[1]] * gd[grow+j*grad.strides[1]]
				}
			}
			kd[dk.offset+u*dk.strides[0]+v*dk.strides[1]] += s
		}
	}
}

// BoxSum2D writes into out the sums of non-overlapping sh×sw blocks of in:
// out[i,j] = Σ in[i·sh+u, j·sw+v]. in must be exactly (out.rows·sh, out.cols·sw).
func BoxSum2D(out, in *Tensor, sh, sw int) {
	check2D("tensor.BoxSum2D", out, in)
	if in.shape[0] != out.shape[0]*sh || in.shape[1] != out.shape[1]*sw {
		panic(fmt.Sprintf("tensor.BoxSum2D: input %v is not output %v times %dx%d",
			in.shape, out.shape, sh, sw))
	}
	od, id := out.st.data, in.st.data
	for i := 0; i < out.shape[0]; i++ {
		for j := 0; j < out.shape[1]; j++ {
			var s float64
			for u := 0; u < sh; u++ {
				row := in.offset + (i*sh+u)*in.strides[0] + j*sw*in.strides[1]
				for v := 0; v < sw; v++ {
					s += id[row+v*in.strides[1]]
				}
			}
			od[out.offset+i*out.strides[0]+j*out.strides[1]] = s
		}
	}
}

// Oversample2DAcc broadcasts every src element to its sh×sw block of dst,
// scaled by c: dst[i·sh+u, j·sw+v] += c·src[i,j].
func Oversample2DAcc(dst, src *Tensor, sh, sw int, c float64) {
	check2D("tensor.Oversample2DAcc", dst, src)
	if dst.shape[0] != src.shape[0]*sh || dst.shape[1] != src.shape[1]*sw {
		panic(fmt.Sprintf("tensor.Oversample2DAcc: destination %v is not source %v times %dx%d",
			dst.shape, src.shape, sh, sw))
	}
	dd, sd := dst.st.data, src.st.data
	for i := 0; i < src.shape[0]; i++ {
		for j := 0; j < src.shape[1]; j++ {
			g := c * sd[src.offset+i*src.strides[0]+j*src.strides[1]]
			for u := 0; u < sh; u++ {
				row := dst.offset + (i*sh+u)*dst.strides[0] + j*sw*dst.strides[1]
				for v := 0; v < sw; v++ {
					dd[row+v*dst.strides[1]] += g
				}
			}
		}
	}
}

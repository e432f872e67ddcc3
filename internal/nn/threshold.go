package nn

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/tensor"
)

// Threshold replaces every element not above a threshold with a constant:
// out = x > threshold ? x : value.
type Threshold struct {
	named
	sameShapeSize
	noForget
	threshold float64
	value     float64
}

// NewThreshold creates a threshold module.
func NewThreshold(threshold, value float64, name string) *Threshold {
	return &Threshold{named: named{name}, threshold: threshold, value: value}
}

// Forward applies the threshold.
func (t *Threshold) Forward(in, out *State) {
	if !in.Same(out) {
		resizeOutput(t.name, out, in.X.Shape())
	}
	tensor.Apply(out.X, in.X, func(x float64) float64 {
		if x > t.threshold {
			return x
		}
		return t.value
	})
}

// Backward passes out.dx to the elements that were above the threshold.
func (t *Threshold) Backward(in, out *State) {
	checkDifferent("Threshold.Backward", in, out)
	mask := tensor.Zeros(in.X.Shape())
	tensor.Apply(mask, in.X, func(x float64) float64 {
		if x > t.threshold {
			return 1
		}
		return 0
	})
	tensor.MulAcc(in.DX, mask, out.DX)
}

// CurvatureBackward passes out.ddx through unchanged.
func (t *Threshold) CurvatureBackward(in, out *State) {
	checkDifferent("Threshold.CurvatureBackward", in, out)
	tensor.Accumulate(in.DDX, out.DDX)
}

// Describe implements Module.
func (t *Threshold) Describe() string {
	return fmt.Sprintf("threshold module %s: x > %g ? x : %g", t.name, t.threshold, t.value)
}

// forwardOnly is embedded by modules without a gradient: both backward passes
// panic.
type forwardOnly struct{ kind string }

func (f forwardOnly) Backward(*State, *State) {
	panic(f.kind + ".Backward: module is forward only")
}

func (f forwardOnly) CurvatureBackward(*State, *State) {
	panic(f.kind + ".CurvatureBackward: module is forward only")
}

// Binarize maps elements above a threshold to high and the rest to low.
type Binarize struct {
	named
	sameShapeSize
	noForget
	forwardOnly
	threshold float64
	low, high float64
}

// NewBinarize creates a binarization module.
func NewBinarize(threshold, low, high float64, name string) *Binarize {
	return &Binarize{
		named:       named{name},
		forwardOnly: forwardOnly{"Binarize"},
		threshold:   threshold,
		low:         low,
		high:        high,
	}
}

// Forward binarizes in.X.
func (b *Binarize) Forward(in, out *State) {
	if !in.Same(out) {
		resizeOutput(b.name, out, in.X.Shape())
	}
	tensor.Apply(out.X, in.X, func(x float64) float64 {
		if x > b.threshold {
			return b.high
		}
		return b.low
	})
}

// Describe implements Module.
func (b *Binarize) Describe() string {
	return fmt.Sprintf("binarize module %s: x > %g ? %g : %g", b.name, b.threshold, b.high, b.low)
}

// Range is one row of a RangeLUT: inputs below Bound map to Value.
type Range struct {
	Value float64
	Bound float64
}

// RangeLUT maps each element to the value of the first range, in table order,
// whose bound exceeds it. Elements not below any bound map to the last
// range's value.
type RangeLUT struct {
	named
	sameShapeSize
	noForget
	forwardOnly
	ranges []Range
}

// NewRangeLUT creates a lookup module.
func NewRangeLUT(ranges []Range, name string) (*RangeLUT, error) {
	if len(ranges) == 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "range lut %s: no ranges", name)
	}
	rs := append([]Range(nil), ranges...)
	return &RangeLUT{named: named{name}, forwardOnly: forwardOnly{"RangeLUT"}, ranges: rs}, nil
}

// Forward applies the lookup.
func (r *RangeLUT) Forward(in, out *State) {
	if !in.Same(out) {
		resizeOutput(r.name, out, in.X.Shape())
	}
	last := r.ranges[len(r.ranges)-1].Value
	tensor.Apply(out.X, in.X, func(x float64) float64 {
		for _, rg := range r.ranges {
			if x < rg.Bound {
				return rg.Value
			}
		}
		return last
	})
}

// Describe implements Module.
func (r *RangeLUT) Describe() string {
	return fmt.Sprintf("range lut module %s with %d ranges", r.name, len(r.ranges))
}

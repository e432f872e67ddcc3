// Package nn implements the layered modules of the curvnet engine.
//
// This package provides:
//   - State: value, gradient and curvature tensors of one pipeline edge
//   - Parameter: the shared arena backing every trainable tensor
//   - Module: the forward / backward / curvature-backward contract
//   - Kernels: Linear, Convolution, Subsampling, AddC, Diag, nonlinearities,
//     elementwise, padding/cropping, MaxSS, lookup and copy modules
//   - Replicable: lifts a fixed-rank module over extra leading dimensions
//   - Layers: ordered containers with branches and merges, plus the composite
//     FullLayer, ConvolutionLayer and SubsamplingLayer
//
// Every backward and curvature-backward kernel accumulates into the input
// state and into the parameter buffer; callers clear gradients before a
// sweep. Curvature follows the Gauss-Newton diagonal approximation: it is
// propagated through squared weights and squared derivatives.
package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/curvnet/internal/tensor"
)

// Module is a single-input, single-output unit of a network.
//
// The three passes must be called in order for a given sample:
// Forward, then Backward, then CurvatureBackward. Modules may re-derive
// quantities from in.X and out.X during the backward passes, so neither may
// be modified between Forward and the backward passes.
type Module interface {
	// Name returns the instance name used in diagnostics.
	Name() string

	// Forward computes out.X from in.X, resizing out when needed.
	Forward(in, out *State)

	// Backward accumulates the gradient of out.DX into in.DX and into the
	// module's parameter gradients.
	Backward(in, out *State)

	// CurvatureBackward accumulates the diagonal curvature of out.DDX into
	// in.DDX and into the module's parameter curvatures.
	CurvatureBackward(in, out *State)

	// Forget re-initializes trainable parameters.
	Forget(fp ForgetParam)

	// ForwardSize returns the output shape produced for an input shape.
	ForwardSize(in tensor.Shape) tensor.Shape

	// BackwardSize returns the input shape required to produce an output
	// shape.
	BackwardSize(out tensor.Shape) tensor.Shape

	// Describe returns a one-line human readable description.
	Describe() string
}

// Module2 is a two-input, one-output unit.
type Module2 interface {
	Name() string
	Forward(in1, in2, out *State)
	Backward(in1, in2, out *State)
	CurvatureBackward(in1, in2, out *State)
	Describe() string
}

// ReplicableModule is implemented by modules defined over a fixed input rank.
// Such modules can be wrapped with Replicate to process inputs of higher rank.
type ReplicableModule interface {
	Module
	ReplicableOrder() int
}

// Copier is implemented by modules that can produce an independent copy with
// private parameter storage holding the same weights.
type Copier interface {
	Copy() Module
}

// ForgetParam controls random re-initialization: values are drawn uniformly
// in [-z, z] with z = Value / fanin^Exponent.
type ForgetParam struct {
	Value    float64
	Exponent float64
	Rand     *rand.Rand
}

// NewForgetParam creates a ForgetParam with a deterministic generator.
func NewForgetParam(value, exponent float64, seed int64) ForgetParam {
	return ForgetParam{
		Value:    value,
		Exponent: exponent,
		//nolint:gosec // weight initialization is not security-critical
		Rand: rand.New(rand.NewSource(seed)),
	}
}

// bound returns the half-width of the uniform draw for a given fan-in.
func (fp ForgetParam) bound(fanin int) float64 {
	return fp.Value / math.Pow(float64(fanin), fp.Exponent)
}

// uniform fills t with values drawn from U(-z, z).
func (fp ForgetParam) uniform(t *tensor.Tensor, z float64) {
	r := fp.Rand
	if r == nil {
		//nolint:gosec // weight initialization is not security-critical
		r = rand.New(rand.NewSource(0))
	}
	tensor.Apply(t, t, func(float64) float64 {
		return (r.Float64()*2 - 1) * z
	})
}

// named holds the instance name shared by every module.
type named struct {
	name string
}

func (n named) Name() string { return n.name }

// sameShapeSize is the shape inference of modules whose output has the shape
// of their input.
type sameShapeSize struct{}

func (sameShapeSize) ForwardSize(in tensor.Shape) tensor.Shape   { return in.Clone() }
func (sameShapeSize) BackwardSize(out tensor.Shape) tensor.Shape { return out.Clone() }

// noForget is embedded by modules without trainable parameters.
type noForget struct{}

func (noForget) Forget(ForgetParam) {}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"log/slog"
	"math/rand"

	"github.com/born-ml/curvnet/internal/nn"
	"github.com/born-ml/curvnet/internal/tensor"
)

// Core types.
type (
	// State holds the value, gradient and curvature of one pipeline edge.
	State = nn.State
	// Parameter is the shared buffer backing every trainable tensor.
	Parameter = nn.Parameter
	// Module is a single-input, single-output unit.
	Module = nn.Module
	// Module2 is a two-input, one-output unit.
	Module2 = nn.Module2
	// ReplicableModule is a module defined over a fixed input rank.
	ReplicableModule = nn.ReplicableModule
	// Copier is implemented by modules that can copy themselves.
	Copier = nn.Copier
	// Loader is implemented by modules whose weights can be loaded.
	Loader = nn.Loader
	// ForgetParam controls weight initialization.
	ForgetParam = nn.ForgetParam
	// StateSource provides a state produced elsewhere, for Merge.
	StateSource = nn.StateSource
)

// Modules.
type (
	Linear            = nn.Linear
	Convolution       = nn.Convolution
	ConvolutionConfig = nn.ConvolutionConfig
	Table             = nn.Table
	Subsampling       = nn.Subsampling
	SubsamplingConfig = nn.SubsamplingConfig
	AddC              = nn.AddC
	Diag              = nn.Diag
	Identity          = nn.Identity
	Tanh              = nn.Tanh
	StdSigmoid        = nn.StdSigmoid
	Abs               = nn.Abs
	Power             = nn.Power
	Diff              = nn.Diff
	Mul               = nn.Mul
	Threshold         = nn.Threshold
	Binarize          = nn.Binarize
	Range             = nn.Range
	RangeLUT          = nn.RangeLUT
	ZeroPad           = nn.ZeroPad
	MirrorPad         = nn.MirrorPad
	CutBorder         = nn.CutBorder
	MaxSS             = nn.MaxSS
	Replicable        = nn.Replicable
	Layers            = nn.Layers
	BranchNarrow      = nn.BranchNarrow
	Merge             = nn.Merge
	FullLayer         = nn.FullLayer
	ConvolutionLayer  = nn.ConvolutionLayer
	SubsamplingLayer  = nn.SubsamplingLayer
)

// Error categories. Use errors.Is to test for them.
var (
	ErrInvalidTable       = nn.ErrInvalidTable
	ErrStrideNotSupported = nn.ErrStrideNotSupported
	ErrShapeMismatch      = nn.ErrShapeMismatch
	ErrAliasedStates      = nn.ErrAliasedStates
	ErrInvalidConfig      = nn.ErrInvalidConfig
)

// SetLogger replaces the logger used for warnings. nil restores
// slog.Default().
func SetLogger(l *slog.Logger) { nn.SetLogger(l) }

// NewParameter creates an empty parameter buffer.
func NewParameter() *Parameter { return nn.NewParameter() }

// NewFState creates a state with a value tensor only.
func NewFState(shape tensor.Shape) *State { return nn.NewFState(shape) }

// NewBState creates a state with value and gradient tensors.
func NewBState(shape tensor.Shape) *State { return nn.NewBState(shape) }

// NewBBState creates a state with value, gradient and curvature tensors.
func NewBBState(shape tensor.Shape) *State { return nn.NewBBState(shape) }

// NewForgetParam creates a ForgetParam with a deterministic generator.
func NewForgetParam(value, exponent float64, seed int64) ForgetParam {
	return nn.NewForgetParam(value, exponent, seed)
}

// NewLinear creates a fully connected module.
func NewLinear(p *Parameter, in, out int, name string) *Linear {
	return nn.NewLinear(p, in, out, name)
}

// NewConvolution creates a table-driven convolution.
func NewConvolution(p *Parameter, cfg ConvolutionConfig, name string) (*Convolution, error) {
	return nn.NewConvolution(p, cfg, name)
}

// FullTable connects every input feature to every output feature.
func FullTable(in, out int) Table { return nn.FullTable(in, out) }

// OneToOneTable connects input feature i to output feature i.
func OneToOneTable(n int) Table { return nn.OneToOneTable(n) }

// RandomTable connects each output feature to fanin distinct inputs.
func RandomTable(in, out, fanin int, r *rand.Rand) (Table, error) {
	return nn.RandomTable(in, out, fanin, r)
}

// NewSubsampling creates a subsampling module.
func NewSubsampling(p *Parameter, cfg SubsamplingConfig, name string) (*Subsampling, error) {
	return nn.NewSubsampling(p, cfg, name)
}

// NewAddC creates a per-feature bias module.
func NewAddC(p *Parameter, n int, name string) *AddC { return nn.NewAddC(p, n, name) }

// NewDiag creates a per-feature scaling module.
func NewDiag(p *Parameter, n int, name string) *Diag { return nn.NewDiag(p, n, name) }

// NewIdentity creates a copy module.
func NewIdentity(name string) *Identity { return nn.NewIdentity(name) }

// NewTanh creates a hyperbolic tangent module.
func NewTanh(name string) *Tanh { return nn.NewTanh(name) }

// NewStdSigmoid creates a 1.7159·tanh(2/3·x) module.
func NewStdSigmoid(name string) *StdSigmoid { return nn.NewStdSigmoid(name) }

// NewAbs creates an absolute value module.
func NewAbs(threshold float64, name string) *Abs { return nn.NewAbs(threshold, name) }

// NewPower creates an elementwise power module.
func NewPower(p float64, name string) *Power { return nn.NewPower(p, name) }

// NewDiff creates a difference module.
func NewDiff(name string) *Diff { return nn.NewDiff(name) }

// NewMul creates a product module.
func NewMul(name string) *Mul { return nn.NewMul(name) }

// NewThreshold creates a threshold module.
func NewThreshold(threshold, value float64, name string) *Threshold {
	return nn.NewThreshold(threshold, value, name)
}

// NewBinarize creates a binarization module.
func NewBinarize(threshold, low, high float64, name string) *Binarize {
	return nn.NewBinarize(threshold, low, high, name)
}

// NewRangeLUT creates a range lookup module.
func NewRangeLUT(ranges []Range, name string) (*RangeLUT, error) {
	return nn.NewRangeLUT(ranges, name)
}

// NewZeroPad creates a zero padding module.
func NewZeroPad(top, left, bottom, right int, name string) *ZeroPad {
	return nn.NewZeroPad(top, left, bottom, right, name)
}

// NewZeroPadForKernel pads so that a kh×kw convolution preserves size.
func NewZeroPadForKernel(kh, kw int, name string) *ZeroPad {
	return nn.NewZeroPadForKernel(kh, kw, name)
}

// NewMirrorPad creates a mirror padding module.
func NewMirrorPad(nrow, ncol int, name string) *MirrorPad { return nn.NewMirrorPad(nrow, ncol, name) }

// NewCutBorder creates a border cropping module.
func NewCutBorder(nrow, ncol int, name string) *CutBorder { return nn.NewCutBorder(nrow, ncol, name) }

// NewMaxSS creates a max subsampling module.
func NewMaxSS(thickness int, kernel, stride [2]int, name string) (*MaxSS, error) {
	return nn.NewMaxSS(thickness, kernel, stride, name)
}

// Replicate lifts m over extra leading dimensions.
func Replicate(m ReplicableModule) *Replicable { return nn.Replicate(m) }

// NewLayers creates an empty container.
func NewLayers(name string) *Layers { return nn.NewLayers(name) }

// NewBranch creates an empty branch container. narrow may be nil.
func NewBranch(name string, narrow *BranchNarrow) *Layers { return nn.NewBranch(name, narrow) }

// NewMerge creates a merge module.
func NewMerge(sources []StateSource, dim int, name string) *Merge {
	return nn.NewMerge(sources, dim, name)
}

// NewFullLayer creates Linear + bias + squashing.
func NewFullLayer(p *Parameter, in, out int, tanh bool, name string) *FullLayer {
	return nn.NewFullLayer(p, in, out, tanh, name)
}

// NewConvolutionLayer creates Convolution + bias + squashing.
func NewConvolutionLayer(p *Parameter, cfg ConvolutionConfig, tanh bool, name string) (*ConvolutionLayer, error) {
	return nn.NewConvolutionLayer(p, cfg, tanh, name)
}

// NewSubsamplingLayer creates Subsampling + bias + squashing.
func NewSubsamplingLayer(p *Parameter, cfg SubsamplingConfig, tanh bool, name string) (*SubsamplingLayer, error) {
	return nn.NewSubsamplingLayer(p, cfg, tanh, name)
}

// LoadFile loads record from a weight file into m.
func LoadFile(m Loader, path, record string) error { return nn.LoadFile(m, path, record) }

// SaveTable writes a connection table file.
func SaveTable(path string, t Table) error { return nn.SaveTable(path, t) }

// LoadTable reads a connection table file.
func LoadTable(path string) (Table, error) { return nn.LoadTable(path) }

// Package netconf decodes network descriptions and training settings from
// YAML and builds the corresponding module graph.
//
// A description lists modules in pipeline order:
//
//	name: lenet5
//	input: [1, 32, 32]
//	forget: {value: 1, exponent: 0.5, seed: 42}
//	modules:
//	  - type: convolution_layer
//	    name: c1
//	    kernel: [5, 5]
//	    tanh: true
//	    table: {type: full, in: 1, out: 6}
//	  - type: subsampling_layer
//	    name: s2
//	    thickness: 6
//	    stride: [2, 2]
//	    tanh: true
//	training:
//	  eta: 0.0001
//	  curvature: true
package netconf

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/curvnet/internal/optim"
)

// Errors returned while decoding or building a description.
var (
	ErrUnknownModule       = errors.New("unknown module type")
	ErrInvalidArchitecture = errors.New("invalid architecture")
)

// Architecture is a decoded network description.
type Architecture struct {
	Name     string       `yaml:"name,omitempty"`
	Input    []int        `yaml:"input,omitempty"`
	Forget   *Forget      `yaml:"forget,omitempty"`
	Modules  []ModuleSpec `yaml:"modules,omitempty"`
	Training *Training    `yaml:"training,omitempty"`

	dir string // resolves relative table paths
}

// Forget holds the weight initialization parameters applied after building.
type Forget struct {
	Value    float64 `yaml:"value,omitempty"`
	Exponent float64 `yaml:"exponent,omitempty"`
	Seed     int64   `yaml:"seed,omitempty"`
}

// ModuleSpec describes one module. Only the fields relevant to Type are read.
type ModuleSpec struct {
	Type       string       `yaml:"type,omitempty"`
	Name       string       `yaml:"name,omitempty"`
	In         int          `yaml:"in,omitempty"`
	Out        int          `yaml:"out,omitempty"`
	Kernel     []int        `yaml:"kernel,omitempty"`
	Stride     []int        `yaml:"stride,omitempty"`
	Thickness  int          `yaml:"thickness,omitempty"`
	Outputs    int          `yaml:"outputs,omitempty"`
	Crop       bool         `yaml:"crop,omitempty"`
	Tanh       bool         `yaml:"tanh,omitempty"`
	Pad        []int        `yaml:"pad,omitempty"`
	Threshold  float64      `yaml:"threshold,omitempty"`
	Value      float64      `yaml:"value,omitempty"`
	Low        float64      `yaml:"low,omitempty"`
	High       float64      `yaml:"high,omitempty"`
	P          float64      `yaml:"p,omitempty"`
	Ranges     []RangeSpec  `yaml:"range,omitempty"`
	Table      *TableSpec   `yaml:"table,omitempty"`
	Replicable bool         `yaml:"replicable,omitempty"`
	Narrow     *NarrowSpec  `yaml:"narrow,omitempty"`
	Modules    []ModuleSpec `yaml:"modules,omitempty"`
	Inputs     []string     `yaml:"inputs,omitempty"`
	Dim        int          `yaml:"dim,omitempty"`
}

// RangeSpec is one row of a range lookup table.
type RangeSpec struct {
	Value float64 `yaml:"value,omitempty"`
	Bound float64 `yaml:"bound,omitempty"`
}

// TableSpec selects a connection table builder.
type TableSpec struct {
	Type  string `yaml:"type,omitempty"` // full, onetoone, random or file
	In    int    `yaml:"in,omitempty"`
	Out   int    `yaml:"out,omitempty"`
	FanIn int    `yaml:"fanin,omitempty"`
	Seed  int64  `yaml:"seed,omitempty"`
	Path  string `yaml:"path,omitempty"`
}

// NarrowSpec restricts a branch's input.
type NarrowSpec struct {
	Dim    int `yaml:"dim,omitempty"`
	Size   int `yaml:"size,omitempty"`
	Offset int `yaml:"offset,omitempty"`
}

// Training holds the update rule hyperparameters.
type Training struct {
	Eta            float64 `yaml:"eta,omitempty"`
	DecayL1        float64 `yaml:"decay_l1,omitempty"`
	DecayL2        float64 `yaml:"decay_l2,omitempty"`
	Inertia        float64 `yaml:"inertia,omitempty"`
	AnnealValue    float64 `yaml:"anneal_value,omitempty"`
	AnnealPeriod   int     `yaml:"anneal_period,omitempty"`
	Mu             float64 `yaml:"mu,omitempty"`
	HessianSamples int     `yaml:"hessian_samples,omitempty"`
	Curvature      bool    `yaml:"curvature,omitempty"`
}

// OptimConfig converts the settings to an optimizer configuration.
func (t Training) OptimConfig() optim.Config {
	return optim.Config{
		Eta:            t.Eta,
		DecayL1:        t.DecayL1,
		DecayL2:        t.DecayL2,
		Inertia:        t.Inertia,
		AnnealValue:    t.AnnealValue,
		AnnealPeriod:   t.AnnealPeriod,
		Curvature:      t.Curvature,
		Mu:             t.Mu,
		HessianSamples: t.HessianSamples,
	}
}

// NewOptimizer creates the gradient descent optimizer described by t.
func (t Training) NewOptimizer() (*optim.GradientDescent, error) {
	return optim.NewGradientDescent(t.OptimConfig())
}

// Parse decodes a description. Unknown keys are rejected.
func Parse(data []byte) (*Architecture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var a Architecture
	if err := dec.Decode(&a); err != nil {
		return nil, errors.Wrap(err, "decode architecture")
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Load reads and decodes a description file. Relative table paths are
// resolved against the file's directory.
func Load(path string) (*Architecture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read architecture")
	}
	a, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	a.dir = filepath.Dir(path)
	return a, nil
}

func (a *Architecture) validate() error {
	if len(a.Modules) == 0 {
		return errors.Wrap(ErrInvalidArchitecture, "no modules")
	}
	for i, d := range a.Input {
		if d <= 0 {
			return errors.Wrapf(ErrInvalidArchitecture, "input dimension %d is %d", i, d)
		}
	}
	return nil
}

// Encode renders a description back to YAML.
func (a *Architecture) Encode() ([]byte, error) {
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(a); err != nil {
		return nil, errors.Wrap(err, "encode architecture")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "encode architecture")
	}
	return b.Bytes(), nil
}

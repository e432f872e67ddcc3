package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/curvnet/internal/netconf"
	"github.com/born-ml/curvnet/internal/nn"
)

const arch = `
name: small
input: [1, 8, 8]
forget: {value: 1, exponent: 0.5, seed: 5}
modules:
  - type: convolution_layer
    name: c1
    kernel: [3, 3]
    tanh: true
    table: {type: full, in: 1, out: 2}
  - type: subsampling_layer
    name: s2
    thickness: 2
    stride: [2, 2]
    tanh: true
`

func writeArch(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "small.yaml")
	require.NoError(t, os.WriteFile(path, []byte(arch), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	t.Cleanup(func() { nn.SetLogger(nil) })
	return stdout.String(), err
}

func TestRun_Version(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestRun_Usage(t *testing.T) {
	out, err := runCLI(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Commands:")

	_, err = runCLI(t, "train")
	assert.Error(t, err)
}

func TestRun_Describe(t *testing.T) {
	out, err := runCLI(t, "describe", writeArch(t))
	require.NoError(t, err)
	assert.Contains(t, out, "layers small with 2 modules")
	// c1 18+2, s2 2+2
	assert.Contains(t, out, "parameters: 24")
}

func TestRun_Sizes(t *testing.T) {
	path := writeArch(t)
	out, err := runCLI(t, "sizes", path)
	require.NoError(t, err)
	assert.Contains(t, out, "output: 2x3x3")
	assert.Contains(t, out, "minimum input: 1x4x4")

	out, err = runCLI(t, "sizes", "-input", "1,10,10", path)
	require.NoError(t, err)
	assert.Contains(t, out, "output: 2x4x4")

	_, err = runCLI(t, "sizes", "-input", "1,x", path)
	assert.Error(t, err)
}

func TestRun_SizesFlattened(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input: [1, 5, 5]
modules:
  - {type: convolution, name: c1, kernel: [3, 3], table: {type: full, in: 1, out: 2}}
  - {type: linear, name: f2, in: 18, out: 2}
`), 0o600))
	out, err := runCLI(t, "sizes", path)
	require.NoError(t, err)
	assert.Contains(t, out, "output: 2")
	assert.Contains(t, out, "minimum input: unavailable (c1 produces 2x3x3")
	assert.Contains(t, out, "shape mismatch")
}

func TestRun_Init(t *testing.T) {
	path := writeArch(t)
	weights := filepath.Join(t.TempDir(), "small.cvnw")
	out, err := runCLI(t, "init", "-o", weights, path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 24 parameters")

	a, err := netconf.Load(path)
	require.NoError(t, err)
	p := nn.NewParameter()
	_, err = netconf.Build(a, p)
	require.NoError(t, err)

	loaded := nn.NewParameter()
	_, err = netconf.Build(a, loaded)
	require.NoError(t, err)
	require.NoError(t, loaded.LoadX(context.Background(), weights))
	assert.Equal(t, p.X().Values(), loaded.X().Values())

	_, err = runCLI(t, "init", path)
	assert.Error(t, err, "-o is required")
	_, err = runCLI(t, "describe")
	assert.Error(t, err)
}

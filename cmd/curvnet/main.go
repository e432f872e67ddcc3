// Package main provides the curvnet CLI.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/netconf"
	"github.com/born-ml/curvnet/internal/nn"
	"github.com/born-ml/curvnet/internal/serialization"
	"github.com/born-ml/curvnet/internal/tensor"
)

const version = "v0.1.0-dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "curvnet: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "curvnet - layered networks with diagonal curvature")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version                          Show version")
	fmt.Fprintln(w, "  describe <arch.yaml>             Print the module graph and parameter count")
	fmt.Fprintln(w, "  sizes [-input d,h,w] <arch.yaml> Walk an input shape through the network")
	fmt.Fprintln(w, "  init [-seed n] -o <out> <arch.yaml>")
	fmt.Fprintln(w, "                                   Initialize weights and write them to a file")
}

func run(args []string, stdout, stderr io.Writer) error {
	nn.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if len(args) == 0 {
		usage(stdout)
		return nil
	}
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "curvnet %s (weight format %d)\n", version, serialization.FormatVersion)
		return nil
	case "describe":
		return describe(args[1:], stdout)
	case "sizes":
		return sizes(args[1:], stdout)
	case "init":
		return initWeights(args[1:], stdout)
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	}
	usage(stderr)
	return errors.Errorf("unknown command %q", args[0])
}

// load reads and builds the architecture named by the single positional
// argument of fs.
func load(fs *flag.FlagSet) (*netconf.Architecture, *nn.Layers, *nn.Parameter, error) {
	if fs.NArg() != 1 {
		return nil, nil, nil, errors.Errorf("%s: expected one architecture file, got %d arguments", fs.Name(), fs.NArg())
	}
	arch, err := netconf.Load(fs.Arg(0))
	if err != nil {
		return nil, nil, nil, err
	}
	p := nn.NewParameter()
	net, err := netconf.Build(arch, p)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "build %s", fs.Arg(0))
	}
	return arch, net, p, nil
}

func describe(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, net, p, err := load(fs)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, net.Describe())
	fmt.Fprintf(stdout, "parameters: %d\n", p.Footprint())
	return nil
}

func sizes(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sizes", flag.ContinueOnError)
	input := fs.String("input", "", "comma separated input shape (default: the architecture's input)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	arch, net, _, err := load(fs)
	if err != nil {
		return err
	}
	shape := tensor.Shape(arch.Input)
	if *input != "" {
		if shape, err = parseShape(*input); err != nil {
			return err
		}
	}
	if len(shape) == 0 {
		return errors.New("sizes: no input shape given and none in the architecture")
	}
	fmt.Fprint(stdout, net.Pretty(shape))
	fmt.Fprintf(stdout, "output: %v\n", net.ForwardSize(shape))
	if m, err := net.MinInputSize(shape); err == nil {
		fmt.Fprintf(stdout, "minimum input: %v\n", m)
	} else {
		fmt.Fprintf(stdout, "minimum input: unavailable (%v)\n", err)
	}
	return nil
}

func initWeights(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	out := fs.String("o", "", "output weight file")
	seed := fs.Int64("seed", -1, "initialization seed (default: the architecture's)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("init: -o is required")
	}
	arch, net, p, err := load(fs)
	if err != nil {
		return err
	}
	if *seed >= 0 || arch.Forget == nil {
		fp := netconf.Forget{Value: 1, Exponent: 0.5}
		if arch.Forget != nil {
			fp = *arch.Forget
		}
		if *seed >= 0 {
			fp.Seed = *seed
		}
		net.Forget(nn.NewForgetParam(fp.Value, fp.Exponent, fp.Seed))
	}
	if err := p.SaveX(*out); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %d parameters to %s\n", p.Footprint(), *out)
	return nil
}

func parseShape(s string) (tensor.Shape, error) {
	parts := strings.Split(s, ",")
	shape := make(tensor.Shape, len(parts))
	for i, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || d <= 0 {
			return nil, errors.Errorf("invalid dimension %q in shape %q", p, s)
		}
		shape[i] = d
	}
	return shape, nil
}

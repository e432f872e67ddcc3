package nn

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/born-ml/curvnet/internal/serialization"
	"github.com/born-ml/curvnet/internal/tensor"
)

// Loader is implemented by modules whose weights can be replaced by a
// tensor read from elsewhere.
type Loader interface {
	Name() string
	LoadX(src *tensor.Tensor) error
}

// loadWeights copies src into dst. Tensors differing only in their first
// dimension are loaded partially: the leading min(n, m) slices are copied
// and a warning is logged. Any other difference is ErrShapeMismatch.
func loadWeights(module string, dst, src *tensor.Tensor) error {
	ds, ss := dst.Shape(), src.Shape()
	if ds.Equal(ss) {
		tensor.Copy(dst, src)
		return nil
	}
	if len(ds) == 0 || len(ds) != len(ss) || !ss.With(0, ds[0]).Equal(ds) {
		return errors.Wrapf(ErrShapeMismatch, "%s: cannot load %v weights into %v", module, ss, ds)
	}
	n := min(ds[0], ss[0])
	lg().Warn("partial weight load", "module", module, "loaded", ss.String(), "expected", ds.String())
	tensor.Copy(dst.Narrow(0, n, 0), src.Narrow(0, n, 0))
	return nil
}

// LoadX replaces the weights.
func (l *Linear) LoadX(src *tensor.Tensor) error { return loadWeights(l.name, l.w.X, src) }

// LoadX replaces the kernels.
func (c *Convolution) LoadX(src *tensor.Tensor) error { return loadWeights(c.name, c.kernel.X, src) }

// LoadX replaces the coefficients.
func (s *Subsampling) LoadX(src *tensor.Tensor) error { return loadWeights(s.name, s.coeff.X, src) }

// LoadX replaces the biases.
func (a *AddC) LoadX(src *tensor.Tensor) error { return loadWeights(a.name, a.bias.X, src) }

// LoadX replaces the coefficients.
func (d *Diag) LoadX(src *tensor.Tensor) error { return loadWeights(d.name, d.coeff.X, src) }

// LoadFile loads the named record of a weight file into m.
func LoadFile(m Loader, path, record string) error {
	r, err := serialization.NewReader(path)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	x, err := r.ReadTensor(record)
	if err != nil {
		return errors.Wrapf(err, "%s", m.Name())
	}
	return m.LoadX(x)
}

// SaveX writes the value buffer to path as a single "x" record.
func (p *Parameter) SaveX(path string) error {
	meta := map[string]string{"footprint": strconv.Itoa(p.footprint)}
	return serialization.WriteFile(path, serialization.KindParameter, meta, serialization.FloatRecord("x", p.X()))
}

// LoadX reads values from one or more files whose records, concatenated in
// order, must hold exactly Footprint values.
func (p *Parameter) LoadX(ctx context.Context, paths ...string) error {
	x, err := serialization.ReadConcat(ctx, paths)
	if err != nil {
		return err
	}
	if x.NumElements() != p.footprint {
		return errors.Wrapf(ErrShapeMismatch, "parameter holds %d values, files hold %d", p.footprint, x.NumElements())
	}
	tensor.Copy(p.X(), x)
	return nil
}

// SaveTable writes a connection table as an N×2 int64 record.
func SaveTable(path string, t Table) error {
	vals := make([]int64, 0, 2*len(t))
	for _, e := range t {
		vals = append(vals, int64(e[0]), int64(e[1]))
	}
	rec := serialization.IntRecord("table", tensor.Shape{len(t), 2}, vals)
	return serialization.WriteFile(path, serialization.KindTable, nil, rec)
}

// LoadTable reads the first record of a table file.
func LoadTable(path string) (Table, error) {
	records, _, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(ErrInvalidTable, "%s holds no records", path)
	}
	t, err := records[0].Tensor()
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidTable, "%s: %v", path, err)
	}
	return TableFromTensor(t)
}
